package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
)

func runPsetCmd(t *testing.T, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	psetCmd.SetOut(out)
	psetCmd.SetErr(out)
	rootCmd.SetArgs(append([]string{"pset"}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestPsetCmd_ListShowsDefaults(t *testing.T) {
	psetDBPath = ""
	out := runPsetCmd(t, "list")

	var psets []pset.Pset
	require.NoError(t, json.Unmarshal([]byte(out), &psets))
	assert.Len(t, psets, 5)
}

func TestPsetCmd_AddAgainstSqliteFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "psets.db")

	out := runPsetCmd(t, "add",
		"--db", dbPath,
		"--name", "Custom",
		"--torque-min", "1", "--torque-max", "2",
		"--angle-min", "1", "--angle-max", "2")

	var created pset.Pset
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "Custom", created.Name)
	assert.Equal(t, uint32(6), created.ID)

	listOut := runPsetCmd(t, "list", "--db", dbPath)
	var all []pset.Pset
	require.NoError(t, json.Unmarshal([]byte(listOut), &all))
	assert.Len(t, all, 6)
}
