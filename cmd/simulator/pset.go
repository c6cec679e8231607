package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
)

var psetDBPath string

var psetCmd = &cobra.Command{
	Use:   "pset",
	Short: "Manage tightening parameter sets (PSETs)",
	Long: `Manage PSETs directly against the configured repository, for
scripting and debugging without a running simulator instance.

Examples:
  simulator pset list
  simulator pset add --name "Custom" --torque-min 5 --torque-max 10 --angle-min 30 --angle-max 45
  simulator pset rm 6`,
}

var psetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all PSETs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openPsetRepository(psetDBPath)
		if err != nil {
			return err
		}
		return outputJSON(cmd.OutOrStdout(), repo.GetAll())
	},
}

var (
	addName      string
	addTorqueMin float64
	addTorqueMax float64
	addAngleMin  float64
	addAngleMax  float64
)

var psetAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new PSET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openPsetRepository(psetDBPath)
		if err != nil {
			return err
		}
		created, err := repo.Create(pset.Pset{
			Name:      addName,
			TorqueMin: addTorqueMin,
			TorqueMax: addTorqueMax,
			AngleMin:  addAngleMin,
			AngleMax:  addAngleMax,
		})
		if err != nil {
			return fmt.Errorf("pset add: %w", err)
		}
		return outputJSON(cmd.OutOrStdout(), created)
	},
}

var psetRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a PSET by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("pset rm: invalid id %q: %w", args[0], err)
		}
		repo, err := openPsetRepository(psetDBPath)
		if err != nil {
			return err
		}
		if err := repo.Delete(uint32(id)); err != nil {
			return fmt.Errorf("pset rm: %w", err)
		}
		fmt.Printf("removed pset %d\n", id)
		return nil
	},
}

func init() {
	psetCmd.PersistentFlags().StringVar(&psetDBPath, "db", "", "SQLite PSET database path (empty: use in-memory PSET repository)")

	psetAddCmd.Flags().StringVar(&addName, "name", "", "PSET name")
	psetAddCmd.Flags().Float64Var(&addTorqueMin, "torque-min", 0, "Minimum torque")
	psetAddCmd.Flags().Float64Var(&addTorqueMax, "torque-max", 0, "Maximum torque")
	psetAddCmd.Flags().Float64Var(&addAngleMin, "angle-min", 0, "Minimum angle")
	psetAddCmd.Flags().Float64Var(&addAngleMax, "angle-max", 0, "Maximum angle")

	psetCmd.AddCommand(psetListCmd, psetAddCmd, psetRmCmd)
}

// outputJSON writes v to w (the command's output, stdout by default) as
// indented JSON, mirroring steveyegge-beads/cmd/bd/autoflush.go's
// outputJSON helper.
func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
