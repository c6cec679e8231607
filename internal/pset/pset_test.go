package pset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
)

func TestDefaultPsets_FiveSeeded(t *testing.T) {
	repo := pset.NewInMemoryRepository()
	all := repo.GetAll()
	require.Len(t, all, 5)

	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"Light Duty", "Standard", "Heavy Duty", "Precision", "Extra Heavy"}, names)
}

func TestInMemoryRepository_GetByID(t *testing.T) {
	repo := pset.NewInMemoryRepository()

	p, ok := repo.GetByID(3)
	require.True(t, ok)
	assert.Equal(t, "Heavy Duty", p.Name)

	_, ok = repo.GetByID(999)
	assert.False(t, ok)
}

func TestInMemoryRepository_CreateAssignsNextID(t *testing.T) {
	repo := pset.NewInMemoryRepository()

	created, err := repo.Create(pset.Pset{
		Name: "Custom", TorqueMin: 1, TorqueMax: 2, AngleMin: 1, AngleMax: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(6), created.ID)
	assert.Len(t, repo.GetAll(), 6)
}

func TestInMemoryRepository_CreateRejectsInvalidRanges(t *testing.T) {
	repo := pset.NewInMemoryRepository()

	_, err := repo.Create(pset.Pset{Name: "Bad", TorqueMin: 10, TorqueMax: 5, AngleMin: 1, AngleMax: 2})
	assert.Error(t, err)

	_, err = repo.Create(pset.Pset{Name: "Bad2", TorqueMin: 1, TorqueMax: 2, AngleMin: 10, AngleMax: 380})
	assert.Error(t, err)

	_, err = repo.Create(pset.Pset{Name: "Bad3", TorqueMin: -1, TorqueMax: 2, AngleMin: 1, AngleMax: 2})
	assert.Error(t, err)
}

func TestInMemoryRepository_CreateRejectsDuplicateName(t *testing.T) {
	repo := pset.NewInMemoryRepository()

	_, err := repo.Create(pset.Pset{Name: "Standard", TorqueMin: 1, TorqueMax: 2, AngleMin: 1, AngleMax: 2})
	assert.Error(t, err)
}

func TestInMemoryRepository_UpdateExisting(t *testing.T) {
	repo := pset.NewInMemoryRepository()

	updated, err := repo.Update(1, pset.Pset{Name: "Light Duty v2", TorqueMin: 6, TorqueMax: 11, AngleMin: 31, AngleMax: 46})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), updated.ID)
	assert.Equal(t, "Light Duty v2", updated.Name)

	p, _ := repo.GetByID(1)
	assert.Equal(t, "Light Duty v2", p.Name)
}

func TestInMemoryRepository_UpdateMissingFails(t *testing.T) {
	repo := pset.NewInMemoryRepository()
	_, err := repo.Update(999, pset.Pset{Name: "X", TorqueMin: 1, TorqueMax: 2, AngleMin: 1, AngleMax: 2})
	assert.Error(t, err)
}

func TestInMemoryRepository_DeleteRemoves(t *testing.T) {
	repo := pset.NewInMemoryRepository()

	created, err := repo.Create(pset.Pset{Name: "Temp", TorqueMin: 1, TorqueMax: 2, AngleMin: 1, AngleMax: 2})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(created.ID))
	_, ok := repo.GetByID(created.ID)
	assert.False(t, ok)
}

func TestInMemoryRepository_DeleteMissingFails(t *testing.T) {
	repo := pset.NewInMemoryRepository()
	err := repo.Delete(999)
	assert.Error(t, err)
}

func TestPset_IsWithinRange(t *testing.T) {
	p := pset.Pset{TorqueMin: 10, TorqueMax: 20, AngleMin: 30, AngleMax: 60}

	assert.True(t, p.IsWithinRange(15, 45))
	assert.True(t, p.IsWithinRange(10, 30))
	assert.True(t, p.IsWithinRange(20, 60))
	assert.False(t, p.IsWithinRange(9.9, 45))
	assert.False(t, p.IsWithinRange(15, 60.1))
}
