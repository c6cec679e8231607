package pset

import (
	"fmt"
	"sync"
)

// InMemoryRepository is a process-local PSET store seeded with the 5
// default parameter sets.
type InMemoryRepository struct {
	mu    sync.RWMutex
	psets []Pset
}

// NewInMemoryRepository returns a repository pre-seeded with the
// default PSETs.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{psets: DefaultPsets()}
}

func (r *InMemoryRepository) GetAll() []Pset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pset, len(r.psets))
	copy(out, r.psets)
	return out
}

func (r *InMemoryRepository) GetByID(id uint32) (Pset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.psets {
		if p.ID == id {
			return p, true
		}
	}
	return Pset{}, false
}

func (r *InMemoryRepository) Create(p Pset) (Pset, error) {
	if err := validateRanges(p); err != nil {
		return Pset{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.psets {
		if existing.Name == p.Name {
			return Pset{}, fmt.Errorf("a PSET with name %q already exists", p.Name)
		}
	}

	var maxID uint32
	for _, existing := range r.psets {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	p.ID = maxID + 1
	r.psets = append(r.psets, p)
	return p, nil
}

func (r *InMemoryRepository) Update(id uint32, p Pset) (Pset, error) {
	if err := validateRanges(p); err != nil {
		return Pset{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.psets {
		if existing.ID == id {
			p.ID = id
			r.psets[i] = p
			return p, nil
		}
	}
	return Pset{}, fmt.Errorf("PSET with id %d not found", id)
}

func (r *InMemoryRepository) Delete(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.psets {
		if existing.ID == id {
			r.psets = append(r.psets[:i], r.psets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("PSET with id %d not found", id)
}
