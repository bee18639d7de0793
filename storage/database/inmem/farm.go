package inmemdb

import (
	"context"

	"github.com/edufarm/edufarm/core/farm"
)

type farmRepository struct {
	db *farmTable
}

var _ farm.Repository = (*farmRepository)(nil) // interface compliance check

func NewFarmRepository(db *DB) farm.Repository {
	return &farmRepository{db: db.farm}
}

// cloneFarm deep-copies f so that callers never share state with the table.
func cloneFarm(f farm.Farm) farm.Farm {
	c := f
	c.Zones = append([]farm.ZoneState{}, f.Zones...)
	c.Plots = append([]farm.Plot{}, f.Plots...)
	c.Animals = make([]farm.Animal, 0, len(f.Animals))
	for _, a := range f.Animals {
		if a.FedAt != nil {
			fedAt := *a.FedAt
			a.FedAt = &fedAt
		}
		c.Animals = append(c.Animals, a)
	}
	c.Productions = append([]farm.Production{}, f.Productions...)
	c.Boosts = append([]farm.Boost{}, f.Boosts...)
	c.Inventory = make(map[string]int, len(f.Inventory))
	for item, qty := range f.Inventory {
		if qty > 0 {
			c.Inventory[item] = qty
		}
	}
	return c
}

func (repo *farmRepository) GetFarm(_ context.Context, userID string) (farm.Farm, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if f, ok := repo.db.table[userID]; ok {
		return cloneFarm(*f), nil
	}
	return farm.Farm{}, farm.ErrNotFound
}

func (repo *farmRepository) CreateFarm(_ context.Context, f farm.Farm) (farm.Farm, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[f.UserID]; ok {
		return farm.Farm{}, farm.ErrExists
	}
	stored := cloneFarm(f)
	repo.db.table[f.UserID] = &stored
	return cloneFarm(stored), nil
}

func (repo *farmRepository) UpdateFarm(_ context.Context, userID string, fn func(f *farm.Farm) error) (farm.Farm, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[userID]
	if !ok {
		return farm.Farm{}, farm.ErrNotFound
	}
	f := cloneFarm(*stored)
	if err := fn(&f); err != nil {
		return farm.Farm{}, err
	}
	updated := cloneFarm(f)
	repo.db.table[userID] = &updated
	return f, nil
}
