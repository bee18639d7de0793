package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/edufarm/edufarm/core/pet"
)

type petRepository struct {
	db *petTable
}

var _ pet.Repository = (*petRepository)(nil) // interface compliance check

func NewPetRepository(db *DB) pet.Repository {
	return &petRepository{db: db.pet}
}

func (repo *petRepository) CreatePet(_ context.Context, p pet.Pet) (pet.Pet, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.OwnerID == p.OwnerID && existing.SpeciesID == p.SpeciesID {
			return pet.Pet{}, pet.ErrExists
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *petRepository) get(ownerID, id string) (*pet.Pet, error) {
	p, ok := repo.db.table[id]
	if !ok || p.OwnerID != ownerID {
		return nil, pet.ErrNotFound
	}
	return p, nil
}

func (repo *petRepository) GetPet(_ context.Context, ownerID, id string) (pet.Pet, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, err := repo.get(ownerID, id)
	if err != nil {
		return pet.Pet{}, err
	}
	return *p, nil
}

func (repo *petRepository) ListPets(_ context.Context, ownerID string) ([]pet.Pet, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pets := make([]pet.Pet, 0)
	for _, p := range repo.db.table {
		if p.OwnerID == ownerID {
			pets = append(pets, *p)
		}
	}
	sort.Slice(pets, func(i, j int) bool { return pets[i].AdoptedAt.Before(pets[j].AdoptedAt) })
	return pets, nil
}

func (repo *petRepository) UpdatePet(_ context.Context, ownerID, id string, fn func(p *pet.Pet) error) (pet.Pet, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, err := repo.get(ownerID, id)
	if err != nil {
		return pet.Pet{}, err
	}
	p := *stored
	if err := fn(&p); err != nil {
		return pet.Pet{}, err
	}
	p.ID, p.OwnerID, p.SpeciesID = stored.ID, stored.OwnerID, stored.SpeciesID
	repo.db.table[id] = &p
	return p, nil
}

func (repo *petRepository) DeletePet(_ context.Context, ownerID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, err := repo.get(ownerID, id); err != nil {
		return err
	}
	delete(repo.db.table, id)
	return nil
}
