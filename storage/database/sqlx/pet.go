package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core/pet"
)

const petColumns = `id, owner_id, species_id, name, fullness, happiness, energy, xp, adopted_at, updated_at`

type petRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	SpeciesID string    `db:"species_id"`
	Name      string    `db:"name"`
	Fullness  float64   `db:"fullness"`
	Happiness float64   `db:"happiness"`
	Energy    float64   `db:"energy"`
	XP        int       `db:"xp"`
	AdoptedAt time.Time `db:"adopted_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newPetRow(p pet.Pet) petRow {
	return petRow{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		SpeciesID: p.SpeciesID,
		Name:      p.Name,
		Fullness:  p.Fullness,
		Happiness: p.Happiness,
		Energy:    p.Energy,
		XP:        p.XP,
		AdoptedAt: p.AdoptedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (r petRow) pet() pet.Pet {
	return pet.Pet{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		SpeciesID: r.SpeciesID,
		Name:      r.Name,
		Fullness:  r.Fullness,
		Happiness: r.Happiness,
		Energy:    r.Energy,
		XP:        r.XP,
		AdoptedAt: r.AdoptedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type petRepository struct {
	db *sqlx.DB
}

var _ pet.Repository = (*petRepository)(nil) // interface compliance check

func NewPetRepository(db *sqlx.DB) pet.Repository {
	return &petRepository{db: db}
}

func (repo *petRepository) CreatePet(ctx context.Context, p pet.Pet) (pet.Pet, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	q := `INSERT INTO pet (` + petColumns + `) VALUES (
		:id, :owner_id, :species_id, :name, :fullness, :happiness, :energy, :xp, :adopted_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newPetRow(p)); err != nil {
		if _, ok := uniqueViolationOn(err); ok {
			return pet.Pet{}, pet.ErrExists
		}
		return pet.Pet{}, errors.Wrap(err, "inserting pet")
	}
	return newPetRow(p).pet(), nil
}

func getPet(ctx context.Context, q sqlx.QueryerContext, ownerID, id string, lock bool) (pet.Pet, error) {
	if !validID(ownerID) || !validID(id) {
		return pet.Pet{}, pet.ErrNotFound
	}
	query := `SELECT ` + petColumns + ` FROM pet WHERE owner_id = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var r petRow
	if err := sqlx.GetContext(ctx, q, &r, query, ownerID, id); err != nil {
		return pet.Pet{}, trapNoRowsErr(err, pet.ErrNotFound, "getting pet")
	}
	return r.pet(), nil
}

func (repo *petRepository) GetPet(ctx context.Context, ownerID, id string) (pet.Pet, error) {
	return getPet(ctx, repo.db, ownerID, id, false)
}

func (repo *petRepository) ListPets(ctx context.Context, ownerID string) ([]pet.Pet, error) {
	var rows []petRow
	if validID(ownerID) {
		q := `SELECT ` + petColumns + ` FROM pet WHERE owner_id = $1 ORDER BY adopted_at`
		if err := repo.db.SelectContext(ctx, &rows, q, ownerID); err != nil {
			return nil, errors.Wrap(err, "listing pets")
		}
	}
	pets := make([]pet.Pet, 0, len(rows))
	for _, r := range rows {
		pets = append(pets, r.pet())
	}
	return pets, nil
}

func (repo *petRepository) UpdatePet(ctx context.Context, ownerID, id string, fn func(p *pet.Pet) error) (pet.Pet, error) {
	var p pet.Pet
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		if p, err = getPet(ctx, tx, ownerID, id, true); err != nil {
			return err
		}
		if err = fn(&p); err != nil {
			return err
		}
		q := `UPDATE pet SET name = :name, fullness = :fullness, happiness = :happiness, energy = :energy,
				xp = :xp, updated_at = :updated_at
			WHERE id = :id`
		_, err = tx.NamedExecContext(ctx, q, newPetRow(p))
		return errors.Wrap(err, "updating pet")
	})
	if err != nil {
		return pet.Pet{}, err
	}
	return p, nil
}

func (repo *petRepository) DeletePet(ctx context.Context, ownerID, id string) error {
	if !validID(ownerID) || !validID(id) {
		return pet.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM pet WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return errors.Wrap(err, "deleting pet")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pet.ErrNotFound
	}
	return nil
}
