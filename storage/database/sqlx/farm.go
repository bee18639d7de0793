package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufarm/edufarm/core/farm"
)

// child tables of "farm", rewritten on every update
var farmChildTables = []string{"farm_zone", "farm_plot", "farm_animal", "farm_production", "farm_boost", "farm_inventory"}

type (
	farmRow struct {
		UserID    string    `db:"user_id"`
		Coins     int       `db:"coins"`
		XP        int       `db:"xp"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	zoneRow struct {
		UserID     string    `db:"user_id"`
		ZoneID     string    `db:"zone_id"`
		UnlockedAt time.Time `db:"unlocked_at"`
	}

	plotRow struct {
		UserID    string    `db:"user_id"`
		ZoneID    string    `db:"zone_id"`
		Slot      int       `db:"slot"`
		SeedID    string    `db:"seed_id"`
		PlantedAt time.Time `db:"planted_at"`
	}

	animalRow struct {
		ID       string    `db:"id"`
		UserID   string    `db:"user_id"`
		ZoneID   string    `db:"zone_id"`
		AnimalID string    `db:"animal_id"`
		BoughtAt time.Time `db:"bought_at"`
		FedAt    null.Time `db:"fed_at"`
	}

	productionRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		ZoneID    string    `db:"zone_id"`
		RecipeID  string    `db:"recipe_id"`
		StartedAt time.Time `db:"started_at"`
	}

	boostRow struct {
		UserID     string    `db:"user_id"`
		BoosterID  string    `db:"booster_id"`
		Kind       string    `db:"kind"`
		Multiplier float64   `db:"multiplier"`
		StartedAt  time.Time `db:"started_at"`
		EndsAt     time.Time `db:"ends_at"`
	}

	inventoryRow struct {
		UserID   string `db:"user_id"`
		ItemID   string `db:"item_id"`
		Quantity int    `db:"quantity"`
	}
)

type farmRepository struct {
	db *sqlx.DB
}

var _ farm.Repository = (*farmRepository)(nil) // interface compliance check

func NewFarmRepository(db *sqlx.DB) farm.Repository {
	return &farmRepository{db: db}
}

func (repo *farmRepository) GetFarm(ctx context.Context, userID string) (farm.Farm, error) {
	if !validID(userID) {
		return farm.Farm{}, farm.ErrNotFound
	}
	var f farm.Farm
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		f, err = loadFarm(ctx, tx, userID, false)
		return err
	})
	return f, err
}

func (repo *farmRepository) CreateFarm(ctx context.Context, f farm.Farm) (farm.Farm, error) {
	if !validID(f.UserID) {
		return farm.Farm{}, farm.ErrNotFound
	}
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO farm (user_id, coins, xp, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO NOTHING`
		res, err := tx.ExecContext(ctx, q, f.UserID, f.Coins, f.XP, f.CreatedAt.UTC(), f.UpdatedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "inserting farm")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return farm.ErrExists
		}
		return saveFarmChildren(ctx, tx, f)
	})
	if err != nil {
		return farm.Farm{}, err
	}
	return f, nil
}

func (repo *farmRepository) UpdateFarm(ctx context.Context, userID string, fn func(f *farm.Farm) error) (farm.Farm, error) {
	if !validID(userID) {
		return farm.Farm{}, farm.ErrNotFound
	}
	var f farm.Farm
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) (err error) {
		if f, err = loadFarm(ctx, tx, userID, true); err != nil {
			return err
		}
		if err = fn(&f); err != nil {
			return err
		}
		q := `UPDATE farm SET coins = $2, xp = $3, updated_at = $4 WHERE user_id = $1`
		if _, err = tx.ExecContext(ctx, q, userID, f.Coins, f.XP, f.UpdatedAt.UTC()); err != nil {
			return errors.Wrap(err, "updating farm")
		}
		for _, table := range farmChildTables {
			if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, userID); err != nil {
				return errors.Wrapf(err, "clearing %s", table)
			}
		}
		return saveFarmChildren(ctx, tx, f)
	})
	if err != nil {
		return farm.Farm{}, err
	}
	return f, nil
}

// loadFarm reads the farm & its children; `lock` takes a row lock on the farm until the end of `tx`.
func loadFarm(ctx context.Context, tx *sqlx.Tx, userID string, lock bool) (farm.Farm, error) {
	q := `SELECT user_id, coins, xp, created_at, updated_at FROM farm WHERE user_id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	var fr farmRow
	if err := tx.GetContext(ctx, &fr, q, userID); err != nil {
		return farm.Farm{}, trapNoRowsErr(err, farm.ErrNotFound, "getting farm")
	}
	f := farm.Farm{
		UserID:      fr.UserID,
		Coins:       fr.Coins,
		XP:          fr.XP,
		Zones:       []farm.ZoneState{},
		Plots:       []farm.Plot{},
		Animals:     []farm.Animal{},
		Productions: []farm.Production{},
		Boosts:      []farm.Boost{},
		Inventory:   map[string]int{},
		CreatedAt:   fr.CreatedAt.UTC(),
		UpdatedAt:   fr.UpdatedAt.UTC(),
	}

	var zones []zoneRow
	if err := tx.SelectContext(ctx, &zones, `SELECT user_id, zone_id, unlocked_at FROM farm_zone WHERE user_id = $1 ORDER BY unlocked_at`, userID); err != nil {
		return farm.Farm{}, errors.Wrap(err, "getting farm zones")
	}
	for _, z := range zones {
		f.Zones = append(f.Zones, farm.ZoneState{ZoneID: z.ZoneID, UnlockedAt: z.UnlockedAt.UTC()})
	}

	var plots []plotRow
	if err := tx.SelectContext(ctx, &plots, `SELECT user_id, zone_id, slot, seed_id, planted_at FROM farm_plot WHERE user_id = $1 ORDER BY zone_id, slot`, userID); err != nil {
		return farm.Farm{}, errors.Wrap(err, "getting farm plots")
	}
	for _, p := range plots {
		f.Plots = append(f.Plots, farm.Plot{ZoneID: p.ZoneID, Slot: p.Slot, SeedID: p.SeedID, PlantedAt: p.PlantedAt.UTC()})
	}

	var animals []animalRow
	if err := tx.SelectContext(ctx, &animals, `SELECT id, user_id, zone_id, animal_id, bought_at, fed_at FROM farm_animal WHERE user_id = $1 ORDER BY bought_at`, userID); err != nil {
		return farm.Farm{}, errors.Wrap(err, "getting farm animals")
	}
	for _, a := range animals {
		f.Animals = append(f.Animals, farm.Animal{
			ID:       a.ID,
			ZoneID:   a.ZoneID,
			AnimalID: a.AnimalID,
			BoughtAt: a.BoughtAt.UTC(),
			FedAt:    utcPtr(a.FedAt.Ptr()),
		})
	}

	var prods []productionRow
	if err := tx.SelectContext(ctx, &prods, `SELECT id, user_id, zone_id, recipe_id, started_at FROM farm_production WHERE user_id = $1 ORDER BY started_at`, userID); err != nil {
		return farm.Farm{}, errors.Wrap(err, "getting farm productions")
	}
	for _, p := range prods {
		f.Productions = append(f.Productions, farm.Production{ID: p.ID, ZoneID: p.ZoneID, RecipeID: p.RecipeID, StartedAt: p.StartedAt.UTC()})
	}

	var boosts []boostRow
	if err := tx.SelectContext(ctx, &boosts, `SELECT user_id, booster_id, kind, multiplier, started_at, ends_at FROM farm_boost WHERE user_id = $1 ORDER BY started_at`, userID); err != nil {
		return farm.Farm{}, errors.Wrap(err, "getting farm boosts")
	}
	for _, b := range boosts {
		f.Boosts = append(f.Boosts, farm.Boost{
			BoosterID:  b.BoosterID,
			Kind:       b.Kind,
			Multiplier: b.Multiplier,
			StartedAt:  b.StartedAt.UTC(),
			EndsAt:     b.EndsAt.UTC(),
		})
	}

	var inventory []inventoryRow
	if err := tx.SelectContext(ctx, &inventory, `SELECT user_id, item_id, quantity FROM farm_inventory WHERE user_id = $1`, userID); err != nil {
		return farm.Farm{}, errors.Wrap(err, "getting farm inventory")
	}
	for _, inv := range inventory {
		f.Inventory[inv.ItemID] = inv.Quantity
	}
	return f, nil
}

// saveFarmChildren batch-inserts every child row of `f`.
func saveFarmChildren(ctx context.Context, tx *sqlx.Tx, f farm.Farm) error {
	uid := f.UserID

	zones := make([]zoneRow, 0, len(f.Zones))
	for _, z := range f.Zones {
		zones = append(zones, zoneRow{UserID: uid, ZoneID: z.ZoneID, UnlockedAt: z.UnlockedAt.UTC()})
	}
	plots := make([]plotRow, 0, len(f.Plots))
	for _, p := range f.Plots {
		plots = append(plots, plotRow{UserID: uid, ZoneID: p.ZoneID, Slot: p.Slot, SeedID: p.SeedID, PlantedAt: p.PlantedAt.UTC()})
	}
	animals := make([]animalRow, 0, len(f.Animals))
	for _, a := range f.Animals {
		animals = append(animals, animalRow{
			ID:       a.ID,
			UserID:   uid,
			ZoneID:   a.ZoneID,
			AnimalID: a.AnimalID,
			BoughtAt: a.BoughtAt.UTC(),
			FedAt:    null.TimeFromPtr(utcPtr(a.FedAt)),
		})
	}
	prods := make([]productionRow, 0, len(f.Productions))
	for _, p := range f.Productions {
		prods = append(prods, productionRow{ID: p.ID, UserID: uid, ZoneID: p.ZoneID, RecipeID: p.RecipeID, StartedAt: p.StartedAt.UTC()})
	}
	boosts := make([]boostRow, 0, len(f.Boosts))
	for _, b := range f.Boosts {
		boosts = append(boosts, boostRow{
			UserID:     uid,
			BoosterID:  b.BoosterID,
			Kind:       b.Kind,
			Multiplier: b.Multiplier,
			StartedAt:  b.StartedAt.UTC(),
			EndsAt:     b.EndsAt.UTC(),
		})
	}
	inventory := make([]inventoryRow, 0, len(f.Inventory))
	for itemID, qty := range f.Inventory {
		if qty > 0 {
			inventory = append(inventory, inventoryRow{UserID: uid, ItemID: itemID, Quantity: qty})
		}
	}

	batches := []struct {
		name string
		q    string
		rows interface{}
		n    int
	}{
		{"zones", `INSERT INTO farm_zone (user_id, zone_id, unlocked_at) VALUES (:user_id, :zone_id, :unlocked_at)`, zones, len(zones)},
		{"plots", `INSERT INTO farm_plot (user_id, zone_id, slot, seed_id, planted_at) VALUES (:user_id, :zone_id, :slot, :seed_id, :planted_at)`, plots, len(plots)},
		{"animals", `INSERT INTO farm_animal (id, user_id, zone_id, animal_id, bought_at, fed_at) VALUES (:id, :user_id, :zone_id, :animal_id, :bought_at, :fed_at)`, animals, len(animals)},
		{"productions", `INSERT INTO farm_production (id, user_id, zone_id, recipe_id, started_at) VALUES (:id, :user_id, :zone_id, :recipe_id, :started_at)`, prods, len(prods)},
		{"boosts", `INSERT INTO farm_boost (user_id, booster_id, kind, multiplier, started_at, ends_at) VALUES (:user_id, :booster_id, :kind, :multiplier, :started_at, :ends_at)`, boosts, len(boosts)},
		{"inventory", `INSERT INTO farm_inventory (user_id, item_id, quantity) VALUES (:user_id, :item_id, :quantity)`, inventory, len(inventory)},
	}
	for _, b := range batches {
		if b.n == 0 {
			continue
		}
		if _, err := tx.NamedExecContext(ctx, b.q, b.rows); err != nil {
			return errors.Wrapf(err, "inserting farm %s", b.name)
		}
	}
	return nil
}
