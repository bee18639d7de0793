package farm

import (
	"sort"
	"time"

	"github.com/edufarm/edufarm/core/catalog"
)

// Entity statuses
const (
	StatusEmpty      = "empty"
	StatusGrowing    = "growing"
	StatusHungry     = "hungry"
	StatusProducing  = "producing"
	StatusInProgress = "in_progress"
	StatusReady      = "ready"
)

type (
	PlotView struct {
		Slot      int        `json:"slot"`
		SeedID    string     `json:"seed_id,omitempty"`
		Status    string     `json:"status"`
		PlantedAt *time.Time `json:"planted_at,omitempty"`
		ReadyAt   *time.Time `json:"ready_at,omitempty"`
		Progress  float64    `json:"progress"`
	}

	AnimalView struct {
		Animal
		Status   string     `json:"status"`
		ReadyAt  *time.Time `json:"ready_at,omitempty"`
		Progress float64    `json:"progress"`
	}

	ProductionView struct {
		Production
		Status   string    `json:"status"`
		ReadyAt  time.Time `json:"ready_at"`
		Progress float64   `json:"progress"`
	}

	ZoneView struct {
		catalog.Zone
		Unlocked    bool             `json:"unlocked"`
		Plots       []PlotView       `json:"plots,omitempty"`
		Animals     []AnimalView     `json:"animals,omitempty"`
		Productions []ProductionView `json:"productions,omitempty"`
	}

	BoosterView struct {
		ID          string     `json:"id"`
		Kind        string     `json:"kind"`
		Multiplier  float64    `json:"multiplier"`
		Active      bool       `json:"active"`
		ActiveUntil *time.Time `json:"active_until,omitempty"`
		AvailableAt *time.Time `json:"available_at,omitempty"` // set while cooling down
	}

	FarmView struct {
		UserID      string         `json:"user_id"`
		Coins       int            `json:"coins"`
		XP          int            `json:"xp"`
		Level       int            `json:"level"`
		NextLevelXP int            `json:"next_level_xp"`
		Zones       []ZoneView     `json:"zones"`
		Boosters    []BoosterView  `json:"boosters"`
		Inventory   map[string]int `json:"inventory"`
		Now         time.Time      `json:"now"`
	}
)

func timePtr(t time.Time) *time.Time { return &t }

// plotState computes when a plot is ready & its status at `now`.
func plotState(p Plot, seed catalog.Seed, ws []window, now time.Time) (string, time.Time, float64) {
	at := readyAt(p.PlantedAt, seed.Growth, ws)
	if !now.Before(at) {
		return StatusReady, at, 1
	}
	return StatusGrowing, at, progress(p.PlantedAt, now, seed.Growth, ws)
}

func animalState(a Animal, def catalog.Animal, ws []window, now time.Time) (string, *time.Time, float64) {
	if a.FedAt == nil {
		return StatusHungry, nil, 0
	}
	at := readyAt(*a.FedAt, def.Interval, ws)
	if !now.Before(at) {
		return StatusReady, &at, 1
	}
	return StatusProducing, &at, progress(*a.FedAt, now, def.Interval, ws)
}

func productionState(p Production, recipe catalog.Recipe, ws []window, now time.Time) (string, time.Time, float64) {
	at := readyAt(p.StartedAt, recipe.Duration, ws)
	if !now.Before(at) {
		return StatusReady, at, 1
	}
	return StatusInProgress, at, progress(p.StartedAt, now, recipe.Duration, ws)
}

// NewView computes the status of every farm entity at `now`.
func NewView(f Farm, cat *catalog.Catalog, now time.Time) FarmView {
	level := cat.Level(f.XP)
	view := FarmView{
		UserID:      f.UserID,
		Coins:       f.Coins,
		XP:          f.XP,
		Level:       level,
		NextLevelXP: level * cat.LevelXP,
		Zones:       make([]ZoneView, 0, len(cat.Zones)),
		Boosters:    make([]BoosterView, 0, len(cat.Boosters)),
		Inventory:   f.Inventory,
		Now:         now,
	}
	if view.Inventory == nil {
		view.Inventory = map[string]int{}
	}

	growth, prod := f.windows(catalog.BoostGrowth), f.windows(catalog.BoostProduction)
	for _, zone := range cat.Zones {
		zv := ZoneView{Zone: zone, Unlocked: f.HasZone(zone.ID)}
		if zv.Unlocked {
			zv.Plots = make([]PlotView, zone.PlotSlots)
			for slot := range zv.Plots {
				zv.Plots[slot] = PlotView{Slot: slot, Status: StatusEmpty}
			}
			for _, p := range f.Plots {
				seed, ok := cat.Seed(p.SeedID)
				if p.ZoneID != zone.ID || p.Slot >= zone.PlotSlots || !ok {
					continue
				}
				status, at, pr := plotState(p, seed, growth, now)
				zv.Plots[p.Slot] = PlotView{
					Slot:      p.Slot,
					SeedID:    p.SeedID,
					Status:    status,
					PlantedAt: timePtr(p.PlantedAt),
					ReadyAt:   timePtr(at),
					Progress:  pr,
				}
			}
			for _, a := range f.Animals {
				def, ok := cat.Animal(a.AnimalID)
				if a.ZoneID != zone.ID || !ok {
					continue
				}
				status, at, pr := animalState(a, def, prod, now)
				zv.Animals = append(zv.Animals, AnimalView{Animal: a, Status: status, ReadyAt: at, Progress: pr})
			}
			for _, p := range f.Productions {
				recipe, ok := cat.Recipe(p.RecipeID)
				if p.ZoneID != zone.ID || !ok {
					continue
				}
				status, at, pr := productionState(p, recipe, prod, now)
				zv.Productions = append(zv.Productions, ProductionView{Production: p, Status: status, ReadyAt: at, Progress: pr})
			}
		}
		view.Zones = append(view.Zones, zv)
	}

	for _, b := range cat.Boosters {
		bv := BoosterView{ID: b.ID, Kind: b.Kind, Multiplier: b.Multiplier}
		if last, ok := f.lastBoost(b.ID); ok {
			if now.Before(last.EndsAt) {
				bv.Active = true
				bv.ActiveUntil = timePtr(last.EndsAt)
			}
			if available := last.EndsAt.Add(b.Cooldown); now.Before(available) {
				bv.AvailableAt = timePtr(available)
			}
		}
		view.Boosters = append(view.Boosters, bv)
	}
	sort.SliceStable(view.Boosters, func(i, j int) bool { return view.Boosters[i].ID < view.Boosters[j].ID })
	return view
}
