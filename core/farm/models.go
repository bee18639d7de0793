package farm

import (
	"time"

	"github.com/edufarm/edufarm/core/catalog"
)

type ZoneState struct {
	ZoneID     string    `json:"zone_id"`
	UnlockedAt time.Time `json:"unlocked_at"` // UTC
}

type Plot struct {
	ZoneID    string    `json:"zone_id"`
	Slot      int       `json:"slot"`
	SeedID    string    `json:"seed_id"`
	PlantedAt time.Time `json:"planted_at"` // UTC
}

// Animal is an owned animal; it produces once per feeding.
type Animal struct {
	ID       string     `json:"id"`
	ZoneID   string     `json:"zone_id"`
	AnimalID string     `json:"animal_id"`
	BoughtAt time.Time  `json:"bought_at"` // UTC
	FedAt    *time.Time `json:"fed_at"`    // UTC; nil when hungry
}

type Production struct {
	ID        string    `json:"id"`
	ZoneID    string    `json:"zone_id"`
	RecipeID  string    `json:"recipe_id"`
	StartedAt time.Time `json:"started_at"` // UTC
}

// Boost is one booster activation.
type Boost struct {
	BoosterID  string    `json:"booster_id"`
	Kind       string    `json:"kind"`
	Multiplier float64   `json:"multiplier"`
	StartedAt  time.Time `json:"started_at"` // UTC
	EndsAt     time.Time `json:"ends_at"`    // UTC
}

type Farm struct {
	UserID      string         `json:"user_id"`
	Coins       int            `json:"coins"`
	XP          int            `json:"xp"`
	Zones       []ZoneState    `json:"zones"`
	Plots       []Plot         `json:"plots"`
	Animals     []Animal       `json:"animals"`
	Productions []Production   `json:"productions"`
	Boosts      []Boost        `json:"boosts"`
	Inventory   map[string]int `json:"inventory"`
	CreatedAt   time.Time      `json:"created_at"` // UTC
	UpdatedAt   time.Time      `json:"updated_at"` // UTC
}

func (f *Farm) HasZone(zoneID string) bool {
	for _, z := range f.Zones {
		if z.ZoneID == zoneID {
			return true
		}
	}
	return false
}

func (f *Farm) plotIndex(zoneID string, slot int) int {
	for i, p := range f.Plots {
		if p.ZoneID == zoneID && p.Slot == slot {
			return i
		}
	}
	return -1
}

func (f *Farm) animalIndex(id string) int {
	for i, a := range f.Animals {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (f *Farm) productionIndex(id string) int {
	for i, p := range f.Productions {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (f *Farm) countAnimals(zoneID string) (n int) {
	for _, a := range f.Animals {
		if a.ZoneID == zoneID {
			n++
		}
	}
	return n
}

func (f *Farm) countProductions(zoneID string) (n int) {
	for _, p := range f.Productions {
		if p.ZoneID == zoneID {
			n++
		}
	}
	return n
}

// windows returns the boost windows of the given kind.
func (f *Farm) windows(kind string) []window {
	var ws []window
	for _, b := range f.Boosts {
		if b.Kind == kind {
			ws = append(ws, window{start: b.StartedAt, end: b.EndsAt, mult: b.Multiplier})
		}
	}
	return ws
}

// lastBoost returns the most recent activation of a booster.
func (f *Farm) lastBoost(boosterID string) (Boost, bool) {
	var (
		last  Boost
		found bool
	)
	for _, b := range f.Boosts {
		if b.BoosterID == boosterID && (!found || b.StartedAt.After(last.StartedAt)) {
			last, found = b, true
		}
	}
	return last, found
}

func (f *Farm) spend(coins int) error {
	if coins > f.Coins {
		return ErrInsufficientCoins
	}
	f.Coins -= coins
	return nil
}

func (f *Farm) addItem(itemID string, qty int) {
	if f.Inventory == nil {
		f.Inventory = make(map[string]int)
	}
	f.Inventory[itemID] += qty
}

// hasItems checks the inventory holds every item in `items` (item: qty).
func (f *Farm) hasItems(items map[string]int) bool {
	for id, qty := range items {
		if f.Inventory[id] < qty {
			return false
		}
	}
	return true
}

func (f *Farm) removeItems(items map[string]int) error {
	if !f.hasItems(items) {
		return ErrInsufficientItems
	}
	for id, qty := range items {
		f.Inventory[id] -= qty
		if f.Inventory[id] == 0 {
			delete(f.Inventory, id)
		}
	}
	return nil
}

// prune drops boost activations that can no longer affect any pending entity.
// The latest activation of each booster is kept for its cooldown.
func (f *Farm) prune() {
	earliest := map[string]time.Time{}
	track := func(kind string, t time.Time) {
		if cur, ok := earliest[kind]; !ok || t.Before(cur) {
			earliest[kind] = t
		}
	}
	for _, p := range f.Plots {
		track(catalog.BoostGrowth, p.PlantedAt)
	}
	for _, a := range f.Animals {
		if a.FedAt != nil {
			track(catalog.BoostProduction, *a.FedAt)
		}
	}
	for _, p := range f.Productions {
		track(catalog.BoostProduction, p.StartedAt)
	}

	lasts := make(map[string]time.Time, len(f.Boosts))
	for _, b := range f.Boosts {
		if last, ok := lasts[b.BoosterID]; !ok || b.StartedAt.After(last) {
			lasts[b.BoosterID] = b.StartedAt
		}
	}
	kept := make([]Boost, 0, len(f.Boosts))
	for _, b := range f.Boosts {
		start, pending := earliest[b.Kind]
		if lasts[b.BoosterID].Equal(b.StartedAt) || (pending && b.EndsAt.After(start)) {
			kept = append(kept, b)
		}
	}
	f.Boosts = kept
}

// Payloads

type PlantSeed struct {
	Zone string `json:"zone" validate:"required"`
	Slot *int   `json:"slot" validate:"required,gte=0"`
	Seed string `json:"seed" validate:"required"`
}

type HarvestPlot struct {
	Zone string `json:"zone" validate:"required"`
	Slot *int   `json:"slot" validate:"required,gte=0"`
}

type BuyAnimal struct {
	Zone   string `json:"zone" validate:"required"`
	Animal string `json:"animal" validate:"required"`
}

type StartProduction struct {
	Zone   string `json:"zone" validate:"required"`
	Recipe string `json:"recipe" validate:"required"`
}

type SellItem struct {
	Item     string `json:"item" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}
