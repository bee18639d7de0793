// Package catalog holds the static game content: zones, seeds, animals,
// production recipes, boosters, items & pet species.
package catalog

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Booster kinds
const (
	BoostGrowth     = "growth"
	BoostProduction = "production"
)

type (
	Zone struct {
		ID              string `json:"id" yaml:"id" validate:"required"`
		Name            string `json:"name" yaml:"name" validate:"required"`
		Subject         string `json:"subject" yaml:"subject" validate:"required"`
		UnlockCost      int    `json:"unlock_cost" yaml:"unlock_cost" validate:"gte=0"`
		UnlockLevel     int    `json:"unlock_level" yaml:"unlock_level" validate:"gte=1"`
		PlotSlots       int    `json:"plot_slots" yaml:"plot_slots" validate:"gte=0"`
		AnimalSlots     int    `json:"animal_slots" yaml:"animal_slots" validate:"gte=0"`
		ProductionSlots int    `json:"production_slots" yaml:"production_slots" validate:"gte=0"`
	}

	Seed struct {
		ID        string        `json:"id" yaml:"id" validate:"required"`
		Name      string        `json:"name" yaml:"name" validate:"required"`
		Zone      string        `json:"zone" yaml:"zone" validate:"required"`
		Cost      int           `json:"cost" yaml:"cost" validate:"gte=0"`
		Growth    time.Duration `json:"growth" yaml:"growth" validate:"gt=0"`
		YieldItem string        `json:"yield_item" yaml:"yield_item" validate:"required"`
		YieldQty  int           `json:"yield_qty" yaml:"yield_qty" validate:"gt=0"`
		XP        int           `json:"xp" yaml:"xp" validate:"gte=0"`
	}

	Animal struct {
		ID          string        `json:"id" yaml:"id" validate:"required"`
		Name        string        `json:"name" yaml:"name" validate:"required"`
		Zone        string        `json:"zone" yaml:"zone" validate:"required"`
		Cost        int           `json:"cost" yaml:"cost" validate:"gte=0"`
		FeedItem    string        `json:"feed_item" yaml:"feed_item" validate:"required"`
		FeedQty     int           `json:"feed_qty" yaml:"feed_qty" validate:"gt=0"`
		Interval    time.Duration `json:"interval" yaml:"interval" validate:"gt=0"`
		ProductItem string        `json:"product_item" yaml:"product_item" validate:"required"`
		ProductQty  int           `json:"product_qty" yaml:"product_qty" validate:"gt=0"`
		XP          int           `json:"xp" yaml:"xp" validate:"gte=0"`
	}

	Recipe struct {
		ID         string         `json:"id" yaml:"id" validate:"required"`
		Name       string         `json:"name" yaml:"name" validate:"required"`
		Zone       string         `json:"zone" yaml:"zone" validate:"required"`
		Inputs     map[string]int `json:"inputs" yaml:"inputs" validate:"required,min=1,dive,gt=0"`
		OutputItem string         `json:"output_item" yaml:"output_item" validate:"required"`
		OutputQty  int            `json:"output_qty" yaml:"output_qty" validate:"gt=0"`
		Duration   time.Duration  `json:"duration" yaml:"duration" validate:"gt=0"`
		XP         int            `json:"xp" yaml:"xp" validate:"gte=0"`
	}

	Booster struct {
		ID         string        `json:"id" yaml:"id" validate:"required"`
		Name       string        `json:"name" yaml:"name" validate:"required"`
		Kind       string        `json:"kind" yaml:"kind" validate:"oneof=growth production"`
		Multiplier float64       `json:"multiplier" yaml:"multiplier" validate:"gte=1"`
		Duration   time.Duration `json:"duration" yaml:"duration" validate:"gt=0"`
		Cooldown   time.Duration `json:"cooldown" yaml:"cooldown" validate:"gte=0"`
		Cost       int           `json:"cost" yaml:"cost" validate:"gte=0"`
	}

	Item struct {
		ID        string `json:"id" yaml:"id" validate:"required"`
		Name      string `json:"name" yaml:"name" validate:"required"`
		SellPrice int    `json:"sell_price" yaml:"sell_price" validate:"gte=0"`
	}

	// Decay rates are in stat points per hour.
	Decay struct {
		Fullness  float64 `json:"fullness" yaml:"fullness" validate:"gte=0"`
		Happiness float64 `json:"happiness" yaml:"happiness" validate:"gte=0"`
	}

	Species struct {
		ID           string  `json:"id" yaml:"id" validate:"required"`
		Name         string  `json:"name" yaml:"name" validate:"required"`
		Decay        Decay   `json:"decay" yaml:"decay"`
		EnergyRegen  float64 `json:"energy_regen" yaml:"energy_regen" validate:"gte=0"` // points per hour
		AdoptionCost int     `json:"adoption_cost" yaml:"adoption_cost" validate:"gte=0"`
		FavoriteFood string  `json:"favorite_food" yaml:"favorite_food" validate:"required"`
	}

	Catalog struct {
		StartingZone string    `json:"starting_zone" yaml:"starting_zone" validate:"required"`
		LevelXP      int       `json:"level_xp" yaml:"level_xp" validate:"gt=0"`
		Zones        []Zone    `json:"zones" yaml:"zones" validate:"required,dive"`
		Seeds        []Seed    `json:"seeds" yaml:"seeds" validate:"dive"`
		Animals      []Animal  `json:"animals" yaml:"animals" validate:"dive"`
		Recipes      []Recipe  `json:"recipes" yaml:"recipes" validate:"dive"`
		Boosters     []Booster `json:"boosters" yaml:"boosters" validate:"dive"`
		Items        []Item    `json:"items" yaml:"items" validate:"required,dive"`
		Species      []Species `json:"species" yaml:"species" validate:"dive"`

		zones    map[string]Zone
		seeds    map[string]Seed
		animals  map[string]Animal
		recipes  map[string]Recipe
		boosters map[string]Booster
		items    map[string]Item
		species  map[string]Species
	}
)

// Load reads & validates the catalog file `name` from `fsys`.
func Load(fsys fs.FS, name string, validate *validator.Validate) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(err, "reading catalog")
	}
	return Parse(data, validate)
}

// Parse decodes & validates a YAML catalog. Unknown fields are rejected.
func Parse(data []byte, validate *validator.Validate) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, errors.Wrap(err, "decoding catalog")
	}
	if err := validate.Struct(&cat); err != nil {
		return nil, errors.Wrap(err, "validating catalog")
	}
	if err := cat.index(); err != nil {
		return nil, err
	}
	if err := cat.checkRefs(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func duplicateErr(kind, id string) error {
	return errors.Errorf("catalog: duplicate %s %q", kind, id)
}

func (c *Catalog) index() error {
	c.zones = make(map[string]Zone, len(c.Zones))
	for _, z := range c.Zones {
		if _, ok := c.zones[z.ID]; ok {
			return duplicateErr("zone", z.ID)
		}
		c.zones[z.ID] = z
	}
	c.seeds = make(map[string]Seed, len(c.Seeds))
	for _, s := range c.Seeds {
		if _, ok := c.seeds[s.ID]; ok {
			return duplicateErr("seed", s.ID)
		}
		c.seeds[s.ID] = s
	}
	c.animals = make(map[string]Animal, len(c.Animals))
	for _, a := range c.Animals {
		if _, ok := c.animals[a.ID]; ok {
			return duplicateErr("animal", a.ID)
		}
		c.animals[a.ID] = a
	}
	c.recipes = make(map[string]Recipe, len(c.Recipes))
	for _, r := range c.Recipes {
		if _, ok := c.recipes[r.ID]; ok {
			return duplicateErr("recipe", r.ID)
		}
		c.recipes[r.ID] = r
	}
	c.boosters = make(map[string]Booster, len(c.Boosters))
	for _, b := range c.Boosters {
		if _, ok := c.boosters[b.ID]; ok {
			return duplicateErr("booster", b.ID)
		}
		c.boosters[b.ID] = b
	}
	c.items = make(map[string]Item, len(c.Items))
	for _, it := range c.Items {
		if _, ok := c.items[it.ID]; ok {
			return duplicateErr("item", it.ID)
		}
		c.items[it.ID] = it
	}
	c.species = make(map[string]Species, len(c.Species))
	for _, sp := range c.Species {
		if _, ok := c.species[sp.ID]; ok {
			return duplicateErr("species", sp.ID)
		}
		c.species[sp.ID] = sp
	}
	return nil
}

// checkRefs verifies that every referenced zone & item exists.
func (c *Catalog) checkRefs() error {
	var missing []string
	zone := func(owner, id string) {
		if _, ok := c.zones[id]; !ok {
			missing = append(missing, fmt.Sprintf("%s: unknown zone %q", owner, id))
		}
	}
	item := func(owner, id string) {
		if _, ok := c.items[id]; !ok {
			missing = append(missing, fmt.Sprintf("%s: unknown item %q", owner, id))
		}
	}

	zone("starting_zone", c.StartingZone)
	for _, s := range c.Seeds {
		zone("seed "+s.ID, s.Zone)
		item("seed "+s.ID, s.YieldItem)
	}
	for _, a := range c.Animals {
		zone("animal "+a.ID, a.Zone)
		item("animal "+a.ID, a.FeedItem)
		item("animal "+a.ID, a.ProductItem)
	}
	for _, r := range c.Recipes {
		zone("recipe "+r.ID, r.Zone)
		item("recipe "+r.ID, r.OutputItem)
		for in := range r.Inputs {
			item("recipe "+r.ID, in)
		}
	}
	for _, sp := range c.Species {
		item("species "+sp.ID, sp.FavoriteFood)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Errorf("catalog: %d broken references, first: %s", len(missing), missing[0])
	}
	return nil
}

func (c *Catalog) Zone(id string) (Zone, bool) {
	z, ok := c.zones[id]
	return z, ok
}

func (c *Catalog) Seed(id string) (Seed, bool) {
	s, ok := c.seeds[id]
	return s, ok
}

func (c *Catalog) Animal(id string) (Animal, bool) {
	a, ok := c.animals[id]
	return a, ok
}

func (c *Catalog) Recipe(id string) (Recipe, bool) {
	r, ok := c.recipes[id]
	return r, ok
}

func (c *Catalog) Booster(id string) (Booster, bool) {
	b, ok := c.boosters[id]
	return b, ok
}

func (c *Catalog) Item(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

func (c *Catalog) SpeciesByID(id string) (Species, bool) {
	sp, ok := c.species[id]
	return sp, ok
}

// Level returns the 1-based level reached with `xp`.
func (c *Catalog) Level(xp int) int {
	if c.LevelXP <= 0 || xp < 0 {
		return 1
	}
	return xp/c.LevelXP + 1
}
