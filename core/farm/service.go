package farm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/catalog"
)

var (
	// errors
	ErrNotFound           = errors.New("farm not found")
	ErrExists             = errors.New("farm already exists")
	ErrZoneNotFound       = errors.New("zone not found")
	ErrSeedNotFound       = errors.New("seed not found")
	ErrAnimalNotFound     = errors.New("animal not found")
	ErrRecipeNotFound     = errors.New("recipe not found")
	ErrBoosterNotFound    = errors.New("booster not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrProductionNotFound = errors.New("production not found")

	ErrZoneLocked         = core.NewRuleError("zone is locked")
	ErrZoneUnlocked       = core.NewRuleError("zone is already unlocked")
	ErrLevelTooLow        = core.NewRuleError("level too low")
	ErrWrongZone          = core.NewRuleError("this zone does not support it")
	ErrSlotOutOfRange     = core.NewRuleError("slot out of range")
	ErrSlotOccupied       = core.NewRuleError("slot is occupied")
	ErrSlotEmpty          = core.NewRuleError("slot is empty")
	ErrNoFreeSlot         = core.NewRuleError("no free slot left in this zone")
	ErrNotReady           = core.NewRuleError("not ready yet")
	ErrAnimalFed          = core.NewRuleError("animal is already fed")
	ErrAnimalHungry       = core.NewRuleError("animal is hungry")
	ErrInsufficientCoins  = core.NewRuleError("insufficient coins")
	ErrInsufficientItems  = core.NewRuleError("insufficient items")
	ErrBoosterCoolingDown = core.NewRuleError("booster is cooling down")
)

// Event types
const (
	EventCreated             = "farm.created"
	EventZoneUnlocked        = "farm.zone_unlocked"
	EventPlanted             = "farm.planted"
	EventHarvested           = "farm.harvested"
	EventAnimalBought        = "farm.animal_bought"
	EventAnimalFed           = "farm.animal_fed"
	EventAnimalCollected     = "farm.animal_collected"
	EventProductionStarted   = "farm.production_started"
	EventProductionCollected = "farm.production_collected"
	EventBoosterActivated    = "farm.booster_activated"
	EventItemSold            = "farm.item_sold"
	EventRewarded            = "farm.rewarded"
	EventSpent               = "farm.spent"
	EventItemConsumed        = "farm.item_consumed"
	EventItemRestocked       = "farm.item_restocked"
	EventLevelUp             = "farm.level_up"
)

type (
	Repository interface {
		// GetFarm returns ErrNotFound if the user has no farm yet.
		GetFarm(ctx context.Context, userID string) (Farm, error)
		// CreateFarm returns ErrExists if the user already has a farm.
		CreateFarm(ctx context.Context, f Farm) (Farm, error)
		// UpdateFarm locks the farm, applies fn & saves the result atomically.
		// Nothing is saved if fn fails. Returns ErrNotFound if the user has no farm.
		UpdateFarm(ctx context.Context, userID string, fn func(f *Farm) error) (Farm, error)
	}

	Service interface {
		Catalog() *catalog.Catalog
		Get(ctx context.Context, userID string) (FarmView, error)
		UnlockZone(ctx context.Context, userID, zoneID string) (FarmView, error)
		Plant(ctx context.Context, userID string, ps PlantSeed) (FarmView, error)
		Harvest(ctx context.Context, userID string, hp HarvestPlot) (FarmView, error)
		BuyAnimal(ctx context.Context, userID string, ba BuyAnimal) (FarmView, error)
		FeedAnimal(ctx context.Context, userID, animalID string) (FarmView, error)
		CollectAnimal(ctx context.Context, userID, animalID string) (FarmView, error)
		StartProduction(ctx context.Context, userID string, sp StartProduction) (FarmView, error)
		CollectProduction(ctx context.Context, userID, productionID string) (FarmView, error)
		ActivateBooster(ctx context.Context, userID, boosterID string) (FarmView, error)
		SellItem(ctx context.Context, userID string, si SellItem) (FarmView, error)

		// Reward credits coins & XP earned elsewhere (graded tasks).
		Reward(ctx context.Context, userID string, coins, xp int, reason string) error
		// Spend debits coins (pet adoption).
		Spend(ctx context.Context, userID string, coins int, reason string) error
		// ConsumeItem takes items out of the inventory (pet food).
		ConsumeItem(ctx context.Context, userID, itemID string, qty int) error
		// RestockItem puts consumed items back.
		RestockItem(ctx context.Context, userID, itemID string, qty int) error
	}

	service struct {
		repo      Repository
		cat       *catalog.Catalog
		publisher core.Publisher
		conf      *core.Config
	}

	// ActionPayload is the payload of every farm event.
	ActionPayload struct {
		Entity interface{} `json:"entity,omitempty"`
		Reason string      `json:"reason,omitempty"`
		Coins  int         `json:"coins"`
		XP     int         `json:"xp"`
		Level  int         `json:"level"`
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, cat *catalog.Catalog, publisher core.Publisher, conf *core.Config) Service {
	return &service{repo: repo, cat: cat, publisher: publisher, conf: conf}
}

func (svc *service) Catalog() *catalog.Catalog { return svc.cat }

func (svc *service) newFarm(userID string) Farm {
	now := core.NowFunc()
	return Farm{
		UserID:    userID,
		Coins:     svc.conf.Game.StartingCoins,
		Zones:     []ZoneState{{ZoneID: svc.cat.StartingZone, UnlockedAt: now}},
		Inventory: map[string]int{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// create lazily creates the user's farm; losing a creation race is fine.
func (svc *service) create(ctx context.Context, userID string) (Farm, error) {
	f, err := svc.repo.CreateFarm(ctx, svc.newFarm(userID))
	switch errors.Cause(err) {
	case nil:
		svc.publish(EventCreated, f, nil, "")
		return f, nil
	case ErrExists:
		return svc.repo.GetFarm(ctx, userID)
	default:
		return Farm{}, errors.Wrap(err, "creating farm")
	}
}

func (svc *service) Get(ctx context.Context, userID string) (FarmView, error) {
	f, err := svc.repo.GetFarm(ctx, userID)
	if errors.Cause(err) == ErrNotFound {
		f, err = svc.create(ctx, userID)
	}
	if err != nil {
		return FarmView{}, err
	}
	return NewView(f, svc.cat, core.NowFunc()), nil
}

// update applies `fn` atomically, creating the farm first if needed,
// and publishes `evtType` with the entity returned by `fn`.
func (svc *service) update(ctx context.Context, userID, evtType string, fn func(f *Farm, now time.Time) (interface{}, error)) (Farm, error) {
	var (
		entity interface{}
		before int
	)
	apply := func(f *Farm) error {
		before = f.XP
		now := core.NowFunc()
		var err error
		if entity, err = fn(f, now); err != nil {
			return err
		}
		f.UpdatedAt = now
		f.prune()
		return nil
	}

	f, err := svc.repo.UpdateFarm(ctx, userID, apply)
	if errors.Cause(err) == ErrNotFound {
		if _, err = svc.create(ctx, userID); err != nil {
			return Farm{}, err
		}
		f, err = svc.repo.UpdateFarm(ctx, userID, apply)
	}
	if err != nil {
		return Farm{}, err
	}

	svc.publish(evtType, f, entity, "")
	if svc.cat.Level(f.XP) > svc.cat.Level(before) {
		svc.publish(EventLevelUp, f, nil, "")
	}
	return f, nil
}

func (svc *service) publish(evtType string, f Farm, entity interface{}, reason string) {
	svc.publisher.Publish(core.NewEvent(core.ChannelFarm, evtType, f.UserID, ActionPayload{
		Entity: entity,
		Reason: reason,
		Coins:  f.Coins,
		XP:     f.XP,
		Level:  svc.cat.Level(f.XP),
	}))
}

func (svc *service) view(f Farm, err error) (FarmView, error) {
	if err != nil {
		return FarmView{}, err
	}
	return NewView(f, svc.cat, core.NowFunc()), nil
}

// unlockedZone looks a zone up & checks that the farm has it.
func (svc *service) unlockedZone(f *Farm, zoneID string) (catalog.Zone, error) {
	zone, ok := svc.cat.Zone(zoneID)
	if !ok {
		return catalog.Zone{}, ErrZoneNotFound
	}
	if !f.HasZone(zoneID) {
		return catalog.Zone{}, ErrZoneLocked
	}
	return zone, nil
}

func (svc *service) UnlockZone(ctx context.Context, userID, zoneID string) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventZoneUnlocked, func(f *Farm, now time.Time) (interface{}, error) {
		zone, ok := svc.cat.Zone(zoneID)
		if !ok {
			return nil, ErrZoneNotFound
		}
		if f.HasZone(zoneID) {
			return nil, ErrZoneUnlocked
		}
		if svc.cat.Level(f.XP) < zone.UnlockLevel {
			return nil, ErrLevelTooLow
		}
		if err := f.spend(zone.UnlockCost); err != nil {
			return nil, err
		}
		zs := ZoneState{ZoneID: zoneID, UnlockedAt: now}
		f.Zones = append(f.Zones, zs)
		return zs, nil
	}))
}

func (svc *service) Plant(ctx context.Context, userID string, ps PlantSeed) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventPlanted, func(f *Farm, now time.Time) (interface{}, error) {
		zone, err := svc.unlockedZone(f, ps.Zone)
		if err != nil {
			return nil, err
		}
		seed, ok := svc.cat.Seed(ps.Seed)
		if !ok {
			return nil, ErrSeedNotFound
		}
		if seed.Zone != zone.ID {
			return nil, ErrWrongZone
		}
		slot := *ps.Slot
		if slot < 0 || slot >= zone.PlotSlots {
			return nil, ErrSlotOutOfRange
		}
		if f.plotIndex(zone.ID, slot) >= 0 {
			return nil, ErrSlotOccupied
		}
		if err := f.spend(seed.Cost); err != nil {
			return nil, err
		}
		p := Plot{ZoneID: zone.ID, Slot: slot, SeedID: seed.ID, PlantedAt: now}
		f.Plots = append(f.Plots, p)
		return p, nil
	}))
}

func (svc *service) Harvest(ctx context.Context, userID string, hp HarvestPlot) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventHarvested, func(f *Farm, now time.Time) (interface{}, error) {
		if _, err := svc.unlockedZone(f, hp.Zone); err != nil {
			return nil, err
		}
		idx := f.plotIndex(hp.Zone, *hp.Slot)
		if idx < 0 {
			return nil, ErrSlotEmpty
		}
		p := f.Plots[idx]
		seed, ok := svc.cat.Seed(p.SeedID)
		if !ok {
			return nil, ErrSeedNotFound
		}
		if status, _, _ := plotState(p, seed, f.windows(catalog.BoostGrowth), now); status != StatusReady {
			return nil, ErrNotReady
		}
		f.Plots = append(f.Plots[:idx], f.Plots[idx+1:]...)
		f.addItem(seed.YieldItem, seed.YieldQty)
		f.XP += seed.XP
		return p, nil
	}))
}

func (svc *service) BuyAnimal(ctx context.Context, userID string, ba BuyAnimal) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventAnimalBought, func(f *Farm, now time.Time) (interface{}, error) {
		zone, err := svc.unlockedZone(f, ba.Zone)
		if err != nil {
			return nil, err
		}
		def, ok := svc.cat.Animal(ba.Animal)
		if !ok {
			return nil, ErrAnimalNotFound
		}
		if def.Zone != zone.ID {
			return nil, ErrWrongZone
		}
		if f.countAnimals(zone.ID) >= zone.AnimalSlots {
			return nil, ErrNoFreeSlot
		}
		if err := f.spend(def.Cost); err != nil {
			return nil, err
		}
		a := Animal{ID: uuid.NewString(), ZoneID: zone.ID, AnimalID: def.ID, BoughtAt: now}
		f.Animals = append(f.Animals, a)
		return a, nil
	}))
}

// ownedAnimal returns the index & definition of an owned animal.
func (svc *service) ownedAnimal(f *Farm, id string) (int, catalog.Animal, error) {
	idx := f.animalIndex(id)
	if idx < 0 {
		return -1, catalog.Animal{}, ErrAnimalNotFound
	}
	def, ok := svc.cat.Animal(f.Animals[idx].AnimalID)
	if !ok {
		return -1, catalog.Animal{}, ErrAnimalNotFound
	}
	return idx, def, nil
}

func (svc *service) FeedAnimal(ctx context.Context, userID, animalID string) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventAnimalFed, func(f *Farm, now time.Time) (interface{}, error) {
		idx, def, err := svc.ownedAnimal(f, animalID)
		if err != nil {
			return nil, err
		}
		if f.Animals[idx].FedAt != nil {
			return nil, ErrAnimalFed
		}
		if err := f.removeItems(map[string]int{def.FeedItem: def.FeedQty}); err != nil {
			return nil, err
		}
		f.Animals[idx].FedAt = timePtr(now)
		return f.Animals[idx], nil
	}))
}

func (svc *service) CollectAnimal(ctx context.Context, userID, animalID string) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventAnimalCollected, func(f *Farm, now time.Time) (interface{}, error) {
		idx, def, err := svc.ownedAnimal(f, animalID)
		if err != nil {
			return nil, err
		}
		switch status, _, _ := animalState(f.Animals[idx], def, f.windows(catalog.BoostProduction), now); status {
		case StatusHungry:
			return nil, ErrAnimalHungry
		case StatusProducing:
			return nil, ErrNotReady
		}
		f.Animals[idx].FedAt = nil
		f.addItem(def.ProductItem, def.ProductQty)
		f.XP += def.XP
		return f.Animals[idx], nil
	}))
}

func (svc *service) StartProduction(ctx context.Context, userID string, sp StartProduction) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventProductionStarted, func(f *Farm, now time.Time) (interface{}, error) {
		zone, err := svc.unlockedZone(f, sp.Zone)
		if err != nil {
			return nil, err
		}
		recipe, ok := svc.cat.Recipe(sp.Recipe)
		if !ok {
			return nil, ErrRecipeNotFound
		}
		if recipe.Zone != zone.ID {
			return nil, ErrWrongZone
		}
		if f.countProductions(zone.ID) >= zone.ProductionSlots {
			return nil, ErrNoFreeSlot
		}
		if err := f.removeItems(recipe.Inputs); err != nil {
			return nil, err
		}
		p := Production{ID: uuid.NewString(), ZoneID: zone.ID, RecipeID: recipe.ID, StartedAt: now}
		f.Productions = append(f.Productions, p)
		return p, nil
	}))
}

func (svc *service) CollectProduction(ctx context.Context, userID, productionID string) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventProductionCollected, func(f *Farm, now time.Time) (interface{}, error) {
		idx := f.productionIndex(productionID)
		if idx < 0 {
			return nil, ErrProductionNotFound
		}
		p := f.Productions[idx]
		recipe, ok := svc.cat.Recipe(p.RecipeID)
		if !ok {
			return nil, ErrRecipeNotFound
		}
		if status, _, _ := productionState(p, recipe, f.windows(catalog.BoostProduction), now); status != StatusReady {
			return nil, ErrNotReady
		}
		f.Productions = append(f.Productions[:idx], f.Productions[idx+1:]...)
		f.addItem(recipe.OutputItem, recipe.OutputQty)
		f.XP += recipe.XP
		return p, nil
	}))
}

func (svc *service) ActivateBooster(ctx context.Context, userID, boosterID string) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventBoosterActivated, func(f *Farm, now time.Time) (interface{}, error) {
		def, ok := svc.cat.Booster(boosterID)
		if !ok {
			return nil, ErrBoosterNotFound
		}
		if last, ok := f.lastBoost(def.ID); ok && now.Before(last.EndsAt.Add(def.Cooldown)) {
			return nil, ErrBoosterCoolingDown
		}
		if err := f.spend(def.Cost); err != nil {
			return nil, err
		}
		b := Boost{
			BoosterID:  def.ID,
			Kind:       def.Kind,
			Multiplier: def.Multiplier,
			StartedAt:  now,
			EndsAt:     now.Add(def.Duration),
		}
		f.Boosts = append(f.Boosts, b)
		return b, nil
	}))
}

func (svc *service) SellItem(ctx context.Context, userID string, si SellItem) (FarmView, error) {
	return svc.view(svc.update(ctx, userID, EventItemSold, func(f *Farm, now time.Time) (interface{}, error) {
		item, ok := svc.cat.Item(si.Item)
		if !ok {
			return nil, ErrItemNotFound
		}
		if err := f.removeItems(map[string]int{item.ID: si.Quantity}); err != nil {
			return nil, err
		}
		f.Coins += item.SellPrice * si.Quantity
		return si, nil
	}))
}

func (svc *service) Reward(ctx context.Context, userID string, coins, xp int, reason string) error {
	_, err := svc.update(ctx, userID, EventRewarded, func(f *Farm, now time.Time) (interface{}, error) {
		f.Coins += coins
		f.XP += xp
		return map[string]interface{}{"coins": coins, "xp": xp, "reason": reason}, nil
	})
	return errors.Wrap(err, "rewarding")
}

func (svc *service) Spend(ctx context.Context, userID string, coins int, reason string) error {
	_, err := svc.update(ctx, userID, EventSpent, func(f *Farm, now time.Time) (interface{}, error) {
		if err := f.spend(coins); err != nil {
			return nil, err
		}
		return map[string]interface{}{"coins": coins, "reason": reason}, nil
	})
	return err
}

func (svc *service) ConsumeItem(ctx context.Context, userID, itemID string, qty int) error {
	_, err := svc.update(ctx, userID, EventItemConsumed, func(f *Farm, now time.Time) (interface{}, error) {
		if _, ok := svc.cat.Item(itemID); !ok {
			return nil, ErrItemNotFound
		}
		if err := f.removeItems(map[string]int{itemID: qty}); err != nil {
			return nil, err
		}
		return map[string]interface{}{"item": itemID, "quantity": qty}, nil
	})
	return err
}

func (svc *service) RestockItem(ctx context.Context, userID, itemID string, qty int) error {
	_, err := svc.update(ctx, userID, EventItemRestocked, func(f *Farm, now time.Time) (interface{}, error) {
		if _, ok := svc.cat.Item(itemID); !ok {
			return nil, ErrItemNotFound
		}
		f.addItem(itemID, qty)
		return map[string]interface{}{"item": itemID, "quantity": qty}, nil
	})
	return err
}
