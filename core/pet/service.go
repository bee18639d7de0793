package pet

import (
	"context"

	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/catalog"
)

var (
	// errors
	ErrNotFound        = errors.New("pet not found")
	ErrSpeciesNotFound = errors.New("species not found")
	ErrExists          = core.NewRuleError("you already have a pet of this species")
	ErrTooTired        = core.NewRuleError("pet is too tired to play")
)

// Event types
const (
	EventAdopted        = "pet.adopted"
	EventRenamed        = "pet.renamed"
	EventFed            = "pet.fed"
	EventPlayed         = "pet.played"
	EventReleased       = "pet.released"
	EventNeedsAttention = "pet.needs_attention"
)

type (
	// Wallet pays for adoptions.
	Wallet interface {
		Spend(ctx context.Context, userID string, coins int, reason string) error
		Reward(ctx context.Context, userID string, coins, xp int, reason string) error
	}

	// Pantry provides the food.
	Pantry interface {
		ConsumeItem(ctx context.Context, userID, itemID string, qty int) error
		RestockItem(ctx context.Context, userID, itemID string, qty int) error
	}

	Repository interface {
		// CreatePet returns ErrExists if the owner already has a pet of this species.
		CreatePet(ctx context.Context, p Pet) (Pet, error)
		// GetPet returns ErrNotFound unless the owner has a pet with this ID.
		GetPet(ctx context.Context, ownerID, id string) (Pet, error)
		ListPets(ctx context.Context, ownerID string) ([]Pet, error)
		// UpdatePet locks the pet, applies fn & saves the result atomically.
		UpdatePet(ctx context.Context, ownerID, id string, fn func(p *Pet) error) (Pet, error)
		DeletePet(ctx context.Context, ownerID, id string) error
	}

	Service interface {
		Adopt(ctx context.Context, ownerID string, ap AdoptPet) (View, error)
		List(ctx context.Context, ownerID string) ([]View, error)
		Get(ctx context.Context, ownerID, id string) (View, error)
		Rename(ctx context.Context, ownerID, id string, rp RenamePet) (View, error)
		Feed(ctx context.Context, ownerID, id string, fp FeedPet) (View, error)
		Play(ctx context.Context, ownerID, id string) (View, error)
		Release(ctx context.Context, ownerID, id string) error
	}

	service struct {
		repo      Repository
		cat       *catalog.Catalog
		wallet    Wallet
		pantry    Pantry
		publisher core.Publisher
		logger    core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	repo Repository,
	cat *catalog.Catalog,
	wallet Wallet,
	pantry Pantry,
	publisher core.Publisher,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		cat:       cat,
		wallet:    wallet,
		pantry:    pantry,
		publisher: publisher,
		logger:    logger,
	}
}

func (svc *service) publish(evtType string, v View) {
	svc.publisher.Publish(core.NewEvent(core.ChannelPet, evtType, v.OwnerID, v))
}

func (svc *service) species(id string) (catalog.Species, error) {
	sp, ok := svc.cat.SpeciesByID(id)
	if !ok {
		return catalog.Species{}, ErrSpeciesNotFound
	}
	return sp, nil
}

// materialize brings a read pet to the present & flags it if it needs attention.
func (svc *service) materialize(p Pet) View {
	if sp, err := svc.species(p.SpeciesID); err == nil {
		p.Materialize(sp, core.NowFunc())
	}
	v := NewView(p)
	if v.NeedsAttention {
		svc.publish(EventNeedsAttention, v)
	}
	return v
}

func (svc *service) Adopt(ctx context.Context, ownerID string, ap AdoptPet) (View, error) {
	sp, err := svc.species(ap.Species)
	if err != nil {
		return View{}, err
	}
	pets, err := svc.repo.ListPets(ctx, ownerID)
	if err != nil {
		return View{}, errors.Wrap(err, "listing pets")
	}
	for _, p := range pets {
		if p.SpeciesID == sp.ID {
			return View{}, ErrExists
		}
	}

	if err := svc.wallet.Spend(ctx, ownerID, sp.AdoptionCost, "adopt:"+sp.ID); err != nil {
		return View{}, err
	}
	now := core.NowFunc()
	p, err := svc.repo.CreatePet(ctx, Pet{
		OwnerID:   ownerID,
		SpeciesID: sp.ID,
		Name:      ap.Name,
		Fullness:  initialFullness,
		Happiness: initialHappiness,
		Energy:    initialEnergy,
		AdoptedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if rerr := svc.wallet.Reward(ctx, ownerID, sp.AdoptionCost, 0, "refund:"+sp.ID); rerr != nil {
			svc.logger.Error("pet.Adopt: refund failed: "+rerr.Error(), rerr)
		}
		if errors.Cause(err) == ErrExists {
			return View{}, ErrExists
		}
		return View{}, errors.Wrap(err, "creating pet")
	}

	v := NewView(p)
	svc.publish(EventAdopted, v)
	return v, nil
}

func (svc *service) List(ctx context.Context, ownerID string) ([]View, error) {
	pets, err := svc.repo.ListPets(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(pets))
	for _, p := range pets {
		views = append(views, svc.materialize(p))
	}
	return views, nil
}

func (svc *service) Get(ctx context.Context, ownerID, id string) (View, error) {
	p, err := svc.repo.GetPet(ctx, ownerID, id)
	if err != nil {
		return View{}, err
	}
	return svc.materialize(p), nil
}

// update materializes the pet before applying `fn` atomically, then publishes `evtType`.
func (svc *service) update(ctx context.Context, ownerID, id, evtType string, fn func(p *Pet, sp catalog.Species) error) (View, error) {
	p, err := svc.repo.UpdatePet(ctx, ownerID, id, func(p *Pet) error {
		sp, err := svc.species(p.SpeciesID)
		if err != nil {
			return err
		}
		p.Materialize(sp, core.NowFunc())
		return fn(p, sp)
	})
	if err != nil {
		return View{}, err
	}
	v := NewView(p)
	svc.publish(evtType, v)
	return v, nil
}

func (svc *service) Rename(ctx context.Context, ownerID, id string, rp RenamePet) (View, error) {
	return svc.update(ctx, ownerID, id, EventRenamed, func(p *Pet, _ catalog.Species) error {
		p.Name = rp.Name
		return nil
	})
}

func (svc *service) Feed(ctx context.Context, ownerID, id string, fp FeedPet) (View, error) {
	if _, err := svc.repo.GetPet(ctx, ownerID, id); err != nil {
		return View{}, err
	}
	if err := svc.pantry.ConsumeItem(ctx, ownerID, fp.Item, 1); err != nil {
		return View{}, err
	}
	v, err := svc.update(ctx, ownerID, id, EventFed, func(p *Pet, sp catalog.Species) error {
		fullness, happiness := feedFullness, feedHappiness
		if fp.Item == sp.FavoriteFood {
			fullness, happiness = 2*feedFullness, favoriteHappiness
		}
		p.Fullness = clamp(p.Fullness + fullness)
		p.Happiness = clamp(p.Happiness + happiness)
		return nil
	})
	if err != nil {
		if rerr := svc.pantry.RestockItem(ctx, ownerID, fp.Item, 1); rerr != nil {
			svc.logger.Error("pet.Feed: restock failed: "+rerr.Error(), rerr)
		}
		return View{}, err
	}
	return v, nil
}

func (svc *service) Play(ctx context.Context, ownerID, id string) (View, error) {
	return svc.update(ctx, ownerID, id, EventPlayed, func(p *Pet, _ catalog.Species) error {
		if p.Energy < playEnergyCost {
			return ErrTooTired
		}
		p.Energy = clamp(p.Energy - playEnergyCost)
		p.Happiness = clamp(p.Happiness + playHappiness)
		p.XP += playXP
		return nil
	})
}

func (svc *service) Release(ctx context.Context, ownerID, id string) error {
	p, err := svc.repo.GetPet(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeletePet(ctx, ownerID, id); err != nil {
		return errors.Wrap(err, "deleting pet")
	}
	svc.publish(EventReleased, NewView(p))
	return nil
}
