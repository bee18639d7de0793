package pet

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/catalog"
)

// Moods
const (
	MoodHappy = "happy"
	MoodOK    = "ok"
	MoodSad   = "sad"
)

const (
	maxStat = 100.0

	initialFullness  = 80.0
	initialHappiness = 80.0
	initialEnergy    = maxStat

	feedFullness       = 25.0
	feedHappiness      = 5.0
	favoriteHappiness  = 15.0
	playHappiness      = 15.0
	playEnergyCost     = 10.0
	playXP             = 5
	happyThreshold     = 50.0
	sadThreshold       = 20.0
	attentionThreshold = 30.0
	levelXP            = 50
)

// Pet stats are stored as of UpdatedAt; Materialize brings them to the present.
type Pet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	SpeciesID string    `json:"species_id"`
	Name      string    `json:"name"`
	Fullness  float64   `json:"fullness"`
	Happiness float64   `json:"happiness"`
	Energy    float64   `json:"energy"`
	XP        int       `json:"xp"`
	AdoptedAt time.Time `json:"adopted_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(maxStat, v))
}

// Materialize applies the decay & regeneration elapsed since UpdatedAt.
// Happiness decays twice as fast once fullness reaches 0.
func (p *Pet) Materialize(sp catalog.Species, now time.Time) {
	if !now.After(p.UpdatedAt) {
		return
	}
	hours := now.Sub(p.UpdatedAt).Hours()

	starveAfter := math.Inf(1)
	if sp.Decay.Fullness > 0 {
		starveAfter = p.Fullness / sp.Decay.Fullness
	}
	fed, starving := hours, 0.0
	if hours > starveAfter {
		fed, starving = starveAfter, hours-starveAfter
	}

	p.Fullness = clamp(p.Fullness - sp.Decay.Fullness*hours)
	p.Happiness = clamp(p.Happiness - sp.Decay.Happiness*fed - 2*sp.Decay.Happiness*starving)
	p.Energy = clamp(p.Energy + sp.EnergyRegen*hours)
	p.UpdatedAt = now
}

func (p Pet) Mood() string {
	switch {
	case p.Fullness < sadThreshold || p.Happiness < sadThreshold:
		return MoodSad
	case p.Fullness >= happyThreshold && p.Happiness >= happyThreshold:
		return MoodHappy
	}
	return MoodOK
}

func (p Pet) NeedsAttention() bool {
	return p.Fullness < attentionThreshold || p.Happiness < attentionThreshold
}

func (p Pet) Level() int { return p.XP/levelXP + 1 }

// View is a materialized Pet with its derived state.
type View struct {
	Pet
	Mood           string `json:"mood"`
	NeedsAttention bool   `json:"needs_attention"`
	Level          int    `json:"level"`
}

func NewView(p Pet) View {
	return View{Pet: p, Mood: p.Mood(), NeedsAttention: p.NeedsAttention(), Level: p.Level()}
}

type AdoptPet struct {
	Species string `json:"species" validate:"required"`
	Name    string `json:"name" validate:"required,notblank,max=40"`
}

func (ap *AdoptPet) Validate(validate *validator.Validate) error {
	ap.Species = core.CleanString(ap.Species, true /* lower */)
	ap.Name = core.CleanString(ap.Name)
	return validate.Struct(ap)
}

type RenamePet struct {
	Name string `json:"name" validate:"required,notblank,max=40"`
}

func (rp *RenamePet) Validate(validate *validator.Validate) error {
	rp.Name = core.CleanString(rp.Name)
	return validate.Struct(rp)
}

type FeedPet struct {
	Item string `json:"item" validate:"required"`
}

func (fp *FeedPet) Validate(validate *validator.Validate) error {
	fp.Item = core.CleanString(fp.Item, true /* lower */)
	return validate.Struct(fp)
}
