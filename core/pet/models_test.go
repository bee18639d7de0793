package pet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edufarm/edufarm/core/catalog"
)

func TestPet_Materialize(t *testing.T) {
	sp := catalog.Species{
		Decay:       catalog.Decay{Fullness: 10, Happiness: 5},
		EnergyRegen: 20,
	}
	t0 := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name                          string
		elapsed                       time.Duration
		fullness, happiness, energy   float64
		wantFull, wantHappy, wantEner float64
	}{
		{name: "no time", fullness: 50, happiness: 50, energy: 50, wantFull: 50, wantHappy: 50, wantEner: 50},
		{name: "linear decay", elapsed: 2 * time.Hour, fullness: 50, happiness: 50, energy: 50, wantFull: 30, wantHappy: 40, wantEner: 90},
		{
			name:    "starving doubles happiness decay",
			elapsed: 4 * time.Hour, // fed for 2h, starving for 2h
			fullness: 20, happiness: 60, energy: 0,
			wantFull: 0, wantHappy: 60 - 5*2 - 10*2, wantEner: 80,
		},
		{name: "already starving", elapsed: time.Hour, fullness: 0, happiness: 30, energy: 95, wantFull: 0, wantHappy: 20, wantEner: 100},
		{name: "clamped at zero", elapsed: 48 * time.Hour, fullness: 80, happiness: 80, energy: 10, wantFull: 0, wantHappy: 0, wantEner: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Pet{Fullness: tt.fullness, Happiness: tt.happiness, Energy: tt.energy, UpdatedAt: t0}
			p.Materialize(sp, t0.Add(tt.elapsed))
			assert.InDelta(t, tt.wantFull, p.Fullness, 1e-9)
			assert.InDelta(t, tt.wantHappy, p.Happiness, 1e-9)
			assert.InDelta(t, tt.wantEner, p.Energy, 1e-9)
			assert.Equal(t, t0.Add(tt.elapsed), p.UpdatedAt)
		})
	}
}

func TestPet_Mood(t *testing.T) {
	tests := []struct {
		fullness, happiness float64
		wantMood            string
		wantAttention       bool
	}{
		{fullness: 80, happiness: 50, wantMood: MoodHappy},
		{fullness: 49, happiness: 90, wantMood: MoodOK},
		{fullness: 25, happiness: 90, wantMood: MoodOK, wantAttention: true},
		{fullness: 90, happiness: 19.9, wantMood: MoodSad, wantAttention: true},
		{fullness: 0, happiness: 0, wantMood: MoodSad, wantAttention: true},
	}
	for _, tt := range tests {
		p := Pet{Fullness: tt.fullness, Happiness: tt.happiness}
		assert.Equal(t, tt.wantMood, p.Mood(), "%+v", tt)
		assert.Equal(t, tt.wantAttention, p.NeedsAttention(), "%+v", tt)
	}
}
