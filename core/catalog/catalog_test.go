package catalog

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core"
	appfs "github.com/edufarm/edufarm/fs"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

func TestLoadEmbedded(t *testing.T) {
	cat, err := Load(appfs.FS, appfs.CatalogPath, newValidator())
	require.NoError(t, err)

	zone, ok := cat.Zone(cat.StartingZone)
	require.True(t, ok)
	assert.Equal(t, 0, zone.UnlockCost)

	seed, ok := cat.Seed("wheat_seed")
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, seed.Growth)

	recipe, ok := cat.Recipe("bake_bread")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"flour": 2, "egg": 1}, recipe.Inputs)

	booster, ok := cat.Booster("fertilizer")
	require.True(t, ok)
	assert.Equal(t, BoostGrowth, booster.Kind)
	assert.Equal(t, 2*time.Hour, booster.Cooldown)

	_, ok = cat.SpeciesByID("puppy")
	assert.True(t, ok)
	_, ok = cat.Item("nope")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	base := `
starting_zone: z
level_xp: 100
zones: [{id: z, name: Z, subject: math, unlock_level: 1, plot_slots: 1}]
items: [{id: wheat, name: Wheat}]
`
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{
			name:    "unknown item",
			extra:   "seeds: [{id: s, name: S, zone: z, growth: 1m, yield_item: rice, yield_qty: 1}]",
			wantErr: `unknown item "rice"`,
		},
		{
			name:    "unknown zone",
			extra:   "seeds: [{id: s, name: S, zone: nowhere, growth: 1m, yield_item: wheat, yield_qty: 1}]",
			wantErr: `unknown zone "nowhere"`,
		},
		{
			name:    "multiplier below 1",
			extra:   "boosters: [{id: b, name: B, kind: growth, multiplier: 0.5, duration: 1m}]",
			wantErr: "validating catalog",
		},
		{
			name:    "zero duration",
			extra:   "seeds: [{id: s, name: S, zone: z, growth: 0s, yield_item: wheat, yield_qty: 1}]",
			wantErr: "validating catalog",
		},
		{
			name:    "duplicate id",
			extra:   "seeds: [{id: s, name: S, zone: z, growth: 1m, yield_item: wheat, yield_qty: 1}, {id: s, name: S2, zone: z, growth: 2m, yield_item: wheat, yield_qty: 1}]",
			wantErr: `duplicate seed "s"`,
		},
		{
			name:    "unknown field",
			extra:   "farms: []",
			wantErr: "decoding catalog",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(base+tt.extra+"\n"), newValidator())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCatalog_Level(t *testing.T) {
	cat := &Catalog{LevelXP: 100}
	assert.Equal(t, 1, cat.Level(0))
	assert.Equal(t, 1, cat.Level(99))
	assert.Equal(t, 2, cat.Level(100))
	assert.Equal(t, 4, cat.Level(350))
}
