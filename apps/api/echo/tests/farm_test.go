package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core/farm"
	"github.com/edufarm/edufarm/core/user"
	"github.com/edufarm/edufarm/tests"
)

func zoneView(t *testing.T, view farm.FarmView, zoneID string) farm.ZoneView {
	for _, zv := range view.Zones {
		if zv.ID == zoneID {
			return zv
		}
	}
	t.Fatalf("zone %q not in view", zoneID)
	return farm.ZoneView{}
}

func Test_farmApi(t *testing.T) {
	app := setup(t)
	env := app.env
	clock := testutil.FreezeTime(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	advance := func(d time.Duration) { *clock = clock.Add(d) }

	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "", "", []string{user.RoleTeacher}, true)
	token := app.getToken(t, student)

	// do runs a farm request & decodes the returned view on success
	do := func(t *testing.T, method, path string, body string, wantCode int) farm.FarmView {
		t.Helper()
		var data []byte
		if body != "" {
			data = []byte(body)
		}
		rec := app.do(method, path, token, data)
		require.Equal(t, wantCode, rec.Code, rec.Body.String())
		var v farm.FarmView
		if wantCode < 300 {
			unmarshal(t, rec, &v)
		}
		return v
	}
	conflict := func(t *testing.T, path, body string, want error) {
		t.Helper()
		rec := app.do(http.MethodPost, path, token, []byte(body))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: want.Error()})}, rec)
	}
	notFound := func(t *testing.T, path, body string, want error) {
		t.Helper()
		rec := app.do(http.MethodPost, path, token, []byte(body))
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: want.Error()})}, rec)
	}

	// catalog & access
	rec := app.do(http.MethodGet, "/v1/catalog", token)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, env.Catalog)}, rec)
	rec = app.do(http.MethodGet, "/v1/farm", app.getToken(t, teacher))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	rec = app.do(http.MethodGet, "/v1/farm", "")
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	// lazily created
	v := do(t, http.MethodGet, "/v1/farm", "", http.StatusOK)
	assert.Equal(t, env.Conf.Game.StartingCoins, v.Coins)
	assert.Equal(t, 1, v.Level)
	assert.True(t, zoneView(t, v, "meadow").Unlocked)
	assert.False(t, zoneView(t, v, "lab_orchard").Unlocked)

	// plant & harvest
	rec = app.do(http.MethodPost, "/v1/farm/plots/plant", token, []byte(`{"zone":"meadow","seed":"wheat_seed"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"slot": "this field is required"})}, rec)

	v = do(t, http.MethodPost, "/v1/farm/plots/plant", `{"zone":"meadow","slot":0,"seed":"wheat_seed"}`, http.StatusOK)
	assert.Equal(t, env.Conf.Game.StartingCoins-2, v.Coins)

	conflict(t, "/v1/farm/plots/plant", `{"zone":"meadow","slot":0,"seed":"wheat_seed"}`, farm.ErrSlotOccupied)
	conflict(t, "/v1/farm/plots/plant", `{"zone":"meadow","slot":6,"seed":"wheat_seed"}`, farm.ErrSlotOutOfRange)
	conflict(t, "/v1/farm/plots/plant", `{"zone":"lab_orchard","slot":0,"seed":"apple_sapling"}`, farm.ErrZoneLocked)
	conflict(t, "/v1/farm/plots/plant", `{"zone":"meadow","slot":1,"seed":"apple_sapling"}`, farm.ErrWrongZone)
	notFound(t, "/v1/farm/plots/plant", `{"zone":"meadow","slot":1,"seed":"magic_bean"}`, farm.ErrSeedNotFound)
	notFound(t, "/v1/farm/plots/plant", `{"zone":"moon","slot":1,"seed":"wheat_seed"}`, farm.ErrZoneNotFound)
	conflict(t, "/v1/farm/plots/harvest", `{"zone":"meadow","slot":0}`, farm.ErrNotReady)
	conflict(t, "/v1/farm/plots/harvest", `{"zone":"meadow","slot":1}`, farm.ErrSlotEmpty)

	advance(time.Minute)
	v = do(t, http.MethodGet, "/v1/farm", "", http.StatusOK)
	plots := zoneView(t, v, "meadow").Plots
	require.NotEmpty(t, plots)
	assert.Equal(t, farm.StatusGrowing, plots[0].Status)
	assert.InDelta(t, 0.5, plots[0].Progress, 0.001)

	advance(time.Minute)
	v = do(t, http.MethodPost, "/v1/farm/plots/harvest", `{"zone":"meadow","slot":0}`, http.StatusOK)
	assert.Equal(t, 2, v.Inventory["wheat"])
	assert.Equal(t, 1, v.XP)

	// sell
	v = do(t, http.MethodPost, "/v1/farm/sell", `{"item":"wheat","quantity":1}`, http.StatusOK)
	assert.Equal(t, env.Conf.Game.StartingCoins-2+3, v.Coins)
	conflict(t, "/v1/farm/sell", `{"item":"wheat","quantity":5}`, farm.ErrInsufficientItems)
	notFound(t, "/v1/farm/sell", `{"item":"gold","quantity":1}`, farm.ErrItemNotFound)

	// animals
	v = do(t, http.MethodPost, "/v1/farm/animals", `{"zone":"meadow","animal":"chicken"}`, http.StatusCreated)
	assert.Equal(t, env.Conf.Game.StartingCoins-2+3-20, v.Coins)
	animals := zoneView(t, v, "meadow").Animals
	require.Len(t, animals, 1)
	animalPath := "/v1/farm/animals/" + animals[0].ID
	assert.Equal(t, farm.StatusHungry, animals[0].Status)

	conflict(t, animalPath+"/collect", ``, farm.ErrAnimalHungry)
	v = do(t, http.MethodPost, animalPath+"/feed", "", http.StatusOK)
	assert.Zero(t, v.Inventory["wheat"])
	conflict(t, animalPath+"/feed", ``, farm.ErrAnimalFed)
	conflict(t, animalPath+"/collect", ``, farm.ErrNotReady)
	notFound(t, "/v1/farm/animals/nope/feed", ``, farm.ErrAnimalNotFound)

	advance(10 * time.Minute)
	v = do(t, http.MethodPost, animalPath+"/collect", "", http.StatusOK)
	assert.Equal(t, 1, v.Inventory["egg"])
	assert.Equal(t, 4, v.XP)

	// productions
	conflict(t, "/v1/farm/productions", `{"zone":"meadow","recipe":"mill_flour"}`, farm.ErrInsufficientItems)
	notFound(t, "/v1/farm/productions", `{"zone":"meadow","recipe":"nope"}`, farm.ErrRecipeNotFound)
	notFound(t, "/v1/farm/productions/nope/collect", ``, farm.ErrProductionNotFound)

	// boosters
	notFound(t, "/v1/farm/boosters/nope/activate", ``, farm.ErrBoosterNotFound)
	conflict(t, "/v1/farm/boosters/super_fertilizer/activate", ``, farm.ErrInsufficientCoins)
	v = do(t, http.MethodPost, "/v1/farm/boosters/fertilizer/activate", "", http.StatusOK)
	assert.Equal(t, env.Conf.Game.StartingCoins-2+3-20-25, v.Coins)
	conflict(t, "/v1/farm/boosters/fertilizer/activate", ``, farm.ErrBoosterCoolingDown)

	// zones
	conflict(t, "/v1/farm/zones/lab_orchard/unlock", ``, farm.ErrLevelTooLow)
	conflict(t, "/v1/farm/zones/meadow/unlock", ``, farm.ErrZoneUnlocked)
	notFound(t, "/v1/farm/zones/moon/unlock", ``, farm.ErrZoneNotFound)
}

func Test_farmApi_boostedGrowth(t *testing.T) {
	app := setup(t)
	env := app.env
	clock := testutil.FreezeTime(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))

	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "", "", []string{user.RoleStudent}, true)
	token := app.getToken(t, student)

	rec := app.do(http.MethodPost, "/v1/farm/boosters/fertilizer/activate", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = app.do(http.MethodPost, "/v1/farm/plots/plant", token, []byte(`{"zone":"meadow","slot":0,"seed":"carrot_seed"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// x2 growth: 5m of growth in 2m30s
	*clock = clock.Add(2*time.Minute + 30*time.Second)
	rec = app.do(http.MethodPost, "/v1/farm/plots/harvest", token, []byte(`{"zone":"meadow","slot":0}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v farm.FarmView
	unmarshal(t, rec, &v)
	assert.Equal(t, 2, v.Inventory["carrot"])
}
