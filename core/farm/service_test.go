package farm_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core/farm"
	"github.com/edufarm/edufarm/core/user"
	"github.com/edufarm/edufarm/tests"
)

func slot(i int) *int { return &i }

func TestService_ProductionWithBooster(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	clock := testutil.FreezeTime(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "", "", user.StudentRoles, true)

	for i := 0; i < 2; i++ {
		_, err := env.FarmSvc.Plant(ctx, student.ID, farm.PlantSeed{Zone: "meadow", Slot: slot(i), Seed: "wheat_seed"})
		require.NoError(t, err)
	}
	*clock = clock.Add(2 * time.Minute)
	for i := 0; i < 2; i++ {
		_, err := env.FarmSvc.Harvest(ctx, student.ID, farm.HarvestPlot{Zone: "meadow", Slot: slot(i)})
		require.NoError(t, err)
	}

	view, err := env.FarmSvc.StartProduction(ctx, student.ID, farm.StartProduction{Zone: "meadow", Recipe: "mill_flour"})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Inventory["wheat"])
	meadow := view.Zones[0]
	require.Len(t, meadow.Productions, 1)
	prodID := meadow.Productions[0].ID

	_, err = env.FarmSvc.StartProduction(ctx, student.ID, farm.StartProduction{Zone: "meadow", Recipe: "mill_flour"})
	assert.Equal(t, farm.ErrNoFreeSlot, errors.Cause(err))

	view, err = env.FarmSvc.ActivateBooster(ctx, student.ID, "overtime")
	require.NoError(t, err)
	assert.Equal(t, env.Conf.Game.StartingCoins-4-40, view.Coins)

	*clock = clock.Add(2 * time.Minute)
	_, err = env.FarmSvc.CollectProduction(ctx, student.ID, prodID)
	assert.Equal(t, farm.ErrNotReady, errors.Cause(err))

	*clock = clock.Add(30 * time.Second)
	view, err = env.FarmSvc.CollectProduction(ctx, student.ID, prodID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Inventory["flour"])
	assert.Equal(t, 2+3, view.XP)
	assert.Empty(t, view.Zones[0].Productions)

	_, err = env.FarmSvc.CollectProduction(ctx, student.ID, prodID)
	assert.Equal(t, farm.ErrProductionNotFound, errors.Cause(err))
}

func TestService_RewardIsAtomic(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "", "", user.StudentRoles, true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.FarmSvc.Reward(ctx, student.ID, 1, 5, "test"))
		}()
	}
	wg.Wait()

	view, err := env.FarmSvc.Get(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, env.Conf.Game.StartingCoins+20, view.Coins)
	assert.Equal(t, 100, view.XP)
	assert.Equal(t, 2, view.Level)

	var created, levelUps int
	for _, typ := range env.Events.Types() {
		switch typ {
		case farm.EventCreated:
			created++
		case farm.EventLevelUp:
			levelUps++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, levelUps)
}

func TestService_SpendAndConsume(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, env.UserRepo, "Hero", "hero", "", "", user.StudentRoles, true)

	err := env.FarmSvc.Spend(ctx, student.ID, env.Conf.Game.StartingCoins+1, "too much")
	assert.Equal(t, farm.ErrInsufficientCoins, errors.Cause(err))
	require.NoError(t, env.FarmSvc.Spend(ctx, student.ID, 10, "test"))

	err = env.FarmSvc.ConsumeItem(ctx, student.ID, "gold", 1)
	assert.Equal(t, farm.ErrItemNotFound, errors.Cause(err))
	err = env.FarmSvc.ConsumeItem(ctx, student.ID, "wheat", 1)
	assert.Equal(t, farm.ErrInsufficientItems, errors.Cause(err))

	view, err := env.FarmSvc.Get(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, env.Conf.Game.StartingCoins-10, view.Coins)
	assert.Empty(t, view.Inventory)

	err = env.FarmSvc.RestockItem(ctx, student.ID, "gold", 1)
	assert.Equal(t, farm.ErrItemNotFound, errors.Cause(err))
	require.NoError(t, env.FarmSvc.RestockItem(ctx, student.ID, "wheat", 2))
	require.NoError(t, env.FarmSvc.ConsumeItem(ctx, student.ID, "wheat", 1))
	view, err = env.FarmSvc.Get(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"wheat": 1}, view.Inventory)
}
