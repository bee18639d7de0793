package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTask_Reward(t *testing.T) {
	tsk := Task{MaxScore: 20, RewardCoins: 30, RewardXP: 15, LatePenaltyPercent: 50}

	tests := []struct {
		name      string
		score     int
		late      bool
		wantCoins int
		wantXP    int
	}{
		{name: "full score", score: 20, wantCoins: 30, wantXP: 15},
		{name: "half score", score: 10, wantCoins: 15, wantXP: 8}, // 7.5 rounds up
		{name: "zero", score: 0},
		{name: "late full score", score: 20, late: true, wantCoins: 15, wantXP: 8},
		{name: "late partial score", score: 13, late: true, wantCoins: 10, wantXP: 5}, // 9.75, 4.875
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coins, xp := tsk.Reward(tt.score, tt.late)
			assert.Equal(t, tt.wantCoins, coins)
			assert.Equal(t, tt.wantXP, xp)
		})
	}

	t.Run("no max score", func(t *testing.T) {
		coins, xp := Task{RewardCoins: 10}.Reward(5, false)
		assert.Zero(t, coins)
		assert.Zero(t, xp)
	})
}

func TestTask_IsLate(t *testing.T) {
	due := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	tsk := Task{DueAt: &due}

	assert.False(t, Task{}.IsLate(due), "no due date")
	assert.False(t, tsk.IsLate(due.Add(-time.Second)))
	assert.False(t, tsk.IsLate(due))
	assert.True(t, tsk.IsLate(due.Add(time.Second)))
}
