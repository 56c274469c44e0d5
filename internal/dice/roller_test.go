package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/undercroft/undercroft/internal/dice"
	mockdice "github.com/undercroft/undercroft/internal/dice/mock"
)

func TestMockRoller_Roll(t *testing.T) {
	tests := []struct {
		name       string
		setupRolls []int
		count      int
		sides      int
		bonus      int
		wantTotal  int
		wantRolls  []int
		wantErr    bool
	}{
		{
			name:       "single d20 roll",
			setupRolls: []int{15},
			count:      1,
			sides:      20,
			bonus:      0,
			wantTotal:  15,
			wantRolls:  []int{15},
		},
		{
			name:       "2d6+3",
			setupRolls: []int{4, 5},
			count:      2,
			sides:      6,
			bonus:      3,
			wantTotal:  12, // 4+5+3
			wantRolls:  []int{4, 5},
		},
		{
			name:       "not enough rolls",
			setupRolls: []int{10},
			count:      2,
			sides:      6,
			bonus:      0,
			wantErr:    true,
		},
		{
			name:       "invalid roll for die size",
			setupRolls: []int{7},
			count:      1,
			sides:      6,
			bonus:      0,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roller := mockdice.NewManualMockRoller()
			roller.SetRolls(tt.setupRolls)

			result, err := roller.Roll(tt.count, tt.sides, tt.bonus)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, result.Total)
			assert.Equal(t, tt.wantRolls, result.Rolls)
		})
	}
}

func TestMockRoller_CritAndFumble(t *testing.T) {
	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{20, 1, 15})

	result, err := roller.Roll(1, 20, 0)
	require.NoError(t, err)
	assert.True(t, result.IsCrit)
	assert.False(t, result.IsFumble)

	result, err = roller.Roll(1, 20, 0)
	require.NoError(t, err)
	assert.False(t, result.IsCrit)
	assert.True(t, result.IsFumble)

	result, err = roller.Roll(1, 20, 0)
	require.NoError(t, err)
	assert.False(t, result.IsCrit)
	assert.False(t, result.IsFumble)
}

func TestRandomRoller_Bounds(t *testing.T) {
	roller := dice.NewRandomRoller()

	result, err := roller.Roll(2, 6, 3)
	require.NoError(t, err)
	assert.Len(t, result.Rolls, 2)
	assert.GreaterOrEqual(t, result.Total, 5) // minimum: 1+1+3
	assert.LessOrEqual(t, result.Total, 15)   // maximum: 6+6+3
	assert.Equal(t, result.Total-3, result.RawTotal)

	advResult, err := roller.RollWithAdvantage(20, 2)
	require.NoError(t, err)
	assert.Len(t, advResult.Rolls, 2, "advantage should roll twice")
	high := advResult.Rolls[0]
	if advResult.Rolls[1] > high {
		high = advResult.Rolls[1]
	}
	assert.Equal(t, high+2, advResult.Total)

	disResult, err := roller.RollWithDisadvantage(20, 2)
	require.NoError(t, err)
	assert.Len(t, disResult.Rolls, 2, "disadvantage should roll twice")
	low := disResult.Rolls[0]
	if disResult.Rolls[1] < low {
		low = disResult.Rolls[1]
	}
	assert.Equal(t, low+2, disResult.Total)
}

func TestRandomRoller_InvalidArguments(t *testing.T) {
	roller := dice.NewRandomRoller()

	_, err := roller.Roll(0, 6, 0)
	assert.Error(t, err)

	_, err = roller.Roll(1, 0, 0)
	assert.Error(t, err)
}
