package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/undercroft/undercroft/internal/dice"
	mockdice "github.com/undercroft/undercroft/internal/dice/mock"
)

func TestParseNotation(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    dice.Notation
		wantErr bool
	}{
		{
			name: "plain dice",
			expr: "2d6",
			want: dice.Notation{Count: 2, Sides: 6},
		},
		{
			name: "with positive modifier",
			expr: "1d8+3",
			want: dice.Notation{Count: 1, Sides: 8, Modifier: 3},
		},
		{
			name: "with negative modifier",
			expr: "3d4-2",
			want: dice.Notation{Count: 3, Sides: 4, Modifier: -2},
		},
		{
			name: "implicit count",
			expr: "d20",
			want: dice.Notation{Count: 1, Sides: 20},
		},
		{
			name: "uppercase and whitespace",
			expr: " 2D10+1 ",
			want: dice.Notation{Count: 2, Sides: 10, Modifier: 1},
		},
		{
			name:    "garbage",
			expr:    "banana",
			wantErr: true,
		},
		{
			name:    "zero count",
			expr:    "0d6",
			wantErr: true,
		},
		{
			name:    "zero sides",
			expr:    "1d0",
			wantErr: true,
		},
		{
			name:    "empty",
			expr:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dice.ParseNotation(tt.expr)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNotationOrDefault_DegradesToD20(t *testing.T) {
	n := dice.ParseNotationOrDefault("not dice at all")
	assert.Equal(t, dice.DefaultNotation, n)

	n = dice.ParseNotationOrDefault("2d6+1")
	assert.Equal(t, dice.Notation{Count: 2, Sides: 6, Modifier: 1}, n)
}

func TestRollNotation_UnparseableFallsBackToD20(t *testing.T) {
	roller := mockdice.NewManualMockRoller()
	roller.SetRolls([]int{14})

	result, err := dice.RollNotation(roller, "???")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 20, result.Sides)
	assert.Equal(t, 14, result.Total)
}

func TestRollAttack(t *testing.T) {
	tests := []struct {
		name         string
		roll         int
		attackBonus  int
		targetAC     int
		wantHit      bool
		wantCritical bool
	}{
		{
			name:         "natural 20 hits and crits regardless of AC",
			roll:         20,
			attackBonus:  0,
			targetAC:     99,
			wantHit:      true,
			wantCritical: true,
		},
		{
			name:        "natural 1 misses regardless of bonus",
			roll:        1,
			attackBonus: 50,
			targetAC:    5,
			wantHit:     false,
		},
		{
			name:        "meets AC exactly",
			roll:        10,
			attackBonus: 2,
			targetAC:    12,
			wantHit:     true,
		},
		{
			name:        "one under AC misses",
			roll:        10,
			attackBonus: 1,
			targetAC:    12,
			wantHit:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roller := mockdice.NewManualMockRoller()
			roller.SetRolls([]int{tt.roll})

			result, err := dice.RollAttack(roller, tt.attackBonus, tt.targetAC)

			require.NoError(t, err)
			assert.Equal(t, tt.roll, result.Roll)
			assert.Equal(t, tt.roll+tt.attackBonus, result.Total)
			assert.Equal(t, tt.wantHit, result.Hit)
			assert.Equal(t, tt.wantCritical, result.Critical)
		})
	}
}

func TestRollDamage(t *testing.T) {
	t.Run("critical doubles dice but not modifier", func(t *testing.T) {
		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{3, 5})

		dmg, err := dice.RollDamage(roller, "1d6+2", true)

		require.NoError(t, err)
		assert.Equal(t, 10, dmg) // 3+5 dice, +2 once
	})

	t.Run("normal hit rolls once", func(t *testing.T) {
		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{4})

		dmg, err := dice.RollDamage(roller, "1d6+2", false)

		require.NoError(t, err)
		assert.Equal(t, 6, dmg)
	})

	t.Run("never negative", func(t *testing.T) {
		roller := mockdice.NewManualMockRoller()
		roller.SetRolls([]int{1})

		dmg, err := dice.RollDamage(roller, "1d4-10", false)

		require.NoError(t, err)
		assert.Equal(t, 0, dmg)
	})

	t.Run("critical consumes twice the dice", func(t *testing.T) {
		normal := mockdice.NewManualMockRoller()
		normal.SetRolls([]int{2, 2})
		crit := mockdice.NewManualMockRoller()
		crit.SetRolls([]int{2, 2, 2, 2})

		_, err := dice.RollDamage(normal, "2d6", false)
		require.NoError(t, err)
		_, err = dice.RollDamage(crit, "2d6", true)
		require.NoError(t, err)

		// A fifth normal roll would fail: all four were consumed by the crit
		_, err = crit.Roll(1, 6, 0)
		assert.Error(t, err)
	})
}
