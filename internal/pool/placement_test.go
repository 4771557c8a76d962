package pool

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view(index int, active bool, total int64) StrategyView {
	return StrategyView{
		Index:       index,
		Active:      active,
		TotalAssets: sdkmath.NewInt(total),
		MaxDeposit:  sdkmath.NewInt(1 << 40),
	}
}

func TestNewPlacementPolicy(t *testing.T) {
	policy, err := NewPlacementPolicy("")
	require.NoError(t, err)
	assert.Equal(t, "first-active", policy.Name())

	policy, err = NewPlacementPolicy("proportional")
	require.NoError(t, err)
	assert.Equal(t, "proportional", policy.Name())

	_, err = NewPlacementPolicy("round-robin")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestFirstActivePlacement(t *testing.T) {
	t.Run("skips inactive entries", func(t *testing.T) {
		views := []StrategyView{view(0, false, 0), view(1, true, 50), view(2, true, 0)}
		allocs, err := FirstActive{}.Place(views, sdkmath.NewInt(1000))
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, 1, allocs[0].Index)
		assert.Equal(t, sdkmath.NewInt(1000), allocs[0].Amount)
	})

	t.Run("fails with no active entry", func(t *testing.T) {
		views := []StrategyView{view(0, false, 0)}
		_, err := FirstActive{}.Place(views, sdkmath.NewInt(1000))
		assert.ErrorIs(t, err, ErrNoActiveStrategy)
	})
}

func TestProportionalPlacement(t *testing.T) {
	t.Run("splits pro-rata with remainder to the largest entry", func(t *testing.T) {
		views := []StrategyView{view(0, true, 300), view(1, true, 600), view(2, true, 100)}
		allocs, err := Proportional{}.Place(views, sdkmath.NewInt(1000))
		require.NoError(t, err)

		byIndex := make(map[int]sdkmath.Int)
		sum := sdkmath.ZeroInt()
		for _, a := range allocs {
			byIndex[a.Index] = a.Amount
			sum = sum.Add(a.Amount)
		}
		// 300 and 100 get their exact shares; index 1 absorbs the rest.
		assert.Equal(t, sdkmath.NewInt(300), byIndex[0])
		assert.Equal(t, sdkmath.NewInt(600), byIndex[1])
		assert.Equal(t, sdkmath.NewInt(100), byIndex[2])
		assert.Equal(t, sdkmath.NewInt(1000), sum, "allocations must cover the full deposit")
	})

	t.Run("rounding remainder lands on the largest entry", func(t *testing.T) {
		views := []StrategyView{view(0, true, 1), view(1, true, 2)}
		allocs, err := Proportional{}.Place(views, sdkmath.NewInt(100))
		require.NoError(t, err)

		byIndex := make(map[int]sdkmath.Int)
		for _, a := range allocs {
			byIndex[a.Index] = a.Amount
		}
		// floor(100*1/3)=33 to index 0, the remaining 67 to index 1.
		assert.Equal(t, sdkmath.NewInt(33), byIndex[0])
		assert.Equal(t, sdkmath.NewInt(67), byIndex[1])
	})

	t.Run("ignores inactive entries entirely", func(t *testing.T) {
		views := []StrategyView{view(0, false, 900), view(1, true, 100)}
		allocs, err := Proportional{}.Place(views, sdkmath.NewInt(500))
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, 1, allocs[0].Index)
		assert.Equal(t, sdkmath.NewInt(500), allocs[0].Amount)
	})

	t.Run("falls back to first-active when all entries are empty", func(t *testing.T) {
		views := []StrategyView{view(0, true, 0), view(1, true, 0)}
		allocs, err := Proportional{}.Place(views, sdkmath.NewInt(500))
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, 0, allocs[0].Index)
	})

	t.Run("fails with no active entry", func(t *testing.T) {
		_, err := Proportional{}.Place(nil, sdkmath.NewInt(500))
		assert.ErrorIs(t, err, ErrNoActiveStrategy)
	})
}

func TestExplicitTargetPlacement(t *testing.T) {
	views := []StrategyView{view(0, true, 100), view(1, false, 0)}

	t.Run("routes everything to the chosen entry", func(t *testing.T) {
		allocs, err := ExplicitTarget{Index: 0}.Place(views, sdkmath.NewInt(250))
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, 0, allocs[0].Index)
		assert.Equal(t, sdkmath.NewInt(250), allocs[0].Amount)
	})

	t.Run("inactive target is refused", func(t *testing.T) {
		_, err := ExplicitTarget{Index: 1}.Place(views, sdkmath.NewInt(250))
		assert.ErrorIs(t, err, ErrNoActiveStrategy)
	})

	t.Run("unregistered target is refused", func(t *testing.T) {
		_, err := ExplicitTarget{Index: 7}.Place(views, sdkmath.NewInt(250))
		assert.ErrorIs(t, err, ErrNoActiveStrategy)
	})
}
