package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToDisplay(t *testing.T) {
	t.Run("scales by the precision", func(t *testing.T) {
		out, err := IntToDisplay(sdkmath.NewInt(1234500), 6)
		require.NoError(t, err)
		assert.InDelta(t, 1.2345, out, 1e-9)
	})

	t.Run("precision zero passes through", func(t *testing.T) {
		out, err := IntToDisplay(sdkmath.NewInt(42), 0)
		require.NoError(t, err)
		assert.Equal(t, 42.0, out)
	})

	t.Run("invalid precision is rejected", func(t *testing.T) {
		_, err := IntToDisplay(sdkmath.NewInt(1), -1)
		assert.ErrorIs(t, err, ErrInvalidPrecision)
		_, err = IntToDisplay(sdkmath.NewInt(1), 19)
		assert.ErrorIs(t, err, ErrInvalidPrecision)
	})

	t.Run("nil and negative amounts are rejected", func(t *testing.T) {
		_, err := IntToDisplay(sdkmath.Int{}, 6)
		assert.ErrorIs(t, err, ErrAmountNil)
		_, err = IntToDisplay(sdkmath.NewInt(-1), 6)
		assert.ErrorIs(t, err, ErrAmountNegative)
	})
}

func TestDisplayToInt(t *testing.T) {
	t.Run("scales display values into base units", func(t *testing.T) {
		out, err := DisplayToInt(1.2345, 6)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(1234500), out)
	})

	t.Run("zero is zero", func(t *testing.T) {
		out, err := DisplayToInt(0, 6)
		require.NoError(t, err)
		assert.True(t, out.IsZero())
	})

	t.Run("negative and non-finite values are rejected", func(t *testing.T) {
		_, err := DisplayToInt(-1.5, 6)
		assert.ErrorIs(t, err, ErrAmountNegative)
	})

	t.Run("round trips with IntToDisplay", func(t *testing.T) {
		base := sdkmath.NewInt(987654321)
		display, err := IntToDisplay(base, 6)
		require.NoError(t, err)
		back, err := DisplayToInt(display, 6)
		require.NoError(t, err)
		assert.Equal(t, base, back)
	})
}
