package fixedpoint

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func i(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

func TestFeeVault_FixedPoint_MulDiv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(x, y, d sdkmath.Int) (sdkmath.Int, error)
		x, y int64
		d    int64
		want int64
	}{
		{"mul floor exact", MulFloor, 2_0000000, 3_0000000, 1_0000000, 6_0000000},
		{"mul floor rounds down", MulFloor, 1, 1, 3, 0},
		{"mul ceil rounds up", MulCeil, 1, 1, 3, 1},
		{"mul floor negative rounds away from zero", MulFloor, -1, 1, 3, -1},
		{"mul ceil negative rounds toward zero", MulCeil, -1, 1, 3, 0},
		{"div floor", DivFloor, 1_0000000, 3_0000000, 1_0000000, 3333333},
		{"div ceil", DivCeil, 1_0000000, 3_0000000, 1_0000000, 3333334},
		{"div floor negative", DivFloor, -1_0000000, 3_0000000, 1_0000000, -3333334},
		{"div floor negative divisor", DivFloor, 1_0000000, -3_0000000, 1_0000000, -3333334},
		{"div ceil negative divisor", DivCeil, 1_0000000, -3_0000000, 1_0000000, -3333333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.fn(i(tt.x), i(tt.y), i(tt.d))
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestFeeVault_FixedPoint_DivideByZero(t *testing.T) {
	t.Parallel()

	_, err := MulFloor(i(1), i(1), i(0))
	require.ErrorIs(t, err, ErrDivideByZero)
	_, err = DivCeil(i(1), i(0), Scalar7)
	require.ErrorIs(t, err, ErrDivideByZero)
}

func TestFeeVault_FixedPoint_Overflow(t *testing.T) {
	t.Parallel()

	maxI128, ok := sdkmath.NewIntFromString("170141183460469231731687303715884105727")
	require.True(t, ok)

	t.Run("intermediate product may exceed i128", func(t *testing.T) {
		t.Parallel()
		got, err := MulFloor(maxI128, Scalar12, Scalar12)
		require.NoError(t, err)
		require.True(t, got.Equal(maxI128))
	})

	t.Run("result above i128 fails", func(t *testing.T) {
		t.Parallel()
		_, err := MulFloor(maxI128, i(2), i(1))
		require.ErrorIs(t, err, ErrOverflow)
		_, err = Add(maxI128, i(1))
		require.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("min i128 is representable", func(t *testing.T) {
		t.Parallel()
		minI128, err := Sub(maxI128.Neg(), i(1))
		require.NoError(t, err)
		require.True(t, InRange(minI128))
		_, err = Sub(minI128, i(1))
		require.ErrorIs(t, err, ErrOverflow)
	})
}

func TestFeeVault_FixedPoint_Decimal(t *testing.T) {
	t.Parallel()

	t.Run("renders raw values", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "12.5", ToDecimal(i(12_5000000), Decimals7).String())
		require.Equal(t, "1.1", ToDecimal(i(1_100_000_000_000), Decimals12).String())
		require.Equal(t, "-0.0000001", ToDecimal(i(-1), Decimals7).String())
	})

	t.Run("parses human amounts", func(t *testing.T) {
		t.Parallel()
		v, err := ParseDecimal("12.5", Decimals7)
		require.NoError(t, err)
		require.Equal(t, int64(12_5000000), v.Int64())

		v, err = ParseDecimal("0.0000001", Decimals7)
		require.NoError(t, err)
		require.Equal(t, int64(1), v.Int64())
	})

	t.Run("rejects excess precision", func(t *testing.T) {
		t.Parallel()
		_, err := ParseDecimal("0.00000001", Decimals7)
		require.ErrorIs(t, err, ErrPrecision)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()
		_, err := ParseDecimal("abc", Decimals7)
		require.Error(t, err)
		_, err = Parse("12.5")
		require.Error(t, err)
	})
}
