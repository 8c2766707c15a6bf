package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumericCodeLengthAndCharset(t *testing.T) {
	for _, n := range []int{4, 6, 8} {
		code, err := NumericCode(n)
		require.NoError(t, err)
		require.Len(t, code, n)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "unexpected character %q in %q", r, code)
		}
	}
}

func TestNumericCodeDefaultsLength(t *testing.T) {
	code, err := NumericCode(0)
	require.NoError(t, err)
	require.Len(t, code, 6)
}
