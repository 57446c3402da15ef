package system

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSourceString checks the names used in log messages.
func TestSourceString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "lid", SourceLid.String())
	require.Equal(t, "power-source", SourcePower.String())
	require.Equal(t, "source(7)", Source(7).String())
}
