package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRemoteWithPort(t *testing.T) {
	ep, err := Parse("u@h:22/tank/x")
	require.NoError(t, err)
	require.Equal(t, "u", ep.User)
	require.Equal(t, "h", ep.Host)
	require.Equal(t, 22, ep.Port)
	require.Equal(t, "tank/x", ep.Dataset)
	require.False(t, ep.IsLocal())
}

func TestParseRemoteNoUserNoPort(t *testing.T) {
	ep, err := Parse("host/tank/ds")
	require.NoError(t, err)
	require.Equal(t, "", ep.User)
	require.Equal(t, "host", ep.Host)
	require.Equal(t, 0, ep.Port)
	require.Equal(t, "tank/ds", ep.Dataset)
}

func TestParseLocalLeadingSlash(t *testing.T) {
	ep, err := Parse("/tank/ds")
	require.NoError(t, err)
	require.True(t, ep.IsLocal())
	require.Equal(t, "tank/ds", ep.Dataset)
}

// A bare single-token spec (no "/" anywhere) is a local dataset path, not a
// remote host with no dataset: spec.md's grammar only ever admits a netloc
// when it's followed by "/", so a bare token can't match netloc at all. This
// is a deliberate divergence from original_source's parse_dataset, which
// reads a bare token as a remote host instead (see endpoint.go's comment).
func TestParseLocalBarePool(t *testing.T) {
	ep, err := Parse("tank")
	require.NoError(t, err)
	require.True(t, ep.IsLocal())
	require.Equal(t, "", ep.Host)
	require.Equal(t, "tank", ep.Dataset)
}

func TestParseRejectsEmptyComponents(t *testing.T) {
	tests := []string{
		"",
		"@host/tank",
		"user@/tank",
		"host:/tank",
		"host/",
		"/",
		"host:abc/tank",
		"ho st/tank",
		"host/ta nk",
	}
	for _, spec := range tests {
		_, err := Parse(spec)
		require.Errorf(t, err, "expected error for %q", spec)
	}
}
