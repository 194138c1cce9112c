package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gamestat/internal/config"
	"github.com/woozymasta/gamestat/internal/models"
)

func TestFromInfo(t *testing.T) {
	info := &a2s.Info{
		Name:       "DayZ PvE",
		Map:        "chernarusplus",
		Game:       "DayZ",
		Version:    "1.25.170000",
		Players:    12,
		MaxPlayers: 60,
	}

	snap := fromInfo("203.0.113.7", 2303, info, 35*time.Millisecond)

	assert.Equal(t, models.StatusUp, snap.Status)
	assert.Equal(t, models.ProtocolA2S, snap.Protocol)
	assert.Equal(t, models.Unspecified, snap.Country)
	require.NotNil(t, snap.Name)
	assert.Equal(t, "DayZ PvE", *snap.Name)
	assert.Equal(t, "chernarusplus", *snap.Terrain)
	assert.Equal(t, "DayZ", *snap.GameType)
	assert.Equal(t, int64(12), *snap.NumClients)
	assert.Equal(t, int64(60), *snap.MaxClients)
	assert.Equal(t, int64(35), *snap.Ping)
	assert.Equal(t, "1.25.170000", snap.Rules["version"])
	assert.Nil(t, snap.ModName)
	assert.Nil(t, snap.NeedPass)
}

func TestFromInfoEmptyStrings(t *testing.T) {
	snap := fromInfo("203.0.113.7", 2303, &a2s.Info{}, 0)

	assert.Nil(t, snap.Name)
	assert.Nil(t, snap.Terrain)
	assert.Nil(t, snap.GameType)
	assert.NotNil(t, snap.NumClients)
}

func TestProbeRejectsIPv6(t *testing.T) {
	p := NewA2S(config.Probe{Timeout: time.Second, BufferSize: 1400})

	snap, err := p.Probe("::1", 27015)
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
	assert.Equal(t, models.StatusDown, snap.Status)

	_, err = p.Probe("not-an-ip", 27015)
	assert.ErrorIs(t, err, ErrUnsupportedAddress)
}
