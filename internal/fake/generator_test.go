package fake

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gamestat/internal/codec"
	"github.com/woozymasta/gamestat/internal/models"
	"github.com/woozymasta/gamestat/internal/storage"
)

func TestSnapshot(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		snap := Snapshot(rng.Intn)

		assert.NotEmpty(t, snap.IP)
		assert.GreaterOrEqual(t, snap.Port, 2302)
		assert.NotEqual(t, models.ProtocolUnspecified, snap.Protocol)
		assert.Contains(t, snap.Rules, "version")

		if snap.Status == models.StatusUp {
			require.NotNil(t, snap.NumClients)
			require.NotNil(t, snap.MaxClients)
			assert.LessOrEqual(t, *snap.NumClients, *snap.MaxClients)
		} else {
			assert.Nil(t, snap.Name)
		}
	}
}

func TestGenerateData(t *testing.T) {
	for _, profile := range []codec.Profile{codec.ProfileHost, codec.ProfileAddr} {
		t.Run(string(profile), func(t *testing.T) {
			store, err := storage.New(filepath.Join(t.TempDir(), "fake.db"), string(profile))
			require.NoError(t, err)
			defer store.Close()

			c, err := codec.New(profile)
			require.NoError(t, err)

			GenerateData(store, c, 25)

			entries, err := store.List(storage.Filter{})
			require.NoError(t, err)
			require.NotEmpty(t, entries)
			assert.LessOrEqual(t, len(entries), 25)

			for _, e := range entries {
				rec, err := c.Decode(e.Document)
				require.NoError(t, err)
				assert.Equal(t, e.Endpoint, rec.Summary().Endpoint)
				assert.GreaterOrEqual(t, e.Count, int64(1))
			}
		})
	}
}
