package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gamestat/internal/models"
)

func newRepo(t *testing.T, profile string) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"), profile)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func summary(endpoint, country string, status models.Status) models.Summary {
	return models.Summary{
		Endpoint: endpoint,
		Protocol: models.ProtocolA2S,
		Status:   status,
		Country:  models.DecodeCountry(country),
	}
}

func TestUpsertAndGet(t *testing.T) {
	repo := newRepo(t, "host")
	first := time.Now().Add(-time.Hour).UTC()
	doc := []byte(`{"host":"1.2.3.4:27015"}`)

	require.NoError(t, repo.Upsert(summary("1.2.3.4:27015", "RU", models.StatusUp), doc, first))

	e, err := repo.Get("1.2.3.4:27015")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "1.2.3.4:27015", e.Endpoint)
	assert.Equal(t, models.ProtocolA2S, e.Protocol)
	assert.Equal(t, models.StatusUp, e.Status)
	assert.Equal(t, models.DecodeCountry("RU"), e.Country)
	assert.JSONEq(t, string(doc), string(e.Document))
	assert.Equal(t, Checksum(doc), e.Checksum)
	assert.Equal(t, int64(1), e.Count)
	assert.WithinDuration(t, first, e.FirstSeen, time.Second)

	// country is kept when the update has none
	second := time.Now().UTC()
	doc2 := []byte(`{"host":"1.2.3.4:27015","status":"Down"}`)
	require.NoError(t, repo.Upsert(summary("1.2.3.4:27015", "", models.StatusDown), doc2, second))

	e, err = repo.Get("1.2.3.4:27015")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Count)
	assert.Equal(t, models.StatusDown, e.Status)
	assert.Equal(t, models.DecodeCountry("RU"), e.Country)
	assert.Equal(t, Checksum(doc2), e.Checksum)
	assert.WithinDuration(t, first, e.FirstSeen, time.Second)
	assert.WithinDuration(t, second, e.LastSeen, time.Second)
}

func TestGetMissing(t *testing.T) {
	repo := newRepo(t, "host")

	e, err := repo.Get("nope")
	assert.NoError(t, err)
	assert.Nil(t, e)
}

func TestListFilters(t *testing.T) {
	repo := newRepo(t, "host")
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(summary("a:1", "RU", models.StatusUp), []byte(`{}`), now.Add(-3*time.Minute)))
	require.NoError(t, repo.Upsert(summary("b:1", "DE", models.StatusDown), []byte(`{}`), now.Add(-2*time.Minute)))
	require.NoError(t, repo.Upsert(summary("c:1", "", models.StatusUp), []byte(`{}`), now.Add(-1*time.Minute)))

	all, err := repo.List(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c:1", all[0].Endpoint)
	assert.Equal(t, "a:1", all[2].Endpoint)

	up := models.StatusUp
	entries, err := repo.List(Filter{Status: &up})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	ru := models.DecodeCountry("RU")
	entries, err = repo.List(Filter{Status: &up, Country: &ru})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a:1", entries[0].Endpoint)

	unknown := models.Unspecified
	entries, err = repo.List(Filter{Country: &unknown})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c:1", entries[0].Endpoint)

	q3 := models.ProtocolQ3S
	entries, err = repo.List(Filter{Protocol: &q3})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProfileIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	host, err := New(path, "host")
	require.NoError(t, err)
	defer func() { _ = host.Close() }()
	require.NoError(t, host.Upsert(summary("a:1", "RU", models.StatusUp), []byte(`{}`), time.Now()))

	addr, err := New(path, "addr")
	require.NoError(t, err)
	defer func() { _ = addr.Close() }()

	entries, err := addr.List(Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	e, err := addr.Get("a:1")
	require.NoError(t, err)
	assert.Nil(t, e)

	// the same endpoint in the other profile is a separate row
	require.NoError(t, addr.Upsert(summary("a:1", "DE", models.StatusDown), []byte(`{"addr":"a:1"}`), time.Now()))

	e, err = host.Get("a:1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, models.StatusUp, e.Status)
	assert.Equal(t, int64(1), e.Count)
	assert.JSONEq(t, `{}`, string(e.Document))

	e, err = addr.Get("a:1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, models.StatusDown, e.Status)
	assert.Equal(t, int64(1), e.Count)

	n, err := addr.Delete("a:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e, err = host.Get("a:1")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestDelete(t *testing.T) {
	repo := newRepo(t, "addr")
	now := time.Now()

	require.NoError(t, repo.Upsert(summary("a:1", "RU", models.StatusUp), []byte(`{}`), now))
	require.NoError(t, repo.Upsert(summary("b:1", "RU", models.StatusDown), []byte(`{}`), now))
	require.NoError(t, repo.Upsert(summary("c:1", "RU", models.StatusDown), []byte(`{}`), now))

	n, err := repo.Delete("a:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete("a:1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = repo.DeleteByStatus(models.StatusDown)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := repo.List(Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")

	for i := 0; i < 2; i++ {
		repo, err := New(path, "host")
		require.NoError(t, err)

		var n int
		require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
		assert.Equal(t, 1, n)
		require.NoError(t, repo.Close())
	}
}

func TestPendingMigrations(t *testing.T) {
	files, err := pendingMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_servers.sql", files[0])
	assert.IsIncreasing(t, files)
}

func TestRunMigrationsCountsApplied(t *testing.T) {
	repo := newRepo(t, "host")

	n, err := runMigrations(repo.db)
	require.NoError(t, err)
	assert.Zero(t, n)
}
