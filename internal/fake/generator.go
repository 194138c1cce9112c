// Package fake fills the database with random server records for development.
package fake

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamestat/internal/codec"
	"github.com/woozymasta/gamestat/internal/models"
	"github.com/woozymasta/gamestat/internal/storage"
)

var (
	maps     = []string{"chernarusplus", "livonia", "namalsk", "q3dm17", "dm_lockdown", "ctf1"}
	games    = []string{"dayz", "arma3", "baseq3", "teeworlds"}
	versions = []string{"1.24.160000", "1.25.170000", "1.32", "0.7.5"}
	osTypes  = []string{"w", "l"}

	// weighted toward a few popular regions; "??" exercises the fallback.
	countriesHigh = []string{"US", "DE", "RU", "BR", "FR", "GB", "PL", "CZ"}
	countriesLow  = []string{"ZA", "AR", "JP", "NO", "FI", "PT", "??"}

	protocols = []models.Protocol{
		models.ProtocolA2S, models.ProtocolQ3S, models.ProtocolQ3M,
		models.ProtocolTeeworldsS, models.ProtocolTeeworldsM,
	}
)

// GenerateData stores count randomized server records through the codec,
// so the generated documents always match the active schema profile.
func GenerateData(store *storage.Repository, c *codec.Codec, count int) {
	for i := 0; i < count; i++ {
		snap := Snapshot(rand.Intn)

		// Random date-time in 30 days range
		seen := time.Now().Add(-time.Duration(rand.Intn(30*24*60)) * time.Minute)

		rec, err := c.Build(snap)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to build fake record")
			continue
		}
		doc, err := c.Encode(rec)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to encode fake record")
			continue
		}

		// 30% chance of repeated announces
		repeats := 1
		if rand.Float32() < 0.3 {
			repeats += rand.Intn(5)
		}
		for r := 0; r < repeats; r++ {
			if err := store.Upsert(rec.Summary(), doc, seen); err != nil {
				log.Warn().Err(err).Msg("Failed to generate fake server")
				break
			}
		}
	}

	log.Info().Int("count", count).Msg("Fake data generated")
}

// Snapshot returns a random probe result. intn must behave like rand.Intn.
func Snapshot(intn func(int) int) models.Snapshot {
	pick := func(s []string) string { return s[intn(len(s))] }

	var country string
	if intn(10) < 8 {
		country = pick(countriesHigh)
	} else {
		country = pick(countriesLow)
	}

	status := models.StatusUp
	if intn(5) == 0 {
		status = models.StatusDown
	}

	snap := models.Snapshot{
		IP:       fmt.Sprintf("%d.%d.%d.%d", intn(220)+1, intn(255), intn(255), intn(254)+1),
		Port:     2302 + intn(100),
		Protocol: protocols[intn(len(protocols))],
		Status:   status,
		Country:  models.DecodeCountry(country),
		Rules: map[string]string{
			"version": pick(versions),
			"os":      pick(osTypes),
		},
	}
	if status == models.StatusDown {
		return snap
	}

	name := fmt.Sprintf("Server #%d [PvP]", intn(1000))
	terrain := pick(maps)
	gameType := pick(games)
	maxClients := int64(16 + intn(50))
	numClients := int64(intn(int(maxClients) + 1))
	ping := int64(5 + intn(200))

	snap.Name = &name
	snap.Terrain = &terrain
	snap.GameType = &gameType
	snap.MaxClients = &maxClients
	snap.NumClients = &numClients
	snap.Ping = &ping

	return snap
}
