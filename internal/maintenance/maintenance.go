// Package maintenance provides tools to refresh and clean the server database.
package maintenance

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamestat/internal/codec"
	"github.com/woozymasta/gamestat/internal/config"
	"github.com/woozymasta/gamestat/internal/models"
	"github.com/woozymasta/gamestat/internal/storage"
)

const workers = 10

// Prober queries a live game server.
type Prober interface {
	Probe(ip string, port int) (models.Snapshot, error)
}

// CountryResolver maps an IP address to a country.
type CountryResolver interface {
	Country(ip string) models.Country
}

// Task bundles the dependencies of the maintenance jobs.
type Task struct {
	Store  *storage.Repository
	Codec  *codec.Codec
	Prober Prober
	Geo    CountryResolver
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func (t *Task) Run(cfg config.Storage) bool {
	if cfg.PruneDown {
		log.Info().Msg("Pruning servers with status Down...")

		count, err := t.Store.DeleteByStatus(models.StatusDown)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune servers")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	if cfg.Refresh == "" {
		return false
	}

	var f storage.Filter
	if cfg.Refresh != config.AnyProtocol {
		p, err := models.ParseProtocol(cfg.Refresh)
		if err != nil {
			log.Error().Err(err).Msg("Invalid refresh protocol filter")
			return true
		}
		f.Protocol = &p
	}

	entries, err := t.Store.List(f)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		return true
	}

	if len(entries) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return true
	}

	log.Info().Int("count", len(entries)).Msgf("Starting refresh with %d workers...", workers)
	t.Refresh(entries)
	log.Info().Msg("Maintenance task completed")

	return true
}

// Refresh re-probes entries in parallel and stores the result.
func (t *Task) Refresh(entries []models.Entry) {
	jobs := make(chan models.Entry, len(entries))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				t.refreshEntry(e)
			}
		}()
	}

	for _, e := range entries {
		jobs <- e
	}
	close(jobs)

	wg.Wait()
}

// refreshEntry probes an A2S server again. Reachable servers are replaced
// with the fresh record. Unreachable ones keep their stored record and are
// marked Down. Entries without a prober or a literal IP endpoint are left
// untouched.
func (t *Task) refreshEntry(e models.Entry) {
	logCtx := log.With().
		Str("endpoint", e.Endpoint).
		Stringer("protocol", e.Protocol).
		Logger()

	// Stored documents are decoded again so that rows written by an older
	// build with now-unknown tags are reported instead of silently reused.
	stored, err := t.Codec.Decode(e.Document)
	if err != nil {
		logCtx.Warn().Err(err).Msg("Stored document does not decode, skipping")
		return
	}

	sum := stored.Summary()
	if t.Codec.Profile() == codec.ProfileHost && sum.Protocol != models.ProtocolA2S {
		logCtx.Trace().Msg("No prober for protocol, skipping")
		return
	}

	host, port, err := splitEndpoint(sum.Endpoint)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Endpoint is not probeable, skipping")
		return
	}

	rec := stored
	snap, err := t.Prober.Probe(host, port)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Server unreachable, marking Down")
		markDown(rec)
	} else {
		snap.Country = t.Geo.Country(host)
		if !snap.Country.IsSpecified() {
			snap.Country = sum.Country
		}

		rec, err = t.Codec.Build(snap)
		if err != nil {
			logCtx.Error().Err(err).Msg("Failed to build record")
			return
		}
	}

	doc, err := t.Codec.Encode(rec)
	if err != nil {
		logCtx.Error().Err(err).Msg("Failed to encode record")
		return
	}

	if err := t.Store.Upsert(rec.Summary(), doc, time.Now()); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
		return
	}

	logCtx.Trace().Stringer("status", rec.Summary().Status).Msg("Server refreshed")
}

// splitEndpoint returns the IP and port of an "ip:port" endpoint.
// Hostnames are rejected since the A2S client only dials IP addresses.
func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, err
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return "", 0, fmt.Errorf("host %q is not an IP address", host)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}

	return addr.String(), port, nil
}

func markDown(rec models.Record) {
	switch v := rec.(type) {
	case *models.Server:
		v.Status = models.StatusDown
	case *models.ResolvedServer:
		v.Status = models.StatusDown
	}
}
