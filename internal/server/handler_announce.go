package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamestat/internal/models"
)

// defaultA2SPort is used when an announce omits the port.
const defaultA2SPort = 27015

// handleAnnounce accepts a self-registration from a game server.
// The request is validated, deduplicated by the soft limit and queued;
// the answer is always plain text so simple game scripts can parse it.
func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	ip := GetRealIP(r, s.trustProxy)

	ct := r.Header.Get("Content-Type")
	if s.expectedCT != "" && !strings.HasPrefix(ct, s.expectedCT) {
		log.Debug().
			Str("ip", ip).
			Str("content_type", ct).
			Str("expected", s.expectedCT).
			Msg("Invalid Content-Type")

		respondText(w, "not accounted")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.Announce
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().
			Err(err).
			Str("ip", ip).
			Msg("Invalid announce payload")

		respondText(w, "not accounted")
		return
	}

	if req.Port < 0 || req.Port > 65535 {
		log.Debug().
			Str("ip", ip).
			Int("port", req.Port).
			Msg("Invalid port")

		respondText(w, "not accounted")
		return
	}
	if req.Protocol == models.ProtocolUnspecified {
		req.Protocol = models.ProtocolA2S
	}
	if req.Port == 0 {
		req.Port = defaultA2SPort
	}

	// Soft limit
	key := xxhash.Sum64String(ip + ":" + strconv.Itoa(req.Port))
	if val, ok := s.seenCache.Load(key); ok {
		if lastSeen, ok := val.(time.Time); ok && time.Since(lastSeen) < s.softLimitDur {
			log.Trace().
				Str("ip", ip).
				Int("port", req.Port).
				Msg("Dropped by soft limit hit")

			respondText(w, "ok")
			return
		}
	}
	s.seenCache.Store(key, time.Now())

	select {
	case s.queue <- announceJob{Req: req, IP: ip}:
		log.Trace().
			Str("ip", ip).
			Int("port", req.Port).
			Stringer("protocol", req.Protocol).
			Msg("Announce queued")

		respondText(w, "successfully accounted")
	default:
		log.Warn().
			Str("ip", ip).
			Int("port", req.Port).
			Msg("Queue full, announce dropped")

		respondText(w, "not accounted")
	}
}

// worker is a background goroutine that processes jobs from the announce queue.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

// processJob probes the announced server, resolves its country, encodes the
// record with the configured profile and stores it.
func (s *Server) processJob(job announceJob) {
	logCtx := log.With().
		Str("ip", job.IP).
		Int("port", job.Req.Port).
		Stringer("protocol", job.Req.Protocol).
		Logger()

	queryIP := job.IP
	if queryIP == "::1" {
		queryIP = "127.0.0.1"
	}

	var snap models.Snapshot
	if job.Req.Protocol == models.ProtocolA2S {
		var err error
		snap, err = s.prober.Probe(queryIP, job.Req.Port)
		if err != nil {
			logCtx.Debug().Err(err).Msg("Probe failed")
		}
	} else {
		logCtx.Trace().Msg("No prober for protocol, storing announce only")
		snap = models.Snapshot{IP: queryIP, Port: job.Req.Port, Protocol: job.Req.Protocol}
	}
	snap.Country = s.geo.Country(queryIP)

	if err := s.store(snap); err != nil {
		logCtx.Error().Err(err).Msg("Failed to save announced server")
		return
	}

	logCtx.Debug().
		Stringer("status", snap.Status).
		Stringer("country", snap.Country).
		Msg("Announce saved")
}

// store builds, encodes and upserts a record from a snapshot.
func (s *Server) store(snap models.Snapshot) error {
	rec, err := s.codec.Build(snap)
	if err != nil {
		return err
	}

	doc, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}

	if err := s.storage.Upsert(rec.Summary(), doc, time.Now()); err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Summary().Endpoint, err)
	}

	return nil
}

// respondText writes a text/plain 200 response.
func respondText(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, status)
}
