package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamestat/internal/models"
	"github.com/woozymasta/gamestat/internal/storage"
	"github.com/woozymasta/gamestat/internal/vars"
)

// handleSubmit stores a record posted in wire form. The record is decoded
// with the configured profile, so unknown status or protocol tags and
// missing addresses are rejected while unknown countries are accepted.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.codec.Decode(body)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected submitted record")
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc, err := s.codec.Encode(rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sum := rec.Summary()
	if err := s.storage.Upsert(sum, doc, time.Now()); err != nil {
		log.Error().Err(err).Str("endpoint", sum.Endpoint).Msg("Failed to save record")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag(storage.Checksum(doc)))
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(doc)
}

// handleList returns stored entries.
// Query params: ?status=Up&protocol=A2S&country=DE
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var f storage.Filter
	q := r.URL.Query()

	if q.Has("status") {
		st, err := models.ParseStatus(q.Get("status"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		f.Status = &st
	}
	if q.Has("protocol") {
		p, err := models.ParseProtocol(q.Get("protocol"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		f.Protocol = &p
	}
	if q.Has("country") {
		c := models.DecodeCountry(q.Get("country"))
		f.Country = &c
	}

	entries, err := s.storage.List(f)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []models.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleGet returns the stored wire document of one server.
// Query params: ?endpoint=1.2.3.4:27015
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		http.Error(w, "Missing endpoint", http.StatusBadRequest)
		return
	}

	e, err := s.storage.Get(endpoint)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}
	if e == nil {
		http.NotFound(w, r)
		return
	}

	tag := etag(e.Checksum)
	w.Header().Set("ETag", tag)
	if r.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(e.Document)
}

// handleDelete removes a stored server.
// Query params: ?endpoint=1.2.3.4:27015
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		http.Error(w, "Missing endpoint", http.StatusBadRequest)
		return
	}

	n, err := s.storage.Delete(endpoint)
	if err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to delete server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}
	if n == 0 {
		http.NotFound(w, r)
		return
	}

	log.Info().Str("endpoint", endpoint).Msg("Server deleted manually")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server deleted"})
}

// handleProbe performs a live A2S query and returns the resulting record
// without storing it.
// Query params: ?ip=1.2.3.4&port=2302
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	portStr := r.URL.Query().Get("port")

	if ip == "" || portStr == "" {
		http.Error(w, "Missing ip or port", http.StatusBadRequest)
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		http.Error(w, "Invalid port", http.StatusBadRequest)
		return
	}

	snap, err := s.prober.Probe(ip, port)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	snap.Country = s.geo.Country(ip)

	rec, err := s.codec.Build(snap)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc, err := s.codec.Encode(rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// handleVersion returns build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Ver())
}

func etag(checksum string) string {
	return `"` + checksum + `"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		code = http.StatusRequestEntityTooLarge
	}

	writeJSON(w, code, map[string]string{"error": err.Error()})
}
