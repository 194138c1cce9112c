// Package storage persists encoded server records in SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamestat/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection. Rows written by a
// different schema profile are invisible to it.
type Repository struct {
	db      *sql.DB
	profile string
}

// Filter narrows List results. Nil fields match everything.
type Filter struct {
	Status   *models.Status
	Protocol *models.Protocol
	Country  *models.Country
}

const selectColumns = `
	SELECT endpoint, protocol, status, country, name,
	       document, checksum, count, first_seen, last_seen
	FROM servers
`

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath, profile string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	applied, err := runMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if applied > 0 {
		log.Info().Int("applied", applied).Str("path", dbPath).Msg("Database schema updated")
	}

	return &Repository{db: db, profile: profile}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Checksum returns the hex xxhash of an encoded document.
func Checksum(doc []byte) string {
	return strconv.FormatUint(xxhash.Sum64(doc), 16)
}

// Upsert stores an encoded record keyed by its endpoint. Existing rows keep
// their first_seen and have their counter incremented.
func (r *Repository) Upsert(sum models.Summary, doc []byte, seen time.Time) error {
	query := `
	INSERT INTO servers (
		endpoint, profile, protocol, status, country, name,
		document, checksum, count, first_seen, last_seen
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(profile, endpoint) DO UPDATE SET
		count     = count + 1,
		last_seen = excluded.last_seen,
		protocol  = excluded.protocol,
		status    = excluded.status,
		name      = excluded.name,
		document  = excluded.document,
		checksum  = excluded.checksum,

		-- Keep a known country if the new record has none
		country = CASE WHEN excluded.country != 'Unspecified' THEN excluded.country ELSE servers.country END;
	`

	_, err := r.db.Exec(query,
		sum.Endpoint, r.profile, sum.Protocol.String(), sum.Status.String(), models.EncodeCountry(sum.Country), sum.Name,
		string(doc), Checksum(doc), seen, seen,
	)

	return err
}

// Get retrieves a record by endpoint. It returns nil, nil when not found.
func (r *Repository) Get(endpoint string) (*models.Entry, error) {
	row := r.db.QueryRow(selectColumns+` WHERE endpoint = ? AND profile = ?`, endpoint, r.profile)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return e, nil
}

// List retrieves records matching f, most recently seen first.
func (r *Repository) List(f Filter) ([]models.Entry, error) {
	var (
		where = []string{"profile = ?"}
		args  = []any{r.profile}
	)

	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, f.Status.String())
	}
	if f.Protocol != nil {
		where = append(where, "protocol = ?")
		args = append(args, f.Protocol.String())
	}
	if f.Country != nil {
		where = append(where, "country = ?")
		args = append(args, models.EncodeCountry(*f.Country))
	}

	query := selectColumns + " WHERE " + strings.Join(where, " AND ") + " ORDER BY last_seen DESC, endpoint"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Delete removes a record by endpoint and reports how many rows were removed.
func (r *Repository) Delete(endpoint string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM servers WHERE endpoint = ? AND profile = ?`, endpoint, r.profile)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// DeleteByStatus removes every record with the given status.
func (r *Repository) DeleteByStatus(status models.Status) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM servers WHERE status = ? AND profile = ?`, status.String(), r.profile)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.Entry, error) {
	var (
		e   models.Entry
		doc string
	)

	if err := s.Scan(
		&e.Endpoint, &e.Protocol, &e.Status, &e.Country, &e.Name,
		&doc, &e.Checksum, &e.Count, &e.FirstSeen, &e.LastSeen,
	); err != nil {
		return nil, err
	}
	e.Document = json.RawMessage(doc)

	return &e, nil
}
