package server

import (
	"sync"
	"time"

	"github.com/woozymasta/gamestat/internal/codec"
	"github.com/woozymasta/gamestat/internal/models"
	"github.com/woozymasta/gamestat/internal/storage"
)

// Prober queries a live game server.
type Prober interface {
	Probe(ip string, port int) (models.Snapshot, error)
}

// CountryResolver maps an IP address to a country. It must never fail;
// unknown addresses resolve to models.Unspecified.
type CountryResolver interface {
	Country(ip string) models.Country
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background announce processing.
type Server struct {
	// storage persists encoded records.
	storage *storage.Repository

	// codec encodes and decodes records for the configured schema profile.
	codec *codec.Codec

	// prober queries announced servers.
	prober Prober

	// geo resolves the country of announcing servers.
	geo CountryResolver

	// queue passes announce jobs from HTTP handlers to background workers.
	queue chan announceJob

	// shutdown broadcasts a stop signal to background goroutines.
	shutdown chan struct{}

	// seenCache maps the xxhash of "ip:port" to the time it was last accepted.
	// It backs the soft rate limit.
	seenCache sync.Map

	// authToken is the secret token required to access administrative API endpoints.
	authToken string

	// expectedCT expected Content-Type header
	expectedCT string

	// wg waits for background workers during shutdown.
	wg sync.WaitGroup

	// maxBody is the maximum accepted request body size in bytes.
	maxBody int64

	// hardLimitCount is the number of requests allowed per IP within hardLimitWin.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// softLimitDur is how long a repeated announce from the same endpoint is ignored.
	softLimitDur time.Duration

	// workers is the number of announce queue consumers.
	workers int

	// trustProxy indicates whether X-Forwarded-For and CF-Connecting-IP are trusted.
	trustProxy bool
}

// announceJob is a unit of work for the background workers.
type announceJob struct {
	// IP is the resolved source address of the announcing server.
	IP string

	// Req is the decoded announce payload.
	Req models.Announce
}
