// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/gamestat/internal/logger"
	"github.com/woozymasta/gamestat/internal/vars"
)

// AnyProtocol marks maintenance tasks that apply to every protocol.
const AnyProtocol = "any"

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"GAMESTAT"`
	Schema    Schema        `group:"Schema Options" namespace:"schema" env-namespace:"GAMESTAT_SCHEMA"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"GAMESTAT_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"GAMESTAT_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"GAMESTAT_RATE_LIMIT"`
	Probe     Probe         `group:"Probe Options" namespace:"probe" env-namespace:"GAMESTAT_PROBE"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"GAMESTAT_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken   string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"65536"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	ContentType string `long:"expect-content-type" env:"EXPECT_CONTENT_TYPE" description:"Expected Content-Type header" default:"application/json"`
	Workers     int    `long:"workers" env:"WORKERS" description:"Announce queue workers" default:"10"`
	QueueSize   int    `long:"queue-size" env:"QUEUE_SIZE" description:"Announce queue capacity" default:"1000"`
}

// Schema selects the wire record shape.
type Schema struct {
	// betteralign:ignore

	Profile string `short:"p" long:"profile" env:"PROFILE" description:"Record profile: host (host string, protocol, text rules) or addr (socket address, structured rules)" choice:"host" choice:"addr" default:"host"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"gamestat.db"`
	Refresh       string `long:"refresh" description:"Re-probe stored servers and mark unreachable ones Down. Optional arg: protocol tag." optional:"true" optional-value:"any"`
	PruneDown     bool   `long:"prune-down" description:"Delete servers with status Down"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"gamestat.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Probe holds server query configuration.
type Probe struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"8"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
	SoftLimitDur   time.Duration `long:"soft" env:"SOFT" description:"Soft limit: ignore announce if seen within duration" default:"5m"`
}

// ErrMissingAuthToken is returned when no admin token is configured.
var ErrMissingAuthToken = errors.New(
	"required flag `-t, --auth-token' or environment variable `GAMESTAT_AUTH_TOKEN' was not specified")

// Load parses args into a Config. The returned error is a *flags.Error for
// parser failures (including help requests).
func Load(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return &cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints go-flags cannot express.
func (c *Config) Validate() error {
	if c.Server.AuthToken == "" {
		return ErrMissingAuthToken
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Server.Workers)
	}
	if c.Server.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative, got %d", c.Server.QueueSize)
	}
	if c.RateLimit.HardLimitCount < 1 || c.RateLimit.HardLimitWin <= 0 {
		return fmt.Errorf("hard rate limit must be positive, got %d per %s",
			c.RateLimit.HardLimitCount, c.RateLimit.HardLimitWin)
	}

	return nil
}

// Parse reads the configuration from os.Args and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			// go-flags already printed the message
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print(os.Stdout)
		os.Exit(0)
	}

	return cfg
}
