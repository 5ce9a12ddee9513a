// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/mcping/internal/logger"
	"github.com/woozymasta/mcping/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"MCPING"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"MCPING_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MCPING_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"MCPING_RATE_LIMIT"`
	SLP       SLP           `group:"Query Options" namespace:"slp" env-namespace:"MCPING_SLP"`
	Fake      Fake          `group:"Fake Server Options" namespace:"fake" env-namespace:"MCPING_FAKE"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MCPING_LOG"`

	Args struct {
		Address string `positional-arg-name:"ADDRESS" description:"Query this server once and exit"`
	} `positional-args:"yes"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
	JSON    bool `short:"j" long:"json" description:"Print the one-shot query result as JSON"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address        string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken      string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	DefaultAddress string        `long:"default-address" env:"DEFAULT_ADDRESS" description:"Server queried when neither the request nor its scope names one"`
	Footer         string        `long:"footer" env:"FOOTER" description:"Footer text of the status card"`
	ShowMotd       bool          `long:"show-motd" env:"SHOW_MOTD" description:"Show the MOTD on the status card"`
	TrustProxy     bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	CacheTTL       time.Duration `long:"cache-ttl" env:"CACHE_TTL" description:"Serve repeated queries of one address from memory for this long" default:"30s"`
	Workers        int           `long:"workers" env:"WORKERS" description:"History writer workers" default:"4"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path         string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"mcping.db"`
	PruneHistory time.Duration `long:"prune-history" description:"Delete history older than this duration and exit"`
	Recheck      bool          `long:"recheck" description:"Re-query every saved default server, record the results and exit"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup" default:"mcping.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// SLP holds Server List Ping client configuration.
type SLP struct {
	// betteralign:ignore

	Timeout     time.Duration `long:"timeout" env:"TIMEOUT" description:"Whole query timeout" default:"5s"`
	Protocol    int32         `long:"protocol" env:"PROTOCOL" description:"Protocol version sent in the handshake" default:"754"`
	MaxLength   int           `long:"max-length" env:"MAX_LENGTH" description:"Largest accepted status JSON in bytes" default:"1048576"`
	DefaultPort uint16        `long:"default-port" env:"DEFAULT_PORT" description:"Port used when neither the address nor SRV gives one" default:"25565"`
	DNS         string        `long:"dns" env:"DNS" description:"DNS server (host[:port]) used for SRV lookups"`
	SkipSRV     bool          `long:"skip-srv" env:"SKIP_SRV" description:"Do not look up _minecraft._tcp SRV records"`
}

// Fake holds the built-in status server configuration.
type Fake struct {
	// betteralign:ignore

	Listen string        `long:"listen" env:"LISTEN" description:"Run a fake status server on this address instead of the service"`
	Delay  time.Duration `long:"delay" env:"DELAY" description:"Delay before each fake status response"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// Mode is what the process was started to do.
type Mode int

// Run modes, in the order Parse checks for them.
const (
	ModeService Mode = iota
	ModeFake
	ModeQuery
	ModeMaintenance
)

// Mode reports the run mode selected by the flags.
func (c *Config) Mode() Mode {
	switch {
	case c.Fake.Listen != "":
		return ModeFake
	case c.Args.Address != "":
		return ModeQuery
	case c.Storage.PruneHistory > 0 || c.Storage.Recheck:
		return ModeMaintenance
	default:
		return ModeService
	}
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args and validates the result without exiting.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.Version {
		return &cfg, nil
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SLP.Timeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.SLP.Timeout)
	}
	if c.SLP.MaxLength <= 0 {
		return fmt.Errorf("max length must be positive, got %d", c.SLP.MaxLength)
	}
	if c.SLP.DefaultPort == 0 {
		return fmt.Errorf("default port must not be 0")
	}

	if c.Mode() == ModeService {
		if c.Server.AuthToken == "" {
			return fmt.Errorf("required flag `-t, --auth-token' or environment variable `MCPING_AUTH_TOKEN` was not specified")
		}
		if c.Server.Workers <= 0 {
			c.Server.Workers = 1
		}
		if c.RateLimit.HardLimitCount <= 0 || c.RateLimit.HardLimitWin <= 0 {
			return fmt.Errorf("rate limit count and window must be positive")
		}
	}

	return nil
}
