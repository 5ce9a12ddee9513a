// Package address turns user supplied server addresses into a concrete
// host and port, looking up _minecraft._tcp SRV records for bare hosts.
package address

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/idna"
)

// DefaultPort is the port vanilla servers listen on.
const DefaultPort uint16 = 25565

// ErrInvalidAddress is returned for empty input or an unusable port.
var ErrInvalidAddress = errors.New("invalid server address")

// ServerAddress is a resolved query target.
type ServerAddress struct {
	Host string
	Port uint16
}

// String returns host:port, bracketing IPv6 literals.
func (a ServerAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// SRVLookuper is the part of *net.Resolver the resolver needs.
type SRVLookuper interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// Options configures NewResolver.
type Options struct {
	// DNSServer is an optional host:port of the DNS server used for SRV lookups.
	DNSServer string

	// DefaultPort is used when neither the input nor SRV gives a port.
	DefaultPort uint16

	// SkipSRV disables SRV lookups for bare hosts.
	SkipSRV bool
}

// Resolver resolves address strings.
type Resolver struct {
	Lookup      SRVLookuper
	DefaultPort uint16
	SkipSRV     bool
}

// NewResolver returns a Resolver backed by net.Resolver.
func NewResolver(opts Options) *Resolver {
	r := &net.Resolver{}
	if opts.DNSServer != "" {
		server := opts.DNSServer
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}

		r.PreferGo = true
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: 5 * time.Second}
			return d.DialContext(ctx, network, server)
		}
	}

	port := opts.DefaultPort
	if port == 0 {
		port = DefaultPort
	}

	return &Resolver{Lookup: r, DefaultPort: port, SkipSRV: opts.SkipSRV}
}

// Resolve parses input in priority order: "[host]" or "[host]:port",
// "host:port" with exactly one colon, then a bare host resolved through SRV.
// Unresolvable hosts are not an error here; the connection will fail later.
func (r *Resolver) Resolve(ctx context.Context, input string) (ServerAddress, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return ServerAddress{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	defaultPort := r.DefaultPort
	if defaultPort == 0 {
		defaultPort = DefaultPort
	}

	// [ipv6] or [ipv6]:port
	if strings.HasPrefix(s, "[") {
		if end := strings.IndexByte(s, ']'); end != -1 {
			host := s[1:end]
			rest := s[end+1:]

			port := defaultPort
			if rest != "" {
				if !strings.HasPrefix(rest, ":") {
					return ServerAddress{}, fmt.Errorf("%w: unexpected %q after ]", ErrInvalidAddress, rest)
				}
				p, err := parsePort(rest[1:])
				if err != nil {
					return ServerAddress{}, err
				}
				port = p
			}

			if host == "" {
				return ServerAddress{}, fmt.Errorf("%w: empty host", ErrInvalidAddress)
			}
			return ServerAddress{Host: host, Port: port}, nil
		}
	}

	// host:port, one colon only so bare IPv6 literals fall through
	if i := strings.IndexByte(s, ':'); i > 0 && i == strings.LastIndexByte(s, ':') {
		port, err := parsePort(s[i+1:])
		if err != nil {
			return ServerAddress{}, err
		}
		return ServerAddress{Host: toASCII(s[:i]), Port: port}, nil
	}

	host := toASCII(s)
	if r.SkipSRV || r.Lookup == nil || net.ParseIP(host) != nil {
		return ServerAddress{Host: host, Port: defaultPort}, nil
	}

	return r.lookupSRV(ctx, host, defaultPort), nil
}

// lookupSRV returns the first SRV target, or host with the default port
// when there is no usable record.
func (r *Resolver) lookupSRV(ctx context.Context, host string, defaultPort uint16) ServerAddress {
	fallback := ServerAddress{Host: host, Port: defaultPort}

	_, records, err := r.Lookup.LookupSRV(ctx, "minecraft", "tcp", host)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("SRV lookup failed, using default port")
		return fallback
	}
	if len(records) == 0 || records[0] == nil {
		log.Debug().Str("host", host).Msg("No SRV records, using default port")
		return fallback
	}

	target := strings.TrimSuffix(records[0].Target, ".")
	if target == "" {
		return fallback
	}

	log.Debug().
		Str("host", host).
		Str("target", target).
		Uint16("port", records[0].Port).
		Msg("SRV record resolved")

	return ServerAddress{Host: target, Port: records[0].Port}
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil || p == 0 {
		return 0, fmt.Errorf("%w: bad port %q", ErrInvalidAddress, s)
	}
	return uint16(p), nil
}

// toASCII converts internationalized host names to punycode and
// returns the input unchanged when conversion fails.
func toASCII(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] >= 0x80 {
			ascii, err := idna.Lookup.ToASCII(host)
			if err != nil {
				return host
			}
			return ascii
		}
	}
	return host
}
