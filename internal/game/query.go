// Package game ties address resolution, the status ping and MOTD rendering
// into a single query producing a display-ready report.
package game

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/internal/address"
	"github.com/woozymasta/mcping/internal/chat"
	"github.com/woozymasta/mcping/internal/config"
	"github.com/woozymasta/mcping/internal/geoip"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/slp"
)

// Querier resolves and queries servers. GeoIP may be nil.
type Querier struct {
	Resolver *address.Resolver
	Client   *slp.Client
	GeoIP    *geoip.Provider
}

// NewQuerier builds a Querier from the query options.
func NewQuerier(opts config.SLP, geo *geoip.Provider) *Querier {
	return &Querier{
		Resolver: address.NewResolver(address.Options{
			DNSServer:   opts.DNS,
			DefaultPort: opts.DefaultPort,
			SkipSRV:     opts.SkipSRV,
		}),
		Client: &slp.Client{
			Timeout:         opts.Timeout,
			ProtocolVersion: opts.Protocol,
			MaxStringLength: opts.MaxLength,
		},
		GeoIP: geo,
	}
}

// Query resolves input once and runs one status exchange against the result.
func (q *Querier) Query(ctx context.Context, input string) (*models.Report, error) {
	input = strings.TrimSpace(input)

	addr, err := q.Resolver.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	status, err := q.Client.Query(ctx, addr)
	if err != nil {
		log.Debug().Err(err).Str("address", input).Str("target", addr.String()).Msg("Status query failed")
		return nil, err
	}

	report := &models.Report{
		QueriedAt:   time.Now().UTC(),
		Address:     input,
		Host:        addr.Host,
		Port:        addr.Port,
		IP:          status.RemoteIP,
		CountryCode: q.GeoIP.CountryCode(status.RemoteIP),
		VersionName: status.VersionName(),
		Protocol:    status.ProtocolVersion(),
		Online:      status.Online(),
		MaxPlayers:  status.MaxPlayers(),
		PlayerNames: status.SampleNames(),
		MotdHTML:    chat.Render(status.Description),
		Favicon:     status.Favicon,
		LatencyMS:   status.Latency.Milliseconds(),
	}

	log.Debug().
		Str("address", input).
		Str("target", addr.String()).
		Int("online", report.Online).
		Dur("latency", status.Latency).
		Msg("Status query succeeded")

	return report, nil
}

// History converts the outcome of a query of input into a history record.
func History(input string, report *models.Report, err error) models.HistoryEntry {
	if err != nil || report == nil {
		entry := models.HistoryEntry{
			QueriedAt: time.Now().UTC(),
			Address:   strings.TrimSpace(input),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		return entry
	}

	return models.HistoryEntry{
		QueriedAt:   report.QueriedAt,
		Address:     report.Address,
		Host:        report.Host,
		Port:        int(report.Port),
		IP:          report.IP,
		CountryCode: report.CountryCode,
		VersionName: report.VersionName,
		Protocol:    report.Protocol,
		Online:      report.Online,
		MaxPlayers:  report.MaxPlayers,
		MotdHTML:    report.MotdHTML,
		LatencyMS:   report.LatencyMS,
	}
}
