package game

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/woozymasta/mcping/internal/address"
	"github.com/woozymasta/mcping/internal/config"
	"github.com/woozymasta/mcping/internal/fake"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/slp"
)

func testOptions() config.SLP {
	return config.SLP{
		Timeout:     time.Second,
		Protocol:    754,
		MaxLength:   1 << 20,
		DefaultPort: 25565,
		SkipSRV:     true,
	}
}

func startFake(t *testing.T, srv *fake.Server) string {
	t.Helper()

	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	return srv.Addr().String()
}

func TestQueryReport(t *testing.T) {
	addr := startFake(t, &fake.Server{
		Status: func(fake.Handshake) models.StatusResponse {
			return models.StatusResponse{
				Version: &models.Version{Name: "Paper 1.20.1", Protocol: 763},
				Players: &models.Players{
					Online: 2,
					Max:    10,
					Sample: []models.Sample{{Name: "Notch"}, {Name: "jeb_"}},
				},
				Description: models.LegacyText("§lBig\nworld"),
				Favicon:     "data:image/png;base64,AAAA",
			}
		},
	})

	q := NewQuerier(testOptions(), nil)
	report, err := q.Query(context.Background(), "  "+addr+" ")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	host, _, _ := net.SplitHostPort(addr)
	if report.Address != addr || report.Host != host || report.IP != "127.0.0.1" {
		t.Errorf("address fields = %q %q %q", report.Address, report.Host, report.IP)
	}
	if report.VersionName != "Paper 1.20.1" || report.Protocol != 763 {
		t.Errorf("version = %q/%d", report.VersionName, report.Protocol)
	}
	if report.Online != 2 || report.MaxPlayers != 10 || len(report.PlayerNames) != 2 || report.PlayerNames[1] != "jeb_" {
		t.Errorf("players = %d/%d %v", report.Online, report.MaxPlayers, report.PlayerNames)
	}
	if want := `<span style="font-weight: 700">Big<br>world</span>`; report.MotdHTML != want {
		t.Errorf("motd = %s, want %s", report.MotdHTML, want)
	}
	if report.CountryCode != "" || report.Favicon == "" || report.QueriedAt.IsZero() {
		t.Errorf("report = %+v", report)
	}

	entry := History(addr, report, nil)
	if entry.Error != "" || entry.Online != 2 || entry.Port != int(report.Port) || entry.MotdHTML != report.MotdHTML {
		t.Errorf("history = %+v", entry)
	}
}

func TestQueryInvalidAddress(t *testing.T) {
	q := NewQuerier(testOptions(), nil)
	if _, err := q.Query(context.Background(), "   "); !errors.Is(err, address.ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
	if _, err := q.Query(context.Background(), "localhost:0"); !errors.Is(err, address.ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}
}

func TestQueryTimeout(t *testing.T) {
	addr := startFake(t, &fake.Server{Silent: true})

	opts := testOptions()
	opts.Timeout = 100 * time.Millisecond
	_, err := NewQuerier(opts, nil).Query(context.Background(), addr)
	if !errors.Is(err, slp.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	entry := History(addr, nil, err)
	if entry.Address != addr || entry.Error == "" || entry.QueriedAt.IsZero() {
		t.Fatalf("history = %+v", entry)
	}
}
