package slp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/woozymasta/mcping/internal/address"
	"github.com/woozymasta/mcping/internal/chat"
	"github.com/woozymasta/mcping/internal/fake"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/varint"
)

const sampleStatus = `{"version":{"name":"1.16.5","protocol":754},"players":{"online":3,"max":20},"description":"§aHi"}`

func serverAddress(t *testing.T, addr net.Addr) address.ServerAddress {
	t.Helper()

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatal(err)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		t.Fatal(err)
	}
	return address.ServerAddress{Host: host, Port: uint16(p)}
}

func startFake(t *testing.T, srv *fake.Server) address.ServerAddress {
	t.Helper()

	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	return serverAddress(t, srv.Addr())
}

// rawServer accepts one connection, reads the client's request bytes and
// hands the connection to respond.
func rawServer(t *testing.T, respond func(conn net.Conn)) address.ServerAddress {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		// handshake + status request from the client
		buf := make([]byte, 512)
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _ = conn.Read(buf)
		_ = conn.SetReadDeadline(time.Time{})

		respond(conn)
	}()

	return serverAddress(t, ln.Addr())
}

func TestQueryEndToEnd(t *testing.T) {
	var handshakes = make(chan fake.Handshake, 1)
	addr := startFake(t, &fake.Server{
		Status: func(hs fake.Handshake) models.StatusResponse {
			handshakes <- hs
			var s models.StatusResponse
			_ = json.Unmarshal([]byte(sampleStatus), &s)
			return s
		},
	})

	client := &Client{}
	status, err := client.Query(context.Background(), addr)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if status.Online() != 3 || status.MaxPlayers() != 20 {
		t.Errorf("players = %d/%d, want 3/20", status.Online(), status.MaxPlayers())
	}
	if status.VersionName() != "1.16.5" || status.ProtocolVersion() != 754 {
		t.Errorf("version = %q/%d", status.VersionName(), status.ProtocolVersion())
	}
	if status.RemoteIP != "127.0.0.1" {
		t.Errorf("RemoteIP = %q", status.RemoteIP)
	}
	if status.Latency <= 0 {
		t.Errorf("Latency = %s", status.Latency)
	}

	html := chat.Render(status.Description)
	if want := `<span style="color: #55FF55">Hi</span>`; html != want {
		t.Errorf("rendered description = %s, want %s", html, want)
	}

	hs := <-handshakes
	if hs.Protocol != DefaultProtocolVersion || hs.Host != addr.Host || hs.Port != addr.Port || hs.NextState != 1 {
		t.Errorf("handshake = %+v", hs)
	}
}

func TestQueryProtocolOverride(t *testing.T) {
	var handshakes = make(chan fake.Handshake, 1)
	addr := startFake(t, &fake.Server{
		Status: func(hs fake.Handshake) models.StatusResponse {
			handshakes <- hs
			return models.StatusResponse{}
		},
	})

	client := &Client{ProtocolVersion: 763}
	status, err := client.Query(context.Background(), addr)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if status.Version != nil || status.Players != nil || status.Description != nil {
		t.Errorf("expected empty status, got %+v", status)
	}
	if hs := <-handshakes; hs.Protocol != 763 {
		t.Errorf("protocol = %d, want 763", hs.Protocol)
	}
}

func TestQueryGeneratedStatus(t *testing.T) {
	addr := startFake(t, &fake.Server{})

	for i := 0; i < 5; i++ {
		if _, err := (&Client{}).Query(context.Background(), addr); err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
	}
}

func TestQueryTimeout(t *testing.T) {
	addr := startFake(t, &fake.Server{Silent: true})

	client := &Client{Timeout: 200 * time.Millisecond}
	start := time.Now()
	status, err := client.Query(context.Background(), addr)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if status != nil {
		t.Fatal("timed out query returned a status")
	}
	if elapsed < client.Timeout {
		t.Errorf("failed after %s, before the %s timeout", elapsed, client.Timeout)
	}

	var qe *QueryError
	if !errors.As(err, &qe) || qe.State != AwaitingResponseLength {
		t.Errorf("error state = %v", err)
	}
}

func TestQueryLateDataIgnored(t *testing.T) {
	addr := rawServer(t, func(conn net.Conn) {
		time.Sleep(300 * time.Millisecond)
		_, _ = conn.Write(Frame(0x00, varint.AppendString(nil, sampleStatus)))
	})

	status, err := (&Client{Timeout: 100 * time.Millisecond}).Query(context.Background(), addr)
	if !errors.Is(err, ErrTimeout) || status != nil {
		t.Fatalf("status = %v, err = %v, want timeout", status, err)
	}
	time.Sleep(300 * time.Millisecond)
}

func TestQueryDefaultTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the full default timeout")
	}

	addr := startFake(t, &fake.Server{Silent: true})
	start := time.Now()
	_, err := (&Client{}).Query(context.Background(), addr)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < DefaultTimeout {
		t.Fatalf("failed after %s, before %s", elapsed, DefaultTimeout)
	}
}

func TestQueryFailures(t *testing.T) {
	tests := []struct {
		name    string
		respond func(conn net.Conn)
		want    error
	}{
		{
			name: "unexpected packet id",
			respond: func(conn net.Conn) {
				_, _ = conn.Write(Frame(0x01, varint.AppendString(nil, sampleStatus)))
			},
			want: ErrUnexpectedPacketID,
		},
		{
			name: "invalid json",
			respond: func(conn net.Conn) {
				_, _ = conn.Write(Frame(0x00, varint.AppendString(nil, `{"players":`)))
			},
			want: ErrInvalidPayload,
		},
		{
			name: "json string longer than packet",
			respond: func(conn net.Conn) {
				payload := append(varint.Encode(100), `{}`...)
				_, _ = conn.Write(Frame(0x00, payload))
			},
			want: ErrInvalidPayload,
		},
		{
			name: "empty packet",
			respond: func(conn net.Conn) {
				_, _ = conn.Write([]byte{0x00})
			},
			want: ErrInvalidPayload,
		},
		{
			name: "malformed length varint",
			respond: func(conn net.Conn) {
				_, _ = conn.Write([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80})
			},
			want: ErrMalformedVarInt,
		},
		{
			name: "oversized packet length",
			respond: func(conn net.Conn) {
				_, _ = conn.Write(varint.Encode(1 << 30))
			},
			want: ErrOversizedLength,
		},
		{
			name: "closed before response",
			respond: func(conn net.Conn) {
				_, _ = conn.Write(varint.Encode(50))
			},
			want: ErrConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := rawServer(t, tt.respond)

			status, err := (&Client{Timeout: 2 * time.Second}).Query(context.Background(), addr)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if status != nil {
				t.Fatal("failed query returned a status")
			}
		})
	}
}

func TestQueryOversizedString(t *testing.T) {
	addr := rawServer(t, func(conn net.Conn) {
		_, _ = conn.Write(Frame(0x00, varint.AppendString(nil, sampleStatus)))
	})

	_, err := (&Client{MaxStringLength: 16}).Query(context.Background(), addr)
	if !errors.Is(err, ErrOversizedLength) {
		t.Fatalf("err = %v, want ErrOversizedLength", err)
	}
}

func TestQuerySplitResponse(t *testing.T) {
	addr := rawServer(t, func(conn net.Conn) {
		frame := Frame(0x00, varint.AppendString(nil, sampleStatus))
		for _, b := range frame {
			_, _ = conn.Write([]byte{b})
			time.Sleep(time.Millisecond)
		}
	})

	status, err := (&Client{}).Query(context.Background(), addr)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if status.Online() != 3 {
		t.Fatalf("online = %d", status.Online())
	}
}

func TestQueryConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := serverAddress(t, ln.Addr())
	_ = ln.Close()

	_, err = (&Client{Timeout: time.Second}).Query(context.Background(), addr)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}

	var qe *QueryError
	if !errors.As(err, &qe) || qe.State != Connecting {
		t.Fatalf("error state = %v", err)
	}
}

func TestQueryCanceled(t *testing.T) {
	addr := startFake(t, &fake.Server{Silent: true})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := (&Client{}).Query(ctx, addr)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestQueryCanceledBeforeDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = (&Client{}).Query(ctx, serverAddress(t, ln.Addr()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	var qe *QueryError
	if !errors.As(err, &qe) || qe.State != Connecting {
		t.Fatalf("error state = %v", err)
	}
}

// The server may close right after the frame; the buffered frame still parses.
func TestQueryFrameThenClose(t *testing.T) {
	for i := 0; i < 20; i++ {
		addr := rawServer(t, func(conn net.Conn) {
			_, _ = conn.Write(Frame(0x00, varint.AppendString(nil, sampleStatus)))
		})

		status, err := (&Client{Timeout: 2 * time.Second}).Query(context.Background(), addr)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if status.Online() != 3 {
			t.Fatalf("attempt %d: online = %d", i, status.Online())
		}
	}
}

func TestHandshakePacket(t *testing.T) {
	got := HandshakePacket(754, "localhost", 25565)

	want := []byte{
		0x10,       // length 16
		0x00,       // id
		0xF2, 0x05, // 754
		0x09, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't',
		0x63, 0xDD, // 25565
		0x01, // next state
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("HandshakePacket = % X\nwant             % X", got, want)
	}

	if req := StatusRequestPacket(); !bytes.Equal(req, []byte{0x01, 0x00}) {
		t.Fatalf("StatusRequestPacket = % X", req)
	}
}

func TestConnectionClosedAfterQuery(t *testing.T) {
	closed := make(chan struct{})
	addr := rawServer(t, func(conn net.Conn) {
		_, _ = conn.Write(Frame(0x00, varint.AppendString(nil, sampleStatus)))
		_, err := conn.Read(make([]byte, 1))
		if errors.Is(err, io.EOF) {
			close(closed)
		}
	})

	if _, err := (&Client{}).Query(context.Background(), addr); err != nil {
		t.Fatal(err)
	}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("client did not close the connection")
	}
}
