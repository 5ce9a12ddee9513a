// Package slp implements the client side of the Minecraft Server List Ping:
// handshake, status request, and a single framed JSON status response.
package slp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/internal/address"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/stream"
	"github.com/woozymasta/mcping/internal/varint"
)

const (
	// DefaultTimeout bounds a whole query, from dial to parsed payload.
	DefaultTimeout = 5 * time.Second

	// DefaultProtocolVersion is sent in the handshake (1.16.5).
	DefaultProtocolVersion = 754

	readChunkSize = 4096
)

var (
	// ErrConnection covers refused, reset, or prematurely closed connections.
	ErrConnection = errors.New("connection error")

	// ErrTimeout is returned when the query exceeds its timeout at any stage.
	ErrTimeout = errors.New("query timed out")

	// ErrUnexpectedPacketID is returned when the response id is not 0x00.
	ErrUnexpectedPacketID = errors.New("unexpected packet id")

	// ErrInvalidPayload covers broken response framing and malformed JSON.
	ErrInvalidPayload = errors.New("invalid status payload")

	// ErrMalformedVarInt is returned for VarInts longer than five bytes.
	ErrMalformedVarInt = varint.ErrMalformed

	// ErrOversizedLength is returned when a declared length exceeds the limit.
	ErrOversizedLength = varint.ErrOversized
)

// Dialer opens the byte stream to the server.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client queries servers. The zero value uses the package defaults.
// Every Query opens and closes its own connection.
type Client struct {
	Dialer          Dialer
	Timeout         time.Duration
	ProtocolVersion int32
	MaxStringLength int
}

// QueryError reports the session state a query failed in.
type QueryError struct {
	Err     error
	Address address.ServerAddress
	State   State
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed while %s: %v", e.Address, e.State, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Query runs one status exchange against addr. It returns either the parsed
// status or an error, never both, and always closes the connection.
func (c *Client) Query(ctx context.Context, addr address.ServerAddress) (*models.StatusResponse, error) {
	s := &session{
		addr:      addr,
		dialer:    c.Dialer,
		timeout:   c.Timeout,
		protocol:  c.ProtocolVersion,
		maxString: c.MaxStringLength,
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{}
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.protocol == 0 {
		s.protocol = DefaultProtocolVersion
	}
	if s.maxString <= 0 {
		s.maxString = varint.DefaultMaxStringLength
	}

	status, err := s.run(ctx)
	if err != nil {
		s.state = Failed
		return nil, err
	}

	return status, nil
}

// session is the state of one query; it owns the connection and the reader.
type session struct {
	dialer    Dialer
	addr      address.ServerAddress
	timeout   time.Duration
	maxString int
	protocol  int32
	state     State
}

func (s *session) run(parent context.Context) (*models.StatusResponse, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeoutCause(parent, s.timeout, ErrTimeout)
	defer cancel()

	s.transition(Connecting)
	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr.String())
	if err != nil {
		return nil, s.fail(ctx, ErrConnection, err)
	}

	reader := stream.New()
	finished := make(chan struct{})
	defer func() {
		close(finished)
		reader.Close(stream.ErrClosed)
		_ = conn.Close()
	}()

	// Timeout or cancellation tears the session down from outside.
	go func() {
		select {
		case <-ctx.Done():
			reader.Close(context.Cause(ctx))
			_ = conn.Close()
		case <-finished:
		}
	}()

	go pump(conn, reader)

	request := append(HandshakePacket(s.protocol, s.addr.Host, s.addr.Port), StatusRequestPacket()...)
	if _, err := conn.Write(request); err != nil {
		return nil, s.fail(ctx, ErrConnection, err)
	}
	s.transition(HandshakeSent)

	s.transition(AwaitingResponseLength)
	length, err := reader.ReadVarInt(ctx)
	if err != nil {
		return nil, s.fail(ctx, nil, err)
	}

	maxPacket := uint64(s.maxString) + 2*varint.MaxLen
	if uint64(length) > maxPacket {
		return nil, s.fail(ctx, nil, fmt.Errorf("%w: packet of %d bytes, limit %d", ErrOversizedLength, length, maxPacket))
	}
	if length == 0 {
		return nil, s.fail(ctx, nil, fmt.Errorf("%w: empty packet", ErrInvalidPayload))
	}

	s.transition(AwaitingResponseBody)
	body, err := reader.ReadExact(ctx, int(length))
	if err != nil {
		return nil, s.fail(ctx, nil, err)
	}

	payload, err := decodeResponse(body, s.maxString)
	if err != nil {
		return nil, s.fail(ctx, nil, err)
	}

	var status models.StatusResponse
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return nil, s.fail(ctx, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}

	s.transition(Done)
	status.Latency = time.Since(start)
	status.RemoteIP = remoteIP(conn)

	return &status, nil
}

// decodeResponse checks the packet id and returns the JSON string.
func decodeResponse(body []byte, maxString int) (string, error) {
	br := bytes.NewReader(body)

	id, err := varint.Decode(br)
	if err != nil {
		if errors.Is(err, varint.ErrMalformed) {
			return "", err
		}
		return "", fmt.Errorf("%w: missing packet id", ErrInvalidPayload)
	}
	if id != PacketStatusResponse {
		return "", fmt.Errorf("%w: 0x%02X", ErrUnexpectedPacketID, id)
	}

	payload, err := varint.DecodeString(br, maxString)
	if err != nil {
		if errors.Is(err, varint.ErrMalformed) || errors.Is(err, varint.ErrOversized) {
			return "", err
		}
		return "", fmt.Errorf("%w: truncated json string", ErrInvalidPayload)
	}

	return payload, nil
}

// pump pushes everything read from conn into reader until the connection
// fails or is closed, then finishes the reader with a connection error.
// Bytes already pushed stay readable.
func pump(conn net.Conn, reader *stream.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			reader.Push(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			reader.Finish(fmt.Errorf("%w: %w", ErrConnection, err))
			return
		}
	}
}

func (s *session) transition(state State) {
	s.state = state
	log.Trace().Str("address", s.addr.String()).Stringer("state", state).Msg("SLP session state")
}

// fail wraps err for the current state. A fired timeout always reports
// ErrTimeout, whatever error the teardown produced on the way. A cancelled
// context always reports context.Canceled, at every state.
func (s *session) fail(ctx context.Context, kind, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		if !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
		}
	case errors.Is(ctx.Err(), context.Canceled):
		if !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", context.Canceled, err)
		}
	case errors.Is(err, stream.ErrClosed):
		err = fmt.Errorf("%w: %v", ErrConnection, err)
	case kind != nil && !errors.Is(err, kind):
		err = fmt.Errorf("%w: %v", kind, err)
	}

	return &QueryError{Err: err, Address: s.addr, State: s.state}
}

func remoteIP(conn net.Conn) string {
	switch addr := conn.RemoteAddr().(type) {
	case *net.TCPAddr:
		return addr.IP.String()
	case nil:
		return ""
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return addr.String()
		}
		return host
	}
}
