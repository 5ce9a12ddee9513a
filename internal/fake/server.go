package fake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Tnze/go-mc/net/packet"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/internal/models"
)

// Handshake is what a client sent in its handshake packet.
type Handshake struct {
	Host      string
	Protocol  int32
	NextState int32
	Port      uint16
}

// Server is a minimal Minecraft status server for development and tests.
// It answers the handshake, status request and ping of the status state.
type Server struct {
	// Status builds the payload for a status request. Nil means Generate.
	Status func(Handshake) models.StatusResponse

	// Delay postpones every response.
	Delay time.Duration

	// Silent accepts connections and reads requests but never answers.
	Silent bool

	ln     net.Listener
	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// Listen starts listening on addr (for tests, "127.0.0.1:0").
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.conns = make(map[net.Conn]struct{})
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

// Close stops the listener, drops open connections and waits for handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	err := s.ln.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	logCtx := log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	r := bufio.NewReader(conn)

	pk, err := readPacket(r)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Failed to read handshake")
		return
	}

	var (
		version packet.VarInt
		host    packet.String
		port    packet.UnsignedShort
		state   packet.VarInt
	)
	if pk.ID != 0x00 {
		logCtx.Debug().Int32("id", pk.ID).Msg("Expected handshake")
		return
	}
	if err := pk.Scan(&version, &host, &port, &state); err != nil {
		logCtx.Debug().Err(err).Msg("Malformed handshake")
		return
	}

	hs := Handshake{
		Host:      string(host),
		Protocol:  int32(version),
		NextState: int32(state),
		Port:      uint16(port),
	}
	logCtx.Debug().
		Str("host", hs.Host).
		Int32("protocol", hs.Protocol).
		Int32("state", hs.NextState).
		Msg("Handshake received")

	if hs.NextState != 1 {
		return
	}

	for {
		pk, err := readPacket(r)
		if err != nil {
			return
		}
		if s.Silent {
			continue
		}
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}

		switch pk.ID {
		case 0x00:
			status := s.status(hs)
			out, err := json.Marshal(&status)
			if err != nil {
				logCtx.Error().Err(err).Msg("Failed to marshal status")
				return
			}
			if err := writePacket(conn, packet.Marshal(0x00, packet.String(string(out)))); err != nil {
				return
			}

		case 0x01:
			var payload packet.Long
			if err := pk.Scan(&payload); err != nil {
				return
			}
			_ = writePacket(conn, packet.Marshal(0x01, payload))
			return

		default:
			logCtx.Debug().Int32("id", pk.ID).Msg("Unexpected packet in status state")
			return
		}
	}
}

func (s *Server) status(hs Handshake) models.StatusResponse {
	if s.Status != nil {
		return s.Status(hs)
	}
	return Generate()
}

// readPacket reads one uncompressed frame: VarInt length, VarInt id, data.
func readPacket(r *bufio.Reader) (packet.Packet, error) {
	var length packet.VarInt
	if err := length.Decode(r); err != nil {
		return packet.Packet{}, err
	}
	if length <= 0 || length > 1<<21 {
		return packet.Packet{}, fmt.Errorf("bad packet length %d", length)
	}

	data, err := packet.ReadNBytes(r, int(length))
	if err != nil {
		return packet.Packet{}, err
	}

	br := bytes.NewReader(data)
	var id packet.VarInt
	if err := id.Decode(br); err != nil {
		return packet.Packet{}, err
	}
	return packet.Packet{ID: int32(id), Data: data[len(data)-br.Len():]}, nil
}

func writePacket(conn net.Conn, pk packet.Packet) error {
	body := append(packet.VarInt(pk.ID).Encode(), pk.Data...)
	frame := append(packet.VarInt(int32(len(body))).Encode(), body...)
	_, err := conn.Write(frame)
	return err
}
