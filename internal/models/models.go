// Package models defines the status payload returned by Minecraft servers,
// the API responses built from it, and the records kept in the database.
package models

import (
	"time"

	"github.com/google/uuid"
)

// StatusResponse is the JSON payload of the status response packet.
// Servers vary in completeness, so every part of it may be absent.
type StatusResponse struct {
	Version     *Version     `json:"version,omitempty"`
	Players     *Players     `json:"players,omitempty"`
	Description *Description `json:"description,omitempty"`
	Favicon     string       `json:"favicon,omitempty"`

	// Latency is the time from dial to parsed payload.
	Latency time.Duration `json:"-"`

	// RemoteIP is the peer address the status was read from.
	RemoteIP string `json:"-"`
}

// Version describes the server software.
type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// Players holds player counts and an optional sample of online players.
type Players struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	Sample []Sample `json:"sample,omitempty"`
}

// Sample is one entry of the online player sample.
type Sample struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// UUID parses the sample id. Servers commonly send placeholder ids, so
// callers should treat a parse error as "no id".
func (s Sample) UUID() (uuid.UUID, error) {
	return uuid.Parse(s.ID)
}

// VersionName returns the version name or an empty string.
func (s *StatusResponse) VersionName() string {
	if s == nil || s.Version == nil {
		return ""
	}
	return s.Version.Name
}

// ProtocolVersion returns the advertised protocol number or zero.
func (s *StatusResponse) ProtocolVersion() int {
	if s == nil || s.Version == nil {
		return 0
	}
	return s.Version.Protocol
}

// Online returns the online player count or zero.
func (s *StatusResponse) Online() int {
	if s == nil || s.Players == nil {
		return 0
	}
	return s.Players.Online
}

// MaxPlayers returns the player limit or zero.
func (s *StatusResponse) MaxPlayers() int {
	if s == nil || s.Players == nil {
		return 0
	}
	return s.Players.Max
}

// SampleNames returns the names of the sampled players, possibly none.
func (s *StatusResponse) SampleNames() []string {
	if s == nil || s.Players == nil {
		return nil
	}

	names := make([]string, 0, len(s.Players.Sample))
	for _, p := range s.Players.Sample {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}

	return names
}
