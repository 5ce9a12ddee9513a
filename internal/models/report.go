package models

import "time"

// Report is the rendered result of one status query, as served by the API
// and shown on the status card.
type Report struct {
	QueriedAt   time.Time `json:"queried_at"`
	Address     string    `json:"address"`
	Host        string    `json:"host"`
	IP          string    `json:"ip,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	VersionName string    `json:"version_name"`
	MotdHTML    string    `json:"motd_html"`
	Favicon     string    `json:"favicon,omitempty"`
	PlayerNames []string  `json:"player_names"`
	LatencyMS   int64     `json:"latency_ms"`
	Protocol    int       `json:"protocol"`
	Online      int       `json:"online"`
	MaxPlayers  int       `json:"max_players"`
	Port        uint16    `json:"port"`
}

// HistoryEntry is one recorded query result stored in the database.
type HistoryEntry struct {
	QueriedAt   time.Time `json:"queried_at"`
	Address     string    `json:"address"`
	Host        string    `json:"host"`
	IP          string    `json:"ip"`
	CountryCode string    `json:"country_code"`
	VersionName string    `json:"version_name"`
	MotdHTML    string    `json:"motd_html"`
	Error       string    `json:"error,omitempty"`
	ID          int64     `json:"id"`
	LatencyMS   int64     `json:"latency_ms"`
	Protocol    int       `json:"protocol"`
	Online      int       `json:"online"`
	MaxPlayers  int       `json:"max_players"`
	Port        int       `json:"port"`
}

// DefaultServer binds a scope (a chat guild, channel, or any caller-chosen
// key) to the address queried when no address is given.
type DefaultServer struct {
	UpdatedAt time.Time `json:"updated_at"`
	Scope     string    `json:"scope"`
	Address   string    `json:"address"`
}
