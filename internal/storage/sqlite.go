// Package storage handles database connections, schema migrations, and data operations using SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/mcping/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SetDefault binds scope to address, replacing any previous binding.
func (r *Repository) SetDefault(scope, address string) error {
	query := `
	INSERT INTO default_servers (scope, address, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(scope) DO UPDATE SET
		address = excluded.address,
		updated_at = excluded.updated_at;
	`
	_, err := r.db.Exec(query, scope, address, time.Now().UTC())
	return err
}

// GetDefault returns the default server of scope, or nil when none is set.
func (r *Repository) GetDefault(scope string) (*models.DefaultServer, error) {
	row := r.db.QueryRow(`SELECT scope, address, updated_at FROM default_servers WHERE scope = ?`, scope)

	var d models.DefaultServer
	err := row.Scan(&d.Scope, &d.Address, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &d, nil
}

// GetDefaults returns every scope binding, ordered by scope.
func (r *Repository) GetDefaults() ([]models.DefaultServer, error) {
	rows, err := r.db.Query(`SELECT scope, address, updated_at FROM default_servers ORDER BY scope`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var defaults []models.DefaultServer
	for rows.Next() {
		var d models.DefaultServer
		if err := rows.Scan(&d.Scope, &d.Address, &d.UpdatedAt); err != nil {
			return nil, err
		}
		defaults = append(defaults, d)
	}

	return defaults, rows.Err()
}

// DeleteDefault removes the binding of scope. It reports whether one existed.
func (r *Repository) DeleteDefault(scope string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM default_servers WHERE scope = ?`, scope)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// InsertHistory records one query result.
func (r *Repository) InsertHistory(h models.HistoryEntry) error {
	query := `
	INSERT INTO status_history (
		address, host, port, ip, country_code, version_name, protocol,
		online, max_players, motd_html, latency_ms, error, queried_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		h.Address, h.Host, h.Port, h.IP, h.CountryCode, h.VersionName, h.Protocol,
		h.Online, h.MaxPlayers, h.MotdHTML, h.LatencyMS, h.Error, h.QueriedAt.UTC(),
	)

	return err
}

// GetHistory returns the most recent results for address, newest first.
// An empty address returns results for every server.
func (r *Repository) GetHistory(address string, limit int) ([]models.HistoryEntry, error) {
	query := `
		SELECT id, address, host, port, ip, country_code, version_name, protocol,
		       online, max_players, motd_html, latency_ms, error, queried_at
		FROM status_history
		WHERE 1=1
	`
	var args []interface{}

	if address != "" {
		query += " AND address = ?"
		args = append(args, address)
	}
	query += " ORDER BY queried_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(
			&h.ID, &h.Address, &h.Host, &h.Port, &h.IP, &h.CountryCode, &h.VersionName, &h.Protocol,
			&h.Online, &h.MaxPlayers, &h.MotdHTML, &h.LatencyMS, &h.Error, &h.QueriedAt,
		); err != nil {
			continue
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// DeleteHistoryBefore removes history recorded before t and returns the number of rows deleted.
func (r *Repository) DeleteHistoryBefore(t time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM status_history WHERE queried_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
