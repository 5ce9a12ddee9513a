package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/internal/address"
	"github.com/woozymasta/mcping/internal/game"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/slp"
	"github.com/woozymasta/mcping/internal/vars"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	faviconPrefix       = "data:image/png;base64,"
)

var errNoAddress = errors.New("no server address given and no default configured")

// handleStatus queries a server and returns its report as JSON.
// Query params: ?address=mc.example.com or ?scope=guild-id
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.lookup(r.Context(), r)
	if err != nil {
		writeError(w, statusCode(err), err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleStatusPage renders the status card of a server.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	page := statusPage{ShowMotd: s.showMotd, Footer: s.footer}
	code := http.StatusOK

	report, err := s.lookup(r.Context(), r)
	if err != nil {
		code = statusCode(err)
		page.Error = err.Error()
		page.Report = &models.Report{Address: r.URL.Query().Get("address")}
	} else {
		page.Report = report
		page.Motd = template.HTML(report.MotdHTML) //nolint:gosec // rendered by chat with escaping
		if strings.HasPrefix(report.Favicon, faviconPrefix) {
			page.Favicon = template.URL(report.Favicon) //nolint:gosec // png data url only
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.page.Execute(w, page); err != nil {
		log.Error().Err(err).Msg("Failed to render status page")
	}
}

// lookup picks the target address of r and returns its report, from the
// cache when fresh. Fresh queries are recorded to history.
func (s *Server) lookup(ctx context.Context, r *http.Request) (*models.Report, error) {
	target, err := s.target(r)
	if err != nil {
		return nil, err
	}

	if report, ok := s.cached(target); ok {
		log.Trace().Str("address", target).Msg("Status served from cache")
		return report, nil
	}

	report, err := s.querier.Query(ctx, target)
	if errors.Is(err, address.ErrInvalidAddress) {
		return nil, err
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	s.record(game.History(target, report, err))
	if err != nil {
		return nil, err
	}

	s.remember(target, report)
	return report, nil
}

// target returns the address param, else the default of the scope param,
// else the configured default address.
func (s *Server) target(r *http.Request) (string, error) {
	q := r.URL.Query()
	if addr := strings.TrimSpace(q.Get("address")); addr != "" {
		return addr, nil
	}

	if scope := q.Get("scope"); scope != "" {
		def, err := s.storage.GetDefault(scope)
		if err != nil {
			return "", err
		}
		if def != nil {
			return def.Address, nil
		}
	}

	if s.defaultAddress != "" {
		return s.defaultAddress, nil
	}

	return "", errNoAddress
}

// handleGetDefault returns the default server of a scope.
// Query params: ?scope=guild-id
func (s *Server) handleGetDefault(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		http.Error(w, "Missing scope", http.StatusBadRequest)
		return
	}

	def, err := s.storage.GetDefault(scope)
	if err != nil {
		log.Error().Err(err).Str("scope", scope).Msg("Failed to fetch default server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}
	if def == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, def)
}

// handleSetDefault binds a scope to an address.
// Query params: ?scope=guild-id&address=mc.example.com
func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	addr := strings.TrimSpace(r.URL.Query().Get("address"))
	if scope == "" || addr == "" {
		http.Error(w, "Missing required params (scope, address)", http.StatusBadRequest)
		return
	}

	if err := s.storage.SetDefault(scope, addr); err != nil {
		log.Error().Err(err).Str("scope", scope).Msg("Failed to save default server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	log.Info().Str("scope", scope).Str("address", addr).Msg("Default server set")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scope": scope, "address": addr})
}

// handleDeleteDefault removes the default server of a scope.
func (s *Server) handleDeleteDefault(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		http.Error(w, "Missing scope", http.StatusBadRequest)
		return
	}

	deleted, err := s.storage.DeleteDefault(scope)
	if err != nil {
		log.Error().Err(err).Str("scope", scope).Msg("Failed to delete default server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.NotFound(w, r)
		return
	}

	log.Info().Str("scope", scope).Msg("Default server removed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Default server removed"})
}

// handleListDefaults returns every scope binding.
func (s *Server) handleListDefaults(w http.ResponseWriter, _ *http.Request) {
	defaults, err := s.storage.GetDefaults()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch default servers")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}
	if defaults == nil {
		defaults = []models.DefaultServer{}
	}

	writeJSON(w, http.StatusOK, defaults)
}

// handleHistory returns recorded query results, newest first.
// Query params: ?address=mc.example.com&limit=50
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.storage.GetHistory(strings.TrimSpace(r.URL.Query().Get("address")), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch history")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// statusCode maps a lookup failure to the HTTP status returned to the caller.
func statusCode(err error) int {
	switch {
	case errors.Is(err, address.ErrInvalidAddress), errors.Is(err, errNoAddress):
		return http.StatusBadRequest
	case errors.Is(err, slp.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, slp.ErrConnection),
		errors.Is(err, slp.ErrUnexpectedPacketID),
		errors.Is(err, slp.ErrInvalidPayload),
		errors.Is(err, slp.ErrMalformedVarInt),
		errors.Is(err, slp.ErrOversizedLength),
		errors.Is(err, context.Canceled):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
