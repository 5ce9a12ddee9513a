package server

import (
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/internal/models"
)

// record queues entry for the history writers without blocking the request.
// Entries arriving after StopWorkers are dropped.
func (s *Server) record(entry models.HistoryEntry) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.stopped {
		log.Warn().Str("address", entry.Address).Msg("History writers stopped, record dropped")
		return
	}

	select {
	case s.queue <- entry:
		log.Trace().Str("address", entry.Address).Msg("History record queued")
	default:
		log.Warn().Str("address", entry.Address).Msg("History queue full, record dropped")
	}
}

// worker is a background goroutine that writes queued history records.
func (s *Server) worker() {
	defer s.wg.Done()

	for entry := range s.queue {
		if err := s.storage.InsertHistory(entry); err != nil {
			log.Error().Err(err).Str("address", entry.Address).Msg("Failed to save history record")
		}
	}
}
