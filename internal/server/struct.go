package server

import (
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/storage"
)

// Querier runs one resolved status query. *game.Querier implements it.
type Querier interface {
	Query(ctx context.Context, input string) (*models.Report, error)
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background history recording.
type Server struct {
	// storage keeps scope defaults and query history.
	storage *storage.Repository

	// querier resolves and pings Minecraft servers.
	querier Querier

	// page is the parsed status card template.
	page *template.Template

	// queue passes history records from handlers to background writers.
	queue chan models.HistoryEntry

	// shutdown is closed to stop the cache and rate limiter cleanup loops.
	shutdown chan struct{}

	// cache maps the xxhash of a normalized address to its latest cachedReport.
	cache sync.Map

	// defaultAddress is queried when neither the request nor its scope names a server.
	defaultAddress string

	// footer is the escaped status card footer, newlines already turned into <br>.
	footer template.HTML

	wg sync.WaitGroup

	// queueMu guards queue against sends after StopWorkers closed it.
	queueMu sync.RWMutex
	stopped bool

	// authHash is the xxhash of the admin token.
	authHash uint64

	cacheTTL       time.Duration
	hardLimitWin   time.Duration
	hardLimitCount int
	workers        int

	showMotd   bool
	trustProxy bool
}

type cachedReport struct {
	at     time.Time
	report *models.Report
}

// statusPage is the data of the status card template.
type statusPage struct {
	Report   *models.Report
	Error    string
	Favicon  template.URL
	Motd     template.HTML
	Footer   template.HTML
	ShowMotd bool
}
