package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pipecheck/internal/check"
	"pipecheck/internal/config"
	"pipecheck/internal/crawl"
	"pipecheck/internal/dbclient"
	"pipecheck/internal/domain"
	"pipecheck/internal/schema"
	"pipecheck/internal/secret"
)

// ErrAlreadyRunning is returned when the same check is started twice.
var ErrAlreadyRunning = errors.New("check is already running")

// ErrHistoryDisabled is returned by ListRuns when no history store is configured.
var ErrHistoryDisabled = errors.New("run history is disabled")

// ConnectFunc opens the destination store.
type ConnectFunc func(conn *domain.DatabaseConnection, secret string) (dbclient.Connector, error)

// CrawlerFunc builds the crawler for an engine.
type CrawlerFunc func(engine string, timeout time.Duration, chromeBin string) (crawl.Crawler, error)

// Options holds the optional collaborators of a CheckService.
type Options struct {
	History    domain.CheckRunStore // nil disables history
	Emitter    EventEmitter
	Logger     *zap.Logger
	Connect    ConnectFunc
	NewCrawler CrawlerFunc
}

// CheckService runs checks, records them and drives watch mode.
type CheckService struct {
	mu      sync.RWMutex
	cfg     *config.Config
	secrets secret.SecretStore

	history    domain.CheckRunStore
	emitter    EventEmitter
	logger     *zap.Logger
	connect    ConnectFunc
	newCrawler CrawlerFunc
	running    runningChecksGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewCheckService creates a CheckService ready for use.
func NewCheckService(cfg *config.Config, secrets secret.SecretStore, opts Options) *CheckService {
	s := &CheckService{
		cfg:        cfg,
		secrets:    secrets,
		history:    opts.History,
		emitter:    opts.Emitter,
		logger:     opts.Logger,
		connect:    opts.Connect,
		newCrawler: opts.NewCrawler,
	}
	if s.emitter == nil {
		s.emitter = nopEmitter{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.connect == nil {
		s.connect = dbclient.NewConnector
	}
	if s.newCrawler == nil {
		s.newCrawler = crawl.New
	}
	return s
}

// Config returns the current configuration.
func (s *CheckService) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// RunResult is a recorded run plus the check's own result. Result is nil
// when the run ended before the check could produce one.
type RunResult struct {
	Run    domain.CheckRun `json:"run"`
	Result check.Result    `json:"result,omitempty"`
}

// Outcome returns the run outcome.
func (r *RunResult) Outcome() domain.Outcome { return r.Run.Outcome }

// Report writes the check report, or the failure message when there is none.
func (r *RunResult) Report(w io.Writer) {
	if r.Result != nil {
		r.Result.Report(w)
		return
	}
	fmt.Fprintf(w, "FAIL: %s\n", r.Run.Message)
}

// configurationError marks failures that happen before anything is probed.
type configurationError struct{ err error }

func (e *configurationError) Error() string { return e.err.Error() }
func (e *configurationError) Unwrap() error { return e.err }

// Run dispatches a check by name. arg is the crawl URL for the crawl check
// and ignored otherwise.
func (s *CheckService) Run(ctx context.Context, name, arg string) (*RunResult, error) {
	switch name {
	case domain.CheckMapping:
		return s.RunMapping(ctx)
	case domain.CheckTables:
		return s.RunTables(ctx)
	case domain.CheckCrawl:
		return s.RunCrawl(ctx, arg)
	default:
		return nil, fmt.Errorf("unknown check %q", name)
	}
}

// RunMapping validates the configured mapping against the listings table.
func (s *CheckService) RunMapping(ctx context.Context) (*RunResult, error) {
	return s.run(ctx, domain.CheckMapping, func(ctx context.Context, cfg *config.Config) (check.Result, error) {
		conn, err := s.open(cfg)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		res, err := check.Mapping(ctx, cfg.Mapping, dbclient.NewTable(conn, schema.Table))
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// RunTables probes every configured table.
func (s *CheckService) RunTables(ctx context.Context) (*RunResult, error) {
	return s.run(ctx, domain.CheckTables, func(ctx context.Context, cfg *config.Config) (check.Result, error) {
		conn, err := s.open(cfg)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		return check.CheckTables(ctx, conn, cfg.Tables), nil
	})
}

// RunCrawl crawls url, or the configured URL when url is empty.
func (s *CheckService) RunCrawl(ctx context.Context, url string) (*RunResult, error) {
	return s.run(ctx, domain.CheckCrawl, func(ctx context.Context, cfg *config.Config) (check.Result, error) {
		provider, err := config.LLMProvider(s.secrets)
		if err != nil {
			return nil, &configurationError{err}
		}
		if url == "" {
			url = cfg.Crawl.URL
		}
		target, err := crawl.NormalizeURL(url)
		if err != nil {
			return nil, &configurationError{err}
		}
		timeout := time.Duration(cfg.Crawl.TimeoutSeconds) * time.Second
		c, err := s.newCrawler(cfg.Crawl.Engine, timeout, cfg.Crawl.ChromeBin)
		if err != nil {
			return nil, &configurationError{err}
		}

		res, err := check.Crawl(ctx, c, target, provider, cfg.Crawl.MinWords)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

func (s *CheckService) open(cfg *config.Config) (dbclient.Connector, error) {
	conn, key, err := cfg.Connection(s.secrets)
	if err != nil {
		return nil, &configurationError{err}
	}
	c, err := s.connect(conn, key)
	if err != nil {
		return nil, &configurationError{fmt.Errorf("open %s store: %w", conn.Driver, err)}
	}
	return c, nil
}

// run wraps one check execution: guard, timing, logging, history and events.
// The returned error is only ErrAlreadyRunning; every other failure is
// recorded in the RunResult.
func (s *CheckService) run(ctx context.Context, name string, fn func(context.Context, *config.Config) (check.Result, error)) (*RunResult, error) {
	if !s.running.TryLock(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrAlreadyRunning)
	}
	defer s.running.Unlock(name)

	rr := &RunResult{Run: domain.CheckRun{ID: uuid.New().String(), Check: name, StartedAt: time.Now()}}
	log := s.logger.With(zap.String("check", name), zap.String("run_id", rr.Run.ID))
	log.Info("check started")
	s.emitter.Emit(ctx, EventCheckStarted, rr.Run)

	res, err := fn(ctx, s.Config())
	rr.Run.FinishedAt = time.Now()

	var cfgErr *configurationError
	switch {
	case errors.As(err, &cfgErr):
		rr.Run.Outcome = domain.OutcomeConfigurationError
		rr.Run.Message = err.Error()
	case err != nil:
		rr.Run.Outcome = domain.OutcomeFailed
		rr.Run.Message = err.Error()
	default:
		rr.Result = res
		rr.Run.Outcome = res.Status()
		rr.Run.Message = res.Summary()
		if detail, err := json.Marshal(res); err == nil {
			rr.Run.DetailJSON = string(detail)
		} else {
			log.Warn("encode run detail", zap.Error(err))
		}
	}

	if s.history != nil {
		if err := s.history.CreateRun(&rr.Run); err != nil {
			log.Warn("record run", zap.Error(err))
		}
	}

	fields := []zap.Field{zap.String("outcome", string(rr.Run.Outcome)), zap.Duration("took", rr.Run.Duration())}
	if rr.Run.Outcome.OK() {
		log.Info("check finished", fields...)
	} else {
		log.Warn("check finished", append(fields, zap.String("message", rr.Run.Message))...)
	}
	s.emitter.Emit(ctx, EventCheckFinished, rr)
	return rr, nil
}

// Ping opens the store and tests the connection without probing any table.
// It is not recorded in history. Missing credentials come back wrapped in
// config.ErrMissingCredentials.
func (s *CheckService) Ping(ctx context.Context) error {
	conn, err := s.open(s.Config())
	if err != nil {
		return err
	}
	defer conn.Close()

	start := time.Now()
	if err := conn.TestConnection(ctx); err != nil {
		s.logger.Warn("ping failed", zap.Error(err))
		return fmt.Errorf("test connection: %w", err)
	}
	s.logger.Info("ping ok", zap.Duration("took", time.Since(start)))
	return nil
}

// IsConfigurationError reports whether err happened before the store was
// contacted.
func IsConfigurationError(err error) bool {
	var cfgErr *configurationError
	return errors.As(err, &cfgErr)
}

// ListRuns returns recorded runs, newest first.
func (s *CheckService) ListRuns(check string, limit int) ([]domain.CheckRun, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ListRuns(check, limit)
}

// PruneHistory deletes runs older than retention. A non-positive
// retention keeps everything.
func (s *CheckService) PruneHistory(retention time.Duration) (int64, error) {
	if s.history == nil {
		return 0, ErrHistoryDisabled
	}
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.history.PruneRuns(time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("history pruned", zap.Int64("runs", n), zap.Duration("retention", retention))
	}
	return n, nil
}

// WaitRunning blocks until all running checks finish or ctx is cancelled.
func (s *CheckService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}
