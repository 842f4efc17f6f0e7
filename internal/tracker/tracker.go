package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avelik/polymarket-data/internal/config"
	"github.com/avelik/polymarket-data/internal/discovery"
	"github.com/avelik/polymarket-data/internal/feed"
	"github.com/avelik/polymarket-data/internal/gamma"
	"github.com/avelik/polymarket-data/internal/journal"
	"github.com/avelik/polymarket-data/internal/model"
	"github.com/avelik/polymarket-data/internal/rotation"
	"github.com/avelik/polymarket-data/internal/stream"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("tracker: already started")
	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("tracker: not started")
)

// Tokens whose windows have rotated out linger in the latest-quote map
// until it crosses this size, at which point unresolvable entries are
// swept.
const maxLatestQuotes = 64

// Windows is the discovery surface the tracker reads.
type Windows interface {
	Current() map[model.MarketType]model.MarketWindow
	Next() map[model.MarketType]model.MarketWindow
	TokenRef(tokenID string) (discovery.TokenRef, bool)
}

// discoverySurface is what the tracker and the rotation scheduler
// together need from discovery. *discovery.Service satisfies it.
type discoverySurface interface {
	Windows
	Refresh(ctx context.Context) []model.MarketType
	TrackedTokenIDs() []string
}

// ServiceStats aggregates component counters for the health endpoint.
type ServiceStats struct {
	Feed     feed.Stats
	Stream   stream.Stats
	Journal  journal.AssemblerStats
	Rotation rotation.Stats
	Rows     int64
	RunDir   string
}

type options struct {
	sinks []journal.Sink
}

// Option customizes service construction.
type Option func(*options)

// WithRowSink adds a sink that receives every journal row in addition
// to the CSV writer, e.g. the database mirror.
func WithRowSink(sink journal.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sink) }
}

// Service is the assembled market tracker.
type Service struct {
	cfg    config.TrackerConfig
	logger *slog.Logger
	now    func() time.Time

	disc    discoverySurface
	feedMgr feed.Manager
	proc    *stream.Processor
	asm     *journal.Assembler
	writer  *journal.Writer
	sched   *rotation.Scheduler

	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool

	mu     sync.Mutex
	latest map[string]stream.Quote
}

// New builds a tracker service from configuration. The Gamma catalog
// client and the feed manager are created from cfg; use options to
// attach additional row sinks.
func New(cfg config.TrackerConfig, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	catalog := gamma.NewClient(cfg.Gamma.BaseURL,
		gamma.WithLogger(logger),
		gamma.WithTimeout(cfg.Gamma.Timeout),
		gamma.WithRetries(cfg.Gamma.MaxRetries, cfg.Gamma.RetryDelay),
	)

	discCfg := discovery.DefaultConfig()
	discCfg.Retries = cfg.Gamma.DiscoveryRetries
	discCfg.RetryDelay = cfg.Gamma.RetryDelay
	disc := discovery.New(discCfg, catalog, logger)

	feedMgr := feed.NewManager(feed.ManagerConfig{
		URL:                cfg.Feed.URL,
		PingInterval:       cfg.Feed.PingInterval,
		PongTimeout:        cfg.Feed.PongTimeout,
		WriteTimeout:       cfg.Feed.WriteTimeout,
		ReconnectBaseDelay: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Feed.ReconnectMaxDelay,
		BufferSize:         cfg.Feed.BufferSize,
	}, logger)

	return wire(cfg, logger, disc, feedMgr, o.sinks)
}

// wire assembles the service around an existing discovery surface and
// feed manager. Split out of New so tests can substitute fakes.
func wire(cfg config.TrackerConfig, logger *slog.Logger, disc discoverySurface, feedMgr feed.Manager, extra []journal.Sink) *Service {
	proc := stream.NewProcessor(cfg.Feed.BufferSize, logger)

	writer := journal.NewWriter(journal.WriterConfig{
		OutputDir:     cfg.Journal.OutputDir,
		FlushInterval: cfg.Journal.FlushInterval,
	}, logger)

	var sink journal.Sink = writer
	if len(extra) > 0 {
		sink = append(multiSink{writer}, extra...)
	}

	asm := journal.NewAssembler(journal.AssemblerConfig{
		PairWindow:    cfg.Journal.PairWindow,
		StaleAfter:    cfg.Journal.StaleAfter,
		OrderingSlack: cfg.Journal.OrderingSlack,
		MaxDeviation:  cfg.Journal.MaxDeviation,
		DedupSize:     cfg.Journal.DedupSize,
		HistorySize:   cfg.Journal.HistorySize,
	}, sink, logger)

	sched := rotation.New(rotation.Config{
		PollInterval:    cfg.Rotation.PollInterval,
		SwitchBuffer:    cfg.Rotation.SwitchBuffer,
		MaxRefreshEvery: cfg.Rotation.MaxRefreshEvery,
	}, disc, feedMgr, proc, logger)

	return &Service{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		disc:    disc,
		feedMgr: feedMgr,
		proc:    proc,
		asm:     asm,
		writer:  writer,
		sched:   sched,
		latest:  make(map[string]stream.Quote),
	}
}

// Start brings up the journal writer, the feed, the event loops, and
// finally the rotation scheduler, which performs the initial discovery
// and subscribes the feed.
func (s *Service) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	if err := s.writer.Start(ctx); err != nil {
		return fmt.Errorf("journal writer: %w", err)
	}
	if err := s.feedMgr.Start(ctx); err != nil {
		s.writer.Stop(ctx)
		return fmt.Errorf("feed: %w", err)
	}

	s.wg.Add(2)
	go s.eventLoop()
	go s.quoteLoop()

	if err := s.sched.Start(ctx); err != nil {
		s.feedMgr.Stop(ctx)
		s.wg.Wait()
		s.writer.Stop(ctx)
		return fmt.Errorf("rotation: %w", err)
	}

	s.started = true
	s.logger.Info("tracker started", "run_dir", s.writer.Dir())
	return nil
}

// Stop shuts components down in reverse order and flushes the journal.
func (s *Service) Stop(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	s.started = false

	s.sched.Stop(ctx)
	s.feedMgr.Stop(ctx)

	// Closing the feed closes Messages, which closes the processor,
	// which closes Quotes; both loops drain out.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.writer.Stop(ctx); err != nil {
		return fmt.Errorf("journal writer: %w", err)
	}
	s.logger.Info("tracker stopped", "rows", s.writer.Rows())
	return nil
}

// eventLoop feeds raw frames into the stream processor.
func (s *Service) eventLoop() {
	defer s.wg.Done()
	defer s.proc.Close()
	for msg := range s.feedMgr.Messages() {
		s.proc.Process(msg)
	}
}

// quoteLoop resolves quotes against the discovered windows and hands
// them to the journal assembler.
func (s *Service) quoteLoop() {
	defer s.wg.Done()
	for q := range s.proc.Quotes() {
		ref, ok := s.disc.TokenRef(q.TokenID)
		if !ok {
			// Token rotated out between forwarding and resolution.
			s.mu.Lock()
			delete(s.latest, q.TokenID)
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		s.latest[q.TokenID] = q
		if len(s.latest) > maxLatestQuotes {
			s.pruneLatestLocked()
		}
		s.mu.Unlock()

		s.asm.Observe(journal.Observation{
			Type:        ref.Window.Type,
			Outcome:     ref.Outcome,
			Mid:         q.Mid,
			Bid:         q.Bid,
			Ask:         q.Ask,
			TimestampMs: q.TimestampMs,
		})
	}
}

func (s *Service) pruneLatestLocked() {
	for id := range s.latest {
		if _, ok := s.disc.TokenRef(id); !ok {
			delete(s.latest, id)
		}
	}
}

// MidPrice returns the latest deduplicated quote for a token id.
func (s *Service) MidPrice(tokenID string) (stream.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.latest[tokenID]
	return q, ok
}

// CurrentWindows returns the currently tracked window per market type.
func (s *Service) CurrentWindows() map[model.MarketType]model.MarketWindow {
	return s.disc.Current()
}

// NextWindows returns the resolved successor window per market type.
func (s *Service) NextWindows() map[model.MarketType]model.MarketWindow {
	return s.disc.Next()
}

// MarkWatch journals a watch mark for a market type. Marks with the
// same key are written once; an empty key falls back to the mark's
// timestamp and notes.
func (s *Service) MarkWatch(mt model.MarketType, key, notes string) error {
	return s.asm.MarkWatch(mt, key, notes, s.now().UnixMilli())
}

// MarkPaper journals a paper-trade mark for a market type.
func (s *Service) MarkPaper(mt model.MarketType, key, notes string) error {
	return s.asm.MarkPaper(mt, key, notes, s.now().UnixMilli())
}

// HistoryFor returns the recent price history ring for a market type.
func (s *Service) HistoryFor(mt model.MarketType) *journal.History {
	return s.asm.HistoryFor(mt)
}

// RunDir returns the journal run directory, empty before Start.
func (s *Service) RunDir() string {
	return s.writer.Dir()
}

// Stats snapshots counters across all components.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Feed:     s.feedMgr.Stats(),
		Stream:   s.proc.Stats(),
		Journal:  s.asm.Stats(),
		Rotation: s.sched.Stats(),
		Rows:     s.writer.Rows(),
		RunDir:   s.writer.Dir(),
	}
}

// multiSink fans each row out to every sink. All sinks see the row;
// the first error is returned.
type multiSink []journal.Sink

func (m multiSink) WriteRow(row model.JournalRow) error {
	var first error
	for _, sink := range m {
		if err := sink.WriteRow(row); err != nil && first == nil {
			first = err
		}
	}
	return first
}
