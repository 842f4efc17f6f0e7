package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelik/polymarket-data/internal/model"
)

// MirrorConfig holds batching settings for the Postgres mirror.
type MirrorConfig struct {
	InstanceID    string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultMirrorConfig returns sensible defaults.
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
		BufferSize:    10000,
	}
}

// MirrorStats contains mirror counters.
type MirrorStats struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Queued    int
}

// priceRow is the database shape of one journal row.
type priceRow struct {
	instanceID string
	tsMs       int64
	marketType string
	priceUp    float64
	priceDown  float64
	upBid      float64
	upAsk      float64
	downBid    float64
	downAsk    float64
	entryKind  string
	notes      string
}

// Mirror batches journal rows into the price_rows table.
type Mirror struct {
	cfg    MirrorConfig
	db     *pgxpool.Pool
	logger *slog.Logger

	input *Queue[model.JournalRow]

	batchMu     sync.Mutex
	batch       []priceRow
	metrics     MirrorStats
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMirror creates a Postgres mirror writing through db.
func NewMirror(cfg MirrorConfig, db *pgxpool.Pool, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  NewQueue[model.JournalRow](cfg.BufferSize),
		batch:  make([]priceRow, 0, cfg.BatchSize),
	}
}

// WriteRow enqueues one row for mirroring. Never blocks the caller.
func (m *Mirror) WriteRow(row model.JournalRow) error {
	m.input.Push(row)
	return nil
}

// Start begins consuming and flushing.
func (m *Mirror) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.flushTicker = time.NewTicker(m.cfg.FlushInterval)

	m.wg.Add(1)
	go m.consumeLoop()

	m.wg.Add(1)
	go m.flushLoop()

	m.logger.Info("postgres mirror started",
		"batch_size", m.cfg.BatchSize,
		"flush_interval", m.cfg.FlushInterval,
	)
	return nil
}

// Stop drains what it can and stops, bounded by ctx.
func (m *Mirror) Stop(ctx context.Context) error {
	m.logger.Info("stopping postgres mirror")

	m.input.Close()
	if m.cancel != nil {
		m.cancel()
	}
	if m.flushTicker != nil {
		m.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("postgres mirror stopped")
	case <-ctx.Done():
		m.logger.Warn("postgres mirror stop timed out")
	}

	// Final drain and flush.
	for _, row := range m.input.Drain(0) {
		m.append(row)
	}
	m.flush(ctx)
	return nil
}

// Stats returns current metrics.
func (m *Mirror) Stats() MirrorStats {
	m.batchMu.Lock()
	defer m.batchMu.Unlock()
	stats := m.metrics
	stats.Queued = m.input.Len()
	return stats
}

func (m *Mirror) consumeLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			row, ok := m.input.TryPop()
			if !ok {
				select {
				case <-m.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			m.append(row)
		}
	}
}

func (m *Mirror) flushLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.flushTicker.C:
			m.flush(m.ctx)
		}
	}
}

// append adds a transformed row to the batch, flushing when full.
func (m *Mirror) append(row model.JournalRow) {
	m.batchMu.Lock()
	m.batch = append(m.batch, m.transform(row))
	full := len(m.batch) >= m.cfg.BatchSize
	m.batchMu.Unlock()

	if full {
		m.flush(m.ctx)
	}
}

// transform converts a journal row to its database shape.
func (m *Mirror) transform(row model.JournalRow) priceRow {
	return priceRow{
		instanceID: m.cfg.InstanceID,
		tsMs:       row.TimestampMs,
		marketType: string(row.Type),
		priceUp:    row.PriceUp,
		priceDown:  row.PriceDown,
		upBid:      row.UpBid,
		upAsk:      row.UpAsk,
		downBid:    row.DownBid,
		downAsk:    row.DownAsk,
		entryKind:  string(row.Kind),
		notes:      row.Notes,
	}
}

// flush writes the current batch to the database.
func (m *Mirror) flush(ctx context.Context) {
	m.batchMu.Lock()
	if len(m.batch) == 0 {
		m.batchMu.Unlock()
		return
	}
	batch := m.batch
	m.batch = make([]priceRow, 0, m.cfg.BatchSize)
	m.batchMu.Unlock()

	start := time.Now()

	conflicts, err := m.batchInsert(ctx, batch)
	if err != nil {
		m.logger.Error("batch insert failed", "error", err, "count", len(batch))
		m.batchMu.Lock()
		m.metrics.Errors++
		m.batchMu.Unlock()
		return
	}

	m.batchMu.Lock()
	m.metrics.Inserts += int64(len(batch) - conflicts)
	m.metrics.Conflicts += int64(conflicts)
	m.metrics.Flushes++
	m.batchMu.Unlock()

	m.logger.Debug("flushed price rows",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (m *Mirror) batchInsert(ctx context.Context, rows []priceRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO price_rows (instance_id, ts_ms, market_type, price_up, price_down, up_bid, up_ask, down_bid, down_ask, entry_kind, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (instance_id, market_type, ts_ms, entry_kind) DO NOTHING
		`, r.instanceID, r.tsMs, r.marketType, r.priceUp, r.priceDown, r.upBid, r.upAsk, r.downBid, r.downAsk, r.entryKind, r.notes)
	}

	results := m.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
