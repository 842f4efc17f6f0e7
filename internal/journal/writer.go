package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelik/polymarket-data/internal/model"
)

// csvHeader is the fixed column set of every journal file.
var csvHeader = []string{
	"timestamp_ms", "date",
	"year", "month", "day", "hour", "minute", "second", "millisecond",
	"price_up", "price_down",
	"up_bid", "up_ask", "down_bid", "down_ask",
	"entry_kind", "watch_flag", "paper_flag", "notes",
}

// WriterConfig holds CSV writer settings.
type WriterConfig struct {
	OutputDir     string        // parent of run directories
	FlushInterval time.Duration // periodic flush cadence
	RunID         string        // run directory suffix; generated when empty
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		OutputDir:     "data",
		FlushInterval: 2 * time.Second,
	}
}

// marketFile is one open CSV file for a market type.
type marketFile struct {
	f  *os.File
	w  *csv.Writer
	mt model.MarketType
}

// Writer persists journal rows into one CSV file per market type, all under
// a directory created for this run so restarts never mix output.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	dir     string
	files   map[model.MarketType]*marketFile
	started bool

	rowsWritten int64
}

// NewWriter creates a CSV journal writer.
func NewWriter(cfg WriterConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		logger: logger,
		files:  make(map[model.MarketType]*marketFile),
	}
}

// Dir returns the run directory. Empty before Start.
func (w *Writer) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Start creates the run directory and begins the flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}

	runID := w.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()[:8]
	}
	dir := filepath.Join(w.cfg.OutputDir, fmt.Sprintf("run-%s-%s", time.Now().UTC().Format("20060102-150405"), runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create run directory: %w", err)
	}
	w.dir = dir
	w.started = true
	w.mu.Unlock()

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started", "dir", dir)
	return nil
}

// Stop flushes and closes every file, bounded by ctx.
func (w *Writer) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("flush loop did not stop in time")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for mt, mf := range w.files {
		mf.w.Flush()
		if err := mf.w.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := mf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(w.files, mt)
	}

	w.logger.Info("journal writer stopped", "rows", w.rowsWritten)
	return firstErr
}

// WriteRow appends one row to the market type's file, opening it on first
// use.
func (w *Writer) WriteRow(row model.JournalRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return fmt.Errorf("writer not started")
	}

	mf, err := w.fileLocked(row.Type)
	if err != nil {
		return err
	}

	if err := mf.w.Write(formatRow(&row)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.rowsWritten++
	return nil
}

// Rows returns the number of rows written.
func (w *Writer) Rows() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowsWritten
}

func (w *Writer) fileLocked(mt model.MarketType) (*marketFile, error) {
	if mf, ok := w.files[mt]; ok {
		return mf, nil
	}

	path := filepath.Join(w.dir, string(mt)+".csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	mf := &marketFile{f: f, w: cw, mt: mt}
	w.files[mt] = mf
	return mf, nil
}

// flushLoop periodically flushes buffered rows to disk.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushAll()
		}
	}
}

func (w *Writer) flushAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, mf := range w.files {
		mf.w.Flush()
		if err := mf.w.Error(); err != nil {
			w.logger.Error("csv flush failed", "type", mf.mt, "error", err)
		}
	}
}

// formatRow renders a row into CSV fields.
func formatRow(row *model.JournalRow) []string {
	ts := time.UnixMilli(row.TimestampMs).UTC()

	return []string{
		strconv.FormatInt(row.TimestampMs, 10),
		ts.Format("2006-01-02 15:04:05.000"),
		strconv.Itoa(ts.Year()),
		strconv.Itoa(int(ts.Month())),
		strconv.Itoa(ts.Day()),
		strconv.Itoa(ts.Hour()),
		strconv.Itoa(ts.Minute()),
		strconv.Itoa(ts.Second()),
		strconv.Itoa(ts.Nanosecond() / 1e6),
		formatPrice(row.PriceUp),
		formatPrice(row.PriceDown),
		formatPrice(row.UpBid),
		formatPrice(row.UpAsk),
		formatPrice(row.DownBid),
		formatPrice(row.DownAsk),
		string(row.Kind),
		strconv.FormatBool(row.Kind == model.EntryWatchMark),
		strconv.FormatBool(row.Kind == model.EntryPaperMark),
		row.Notes,
	}
}

func formatPrice(p float64) string {
	if p == 0 {
		return ""
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
