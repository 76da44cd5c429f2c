// Package journal appends one JSON line per chart request to date-organized,
// size-rotated files.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("journal closed")

// ErrBufferFull is returned when the write queue is saturated and the entry was dropped.
var ErrBufferFull = errors.New("journal buffer full")

// Entry is one recorded chart request.
type Entry struct {
	Time         time.Time `json:"time"`
	ChipID       string    `json:"chip_id,omitempty"`
	Query        string    `json:"query"`
	Field        string    `json:"field,omitempty"`
	Points       int       `json:"points"`
	ResponseTime float64   `json:"response_time_ms"`
	DurationMS   int64     `json:"duration_ms"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// Writer queues entries and writes them from a single goroutine.
type Writer struct {
	baseDir   string
	name      string
	maxSizeMB int
	writeCh   chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
	now         func() time.Time
}

// NewWriter starts an async writer. Files land in baseDir/<YYYY-MM-DD>/<name>.jsonl.
func NewWriter(baseDir, name string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if name == "" {
		name = fmt.Sprintf("%d", time.Now().Unix())
	}
	w := &Writer{
		baseDir:   baseDir,
		name:      name,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Write queues record without blocking.
func (w *Writer) Write(record any) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.writeCh <- record:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "name", w.name)
		return ErrBufferFull
	}
}

// Close flushes pending records and closes the current file.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		err := w.logger.Close()
		w.logger = nil
		return err
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-timeout:
			slog.Warn("journal close timeout, some records may be lost", "name", w.name)
			return
		default:
			return
		}
	}
}

func (w *Writer) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("journal marshal failed", "error", err, "name", w.name)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().Format("2006-01-02")
	if date != w.currentDate || w.logger == nil {
		if err := w.rotateForDate(date); err != nil {
			slog.Error("journal rotate failed", "error", err, "name", w.name)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err, "name", w.name)
	}
}

func (w *Writer) rotateForDate(date string) error {
	if w.logger != nil {
		if err := w.logger.Close(); err != nil {
			slog.Debug("journal close previous file failed", "error", err)
		}
		w.logger = nil
	}

	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	filename := filepath.Join(dir, w.name+".jsonl")
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Info("journal file opened", "file", filename)
	return nil
}
