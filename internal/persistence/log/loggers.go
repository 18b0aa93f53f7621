package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"debrisfx/internal/sim/instance"
	"debrisfx/internal/sim/publish"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadJSONL calls fn with every line of a closed .jsonl.zst file.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// TickLogger writes one JSONL entry per armed or aborted tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dataDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(e instance.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Close() error                            { return l.w.Close() }

// SeedEntry is one published seed as written by the SeedLogger.
type SeedEntry struct {
	Instance   string     `json:"instance"`
	Tick       uint64     `json:"tick"`
	PointID    int64      `json:"point_id"`
	SolverID   int32      `json:"solver_id"`
	SolverTime float64    `json:"solver_time"`
	Position   [3]float32 `json:"position"`
	Velocity   [3]float32 `json:"velocity"`
	Color      [4]float32 `json:"color"`
}

// TeardownEntry marks the end of an instance's seed stream.
type TeardownEntry struct {
	Instance string `json:"instance"`
	Teardown bool   `json:"teardown"`
}

// SeedLogger is a publish.Sink that writes every consumed seed (compressed).
// Write failures are counted; the first one is logged.
type SeedLogger struct {
	w      *JSONLZstdWriter
	logger *stdlog.Logger

	failures atomic.Uint64
}

func NewSeedLogger(dataDir string, logger *stdlog.Logger) *SeedLogger {
	if logger == nil {
		logger = stdlog.New(io.Discard, "", 0)
	}
	return &SeedLogger{
		w:      NewJSONLZstdWriter(filepath.Join(dataDir, "seeds"), "seeds"),
		logger: logger,
	}
}

func (l *SeedLogger) OnSnapshot(s *publish.Snapshot) {
	id := s.Instance.String()
	first, _, n := s.IDRange()
	for i := 0; i < n; i++ {
		r, _ := s.Record(first + int64(i))
		err := l.w.Write(SeedEntry{
			Instance:   id,
			Tick:       s.Tick,
			PointID:    first + int64(i),
			SolverID:   r.SolverID,
			SolverTime: s.SolverTime,
			Position:   r.Position,
			Velocity:   r.Velocity,
			Color:      r.Color,
		})
		if err != nil {
			l.fail(err)
			return
		}
	}
}

func (l *SeedLogger) OnTeardown(id uuid.UUID) {
	if err := l.w.Write(TeardownEntry{Instance: id.String(), Teardown: true}); err != nil {
		l.fail(err)
	}
}

// Failures is the number of snapshots or teardowns that could not be written.
func (l *SeedLogger) Failures() uint64 { return l.failures.Load() }

func (l *SeedLogger) fail(err error) {
	if l.failures.Add(1) == 1 {
		l.logger.Printf("seed log: write failed: %v", err)
	}
}

func (l *SeedLogger) Close() error { return l.w.Close() }
