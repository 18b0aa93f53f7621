package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"debrisfx/internal/sim/instance"
	"debrisfx/internal/sim/tuning"
)

// SQLiteIndex is a secondary, queryable index of ticks, counters and
// instances. Writes are queued and applied by a single writer goroutine; the
// JSONL tick log stays the source of truth when the queue overflows.
type SQLiteIndex struct {
	db     *sql.DB
	logger *log.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropInstance atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqInstance
	reqTeardown
)

type req struct {
	kind reqKind

	tick     instance.TickLogEntry
	instance instanceRow
}

type instanceRow struct {
	ID   string
	Name string
	Kind string
	At   string
}

type QueueStats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropInstanceTotal uint64 `json:"drop_instance_total"`
}

func OpenSQLite(path string, logger *log.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:     db,
		logger: logger,
		ch:     make(chan req, 262144),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tunings (
			digest TEXT PRIMARY KEY,
			catalog_digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at TEXT NOT NULL,
			destroyed_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			instance TEXT NOT NULL,
			tick INTEGER NOT NULL,
			name TEXT NOT NULL,
			solver_time REAL NOT NULL,
			last_spawned_point_id INTEGER NOT NULL,
			seeds INTEGER NOT NULL,
			error TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (instance, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_name_tick ON ticks(name, tick);`,
		`CREATE TABLE IF NOT EXISTS counters (
			instance TEXT NOT NULL,
			tick INTEGER NOT NULL,
			name TEXT NOT NULL,
			value INTEGER NOT NULL,
			PRIMARY KEY (instance, tick, name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_counters_name ON counters(name, instance);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropInstanceTotal: s.dropInstance.Load(),
	}
}

// WriteTick implements instance.TickLogger. It never blocks the producer.
func (s *SQLiteIndex) WriteTick(entry instance.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordInstance(id uuid.UUID, name, kind string) {
	s.enqueueInstance(reqInstance, instanceRow{ID: id.String(), Name: name, Kind: kind})
}

func (s *SQLiteIndex) RecordTeardown(id uuid.UUID) {
	s.enqueueInstance(reqTeardown, instanceRow{ID: id.String()})
}

func (s *SQLiteIndex) enqueueInstance(kind reqKind, r instanceRow) {
	if s == nil || s.closed.Load() {
		return
	}
	r.At = time.Now().UTC().Format(time.RFC3339Nano)
	select {
	case s.ch <- req{kind: kind, instance: r}:
	default:
		s.dropInstance.Add(1)
	}
}

// UpsertTuning stores the tuning actually applied, keyed by its digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning, catalogDigest string) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('tuning_digest',?)`, tune.Digest()); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tunings(digest,catalog_digest,json,updated_at) VALUES(?,?,?,?)`,
		tune.Digest(), catalogDigest, string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(instance,tick,name,solver_time,last_spawned_point_id,seeds,error,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertCounter, _ := s.db.Prepare(`INSERT OR REPLACE INTO counters(instance,tick,name,value) VALUES(?,?,?,?)`)
	insertInstance, _ := s.db.Prepare(`INSERT OR REPLACE INTO instances(id,name,kind,created_at) VALUES(?,?,?,?)`)
	markDestroyed, _ := s.db.Prepare(`UPDATE instances SET destroyed_at=? WHERE id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCounter, insertInstance, markDestroyed} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Printf("indexdb: begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.logger.Printf("indexdb: commit: %v", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.logger.Printf("indexdb: write: %v", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			if insertTick == nil || insertCounter == nil {
				break
			}
			raw, _ := json.Marshal(t)
			var errText any
			if t.Error != "" {
				errText = t.Error
			}
			if _, err := tx.Stmt(insertTick).Exec(
				t.Instance,
				int64(t.Tick),
				t.Name,
				t.SolverTime,
				t.LastSpawnedPointID,
				t.Seeds,
				errText,
				string(raw),
			); err != nil {
				rollback(err)
				continue
			}
			opCount++
			names := make([]string, 0, len(t.Counters))
			for n := range t.Counters {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				if _, err := tx.Stmt(insertCounter).Exec(t.Instance, int64(t.Tick), n, t.Counters[n]); err != nil {
					rollback(err)
					break
				}
				opCount++
			}

		case reqInstance:
			in := r.instance
			if insertInstance == nil {
				break
			}
			if _, err := tx.Stmt(insertInstance).Exec(in.ID, in.Name, in.Kind, in.At); err != nil {
				rollback(err)
				continue
			}
			opCount++

		case reqTeardown:
			in := r.instance
			if markDestroyed == nil {
				break
			}
			if _, err := tx.Stmt(markDestroyed).Exec(in.At, in.ID); err != nil {
				rollback(err)
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
