package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type dbQuery struct {
	Instance string
	Limit    int
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/debris.sqlite)")
	instance := fs.String("instance", "", "instance name or id filter (ticks, counters, errors)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "instances"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "debris.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	err = runQuery(db, q, dbQuery{Instance: strings.TrimSpace(*instance), Limit: *limit}, printJSON)
	if err == errUnknownQuery {
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-instance NAME] [-limit N] instances|tunings|ticks|counters|errors")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

var errUnknownQuery = errors.New("unknown query")

type instanceRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	CreatedAt   string `json:"created_at"`
	DestroyedAt string `json:"destroyed_at,omitempty"`
}

type tuningRow struct {
	Digest        string `json:"digest"`
	CatalogDigest string `json:"catalog_digest"`
	UpdatedAt     string `json:"updated_at"`
	JSON          string `json:"json"`
}

type tickRow struct {
	Instance           string  `json:"instance"`
	Name               string  `json:"name"`
	Tick               int64   `json:"tick"`
	SolverTime         float64 `json:"solver_time"`
	LastSpawnedPointID int64   `json:"last_spawned_point_id"`
	Seeds              int     `json:"seeds"`
	Error              string  `json:"error,omitempty"`
}

type counterRow struct {
	Name    string `json:"name"`
	Counter string `json:"counter"`
	Total   int64  `json:"total"`
	Ticks   int64  `json:"ticks"`
}

// runQuery runs a named index query and calls emit once per row.
func runQuery(db *sql.DB, q string, opts dbQuery, emit func(any)) error {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	switch q {
	case "instances":
		rows, err := db.Query(`SELECT id,name,kind,created_at,destroyed_at FROM instances ORDER BY created_at,name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r instanceRow
			var destroyed sql.NullString
			if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &r.CreatedAt, &destroyed); err != nil {
				return err
			}
			r.DestroyedAt = destroyed.String
			emit(r)
		}
		return rows.Err()

	case "tunings":
		rows, err := db.Query(`SELECT digest,catalog_digest,updated_at,json FROM tunings ORDER BY updated_at DESC LIMIT ?`, opts.Limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r tuningRow
			if err := rows.Scan(&r.Digest, &r.CatalogDigest, &r.UpdatedAt, &r.JSON); err != nil {
				return err
			}
			emit(r)
		}
		return rows.Err()

	case "ticks", "errors":
		where := "WHERE 1=1"
		args := []any{}
		if opts.Instance != "" {
			where += " AND (name=? OR instance=?)"
			args = append(args, opts.Instance, opts.Instance)
		}
		if q == "errors" {
			where += " AND error IS NOT NULL"
		}
		args = append(args, opts.Limit)
		rows, err := db.Query(`SELECT instance,name,tick,solver_time,last_spawned_point_id,seeds,error FROM ticks `+where+` ORDER BY tick DESC, name LIMIT ?`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r tickRow
			var errText sql.NullString
			if err := rows.Scan(&r.Instance, &r.Name, &r.Tick, &r.SolverTime, &r.LastSpawnedPointID, &r.Seeds, &errText); err != nil {
				return err
			}
			r.Error = errText.String
			emit(r)
		}
		return rows.Err()

	case "counters":
		where := ""
		args := []any{}
		if opts.Instance != "" {
			where = "WHERE t.name=? OR c.instance=?"
			args = append(args, opts.Instance, opts.Instance)
		}
		rows, err := db.Query(`SELECT t.name,c.name,SUM(c.value),COUNT(*) FROM counters c JOIN ticks t ON t.instance=c.instance AND t.tick=c.tick `+where+` GROUP BY t.name,c.name ORDER BY t.name,c.name`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r counterRow
			if err := rows.Scan(&r.Name, &r.Counter, &r.Total, &r.Ticks); err != nil {
				return err
			}
			emit(r)
		}
		return rows.Err()
	}
	return errUnknownQuery
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
