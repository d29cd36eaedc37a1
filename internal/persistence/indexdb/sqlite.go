package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

var ErrClosed = errors.New("index closed")

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	writeFailTotal atomic.Uint64

	// unreported is set by loop once the queue is closed.
	unreported error
}

type reqKind int

const (
	reqReplay reqKind = iota + 1
	reqFlush
)

type req struct {
	kind reqKind

	replay ReplayRecord
	report bool
	done   chan error
}

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	WriteFailTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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
		db: db,
		ch: make(chan req, 1024),
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
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS replays (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			map_name TEXT,
			match_type TEXT,
			date TEXT,
			engine_version INTEGER,
			licensee_version INTEGER,
			team_size INTEGER,
			team0_score INTEGER,
			team1_score INTEGER,
			frames INTEGER NOT NULL,
			rows INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			replay_id TEXT NOT NULL REFERENCES replays(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			platform TEXT,
			team INTEGER,
			score INTEGER,
			goals INTEGER,
			assists INTEGER,
			saves INTEGER,
			shots INTEGER,
			bot INTEGER,
			PRIMARY KEY (replay_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_players_name ON players(name);`,
		`CREATE TABLE IF NOT EXISTS goals (
			replay_id TEXT NOT NULL REFERENCES replays(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			player_name TEXT,
			team INTEGER,
			frame INTEGER,
			PRIMARY KEY (replay_id, idx)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and returns any write failure not yet reported by
// Flush.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = errors.Join(s.unreported, s.db.Close())
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		WriteFailTotal: s.writeFailTotal.Load(),
	}
}

// RecordReplay queues r for the writer goroutine. A replay recorded again
// replaces its earlier players and goals. It must not race with Close.
func (s *SQLiteIndex) RecordReplay(ctx context.Context, r ReplayRecord) error {
	if s == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if r.ID == "" {
		return fmt.Errorf("record replay: empty id")
	}
	if r.RecordedAt == "" {
		r.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case s.ch <- req{kind: reqReplay, replay: r}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every queued replay is committed. It returns the write
// failures seen since the previous Flush, one error per replay.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	return s.sync(ctx, true)
}

func (s *SQLiteIndex) sync(ctx context.Context, report bool) error {
	if s == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	done := make(chan error, 1)
	select {
	case s.ch <- req{kind: reqFlush, report: report, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListReplays returns every indexed replay, most recently recorded first.
func (s *SQLiteIndex) ListReplays(ctx context.Context) ([]ReplaySummary, error) {
	if err := s.sync(ctx, false); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.source, r.map_name, r.team0_score, r.team1_score,
		r.frames, r.rows, r.recorded_at, (SELECT COUNT(*) FROM players p WHERE p.replay_id = r.id)
		FROM replays r ORDER BY r.recorded_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReplaySummary
	for rows.Next() {
		var (
			sum      ReplaySummary
			mapName  sql.NullString
			t0, t1   sql.NullInt64
			nPlayers int
		)
		if err := rows.Scan(&sum.ID, &sum.Source, &mapName, &t0, &t1, &sum.Frames, &sum.Rows, &sum.RecordedAt, &nPlayers); err != nil {
			return nil, err
		}
		sum.MapName = mapName.String
		sum.Team0Score = nullInt(t0)
		sum.Team1Score = nullInt(t1)
		sum.Players = nPlayers
		out = append(out, sum)
	}
	return out, rows.Err()
}

func intArg(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func boolArg(p *bool) any {
	if p == nil {
		return nil
	}
	if *p {
		return int64(1)
	}
	return int64(0)
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertReplay, _ := s.db.Prepare(`INSERT OR REPLACE INTO replays(id,source,map_name,match_type,date,engine_version,licensee_version,team_size,team0_score,team1_score,frames,rows,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	deletePlayers, _ := s.db.Prepare(`DELETE FROM players WHERE replay_id=?`)
	deleteGoals, _ := s.db.Prepare(`DELETE FROM goals WHERE replay_id=?`)
	insertPlayer, _ := s.db.Prepare(`INSERT INTO players(replay_id,idx,name,platform,team,score,goals,assists,saves,shots,bot) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertGoal, _ := s.db.Prepare(`INSERT INTO goals(replay_id,idx,player_name,team,frame) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertReplay, deletePlayers, deleteGoals, insertPlayer, insertGoal} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx          *sql.Tx
		inTx        []string
		failed      []error
		opCount     int
		commitEvery = 2000
	)
	fail := func(id string, err error) {
		s.writeFailTotal.Add(1)
		failed = append(failed, fmt.Errorf("index replay %s: %w", id, err))
	}

	begin := func() error {
		if tx != nil {
			return nil
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		tx = txx
		inTx = inTx[:0]
		opCount = 0
		return nil
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			for _, id := range inTx {
				fail(id, fmt.Errorf("commit: %w", err))
			}
		}
		tx = nil
		inTx = inTx[:0]
		opCount = 0
	}

	// write runs every statement of one replay inside the open transaction.
	write := func(r ReplayRecord) error {
		if _, err := tx.Stmt(deletePlayers).Exec(r.ID); err != nil {
			return err
		}
		if _, err := tx.Stmt(deleteGoals).Exec(r.ID); err != nil {
			return err
		}
		if _, err := tx.Stmt(insertReplay).Exec(
			r.ID,
			r.Source,
			r.MapName,
			r.MatchType,
			r.Date,
			intArg(r.EngineVersion),
			intArg(r.LicenseeVersion),
			intArg(r.TeamSize),
			intArg(r.Team0Score),
			intArg(r.Team1Score),
			r.Frames,
			r.Rows,
			r.RecordedAt,
		); err != nil {
			return err
		}
		opCount += 3
		for i, p := range r.Players {
			if _, err := tx.Stmt(insertPlayer).Exec(r.ID, i, p.Name, p.Platform, intArg(p.Team), intArg(p.Score), intArg(p.Goals), intArg(p.Assists), intArg(p.Saves), intArg(p.Shots), boolArg(p.Bot)); err != nil {
				return err
			}
			opCount++
		}
		for i, g := range r.Goals {
			if _, err := tx.Stmt(insertGoal).Exec(r.ID, i, g.PlayerName, intArg(g.Team), intArg(g.Frame)); err != nil {
				return err
			}
			opCount++
		}
		return nil
	}

	// exec wraps one replay in a savepoint so a failure undoes that replay
	// only and leaves the rest of the batch alone.
	exec := func(r ReplayRecord) {
		if insertReplay == nil || deletePlayers == nil || deleteGoals == nil || insertPlayer == nil || insertGoal == nil {
			fail(r.ID, errors.New("statements not prepared"))
			return
		}
		if _, err := tx.Exec(`SAVEPOINT replay`); err != nil {
			fail(r.ID, err)
			return
		}
		if err := write(r); err != nil {
			fail(r.ID, err)
			if _, rerr := tx.Exec(`ROLLBACK TO replay`); rerr != nil {
				_ = tx.Rollback()
				for _, id := range inTx {
					fail(id, fmt.Errorf("rolled back with %s: %w", r.ID, rerr))
				}
				tx = nil
				inTx = inTx[:0]
				opCount = 0
				return
			}
			_, _ = tx.Exec(`RELEASE replay`)
			return
		}
		if _, err := tx.Exec(`RELEASE replay`); err != nil {
			fail(r.ID, err)
			return
		}
		inTx = append(inTx, r.ID)
	}

	for r := range s.ch {
		switch r.kind {
		case reqReplay:
			if err := begin(); err != nil {
				fail(r.replay.ID, fmt.Errorf("begin: %w", err))
				continue
			}
			exec(r.replay)
		case reqFlush:
			commit()
			var err error
			if r.report {
				err = errors.Join(failed...)
				failed = nil
			}
			r.done <- err
			continue
		}
		// Commit when the queue drains so readers never wait on an open tx.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
	s.unreported = errors.Join(failed...)
}
