package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mxshs/oddsportal/src/domain"

	pq "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

type DB struct {
	db     *sql.DB
	driver string
}

// Open connects to a postgres or sqlite database. For sqlite dsn is the file
// path, ":memory:" included.
func Open(driver, dsn string) (*DB, error) {
	if driver != Postgres && driver != SQLite {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == SQLite {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	return &DB{db: conn, driver: driver}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// rebind turns ? placeholders into $n for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type column struct {
	name    string
	outcome string
}

type oddsTable struct {
	name     string
	line     bool
	score    bool
	outcomes []column
}

var oddsTables = map[domain.Market]oddsTable{
	domain.MarketMatchResult: {
		name:     "odds_1x2",
		outcomes: []column{{"home", "home"}, {"draw", "draw"}, {"away", "away"}},
	},
	domain.MarketCorrectScore: {
		name:     "odds_cs",
		score:    true,
		outcomes: []column{{"odds", "odds"}},
	},
	domain.MarketHandicap: {
		name:     "odds_ahc",
		line:     true,
		outcomes: []column{{"home", "home"}, {"away", "away"}},
	},
	domain.MarketTotalGoals: {
		name:     "odds_tg",
		line:     true,
		outcomes: []column{{"over_odds", "over"}, {"under_odds", "under"}},
	},
}

func (t oddsTable) columns() []string {
	cols := []string{"match_id", "timing", "quoted_at"}
	if t.line {
		cols = append(cols, "line")
	}
	if t.score {
		cols = append(cols, "home_score", "away_score")
	}
	for _, c := range t.outcomes {
		cols = append(cols, c.name)
	}
	return cols
}

func (t oddsTable) ddl() string {
	defs := []string{
		"match_id TEXT NOT NULL",
		"timing TEXT NOT NULL",
		"quoted_at BIGINT",
	}
	if t.line {
		defs = append(defs, "line DOUBLE PRECISION")
	}
	if t.score {
		defs = append(defs, "home_score INTEGER NOT NULL", "away_score INTEGER NOT NULL")
	}
	for _, c := range t.outcomes {
		defs = append(defs, pq.QuoteIdentifier(c.name)+" DOUBLE PRECISION")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n);",
		pq.QuoteIdentifier(t.name), strings.Join(defs, ",\n    "))
}

func (t oddsTable) values(r domain.OddsRecord) []any {
	vals := []any{r.MatchID, string(r.Timing), unixOrNull(r.Time)}
	if t.line {
		var line sql.NullFloat64
		if r.Line != nil {
			line = sql.NullFloat64{Float64: *r.Line, Valid: true}
		}
		vals = append(vals, line)
	}
	if t.score {
		var score domain.Score
		if r.Score != nil {
			score = *r.Score
		}
		vals = append(vals, score.Home, score.Away)
	}
	for _, c := range t.outcomes {
		v, ok := r.Value(c.outcome)
		vals = append(vals, sql.NullFloat64{Float64: v, Valid: ok})
	}
	return vals
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS leagues (
    country TEXT NOT NULL,
    competition TEXT NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (country, competition)
);`,
	`CREATE TABLE IF NOT EXISTS seasons (
    season_id TEXT PRIMARY KEY,
    country TEXT NOT NULL,
    competition TEXT NOT NULL,
    label TEXT NOT NULL,
    extension TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS match_links (
    match_id TEXT PRIMARY KEY,
    season_id TEXT NOT NULL,
    url TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS matches (
    match_id TEXT PRIMARY KEY,
    season_id TEXT NOT NULL,
    kickoff BIGINT NOT NULL,
    home TEXT NOT NULL,
    away TEXT NOT NULL
);`,
}

func (db *DB) InitSchema(ctx context.Context) error {
	stmts := append([]string{}, schema...)
	for _, market := range domain.Markets {
		stmts = append(stmts, oddsTables[market].ddl())
	}

	for _, stmt := range stmts {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// insertAll runs query once per row inside one transaction.
func (db *DB) insertAll(ctx context.Context, query string, n int, row func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) InsertLeagues(ctx context.Context, leagues []domain.League) error {
	err := db.insertAll(ctx,
		`INSERT INTO leagues (country, competition, name) VALUES (?, ?, ?)
        ON CONFLICT (country, competition) DO UPDATE SET name = excluded.name;`,
		len(leagues),
		func(i int) []any {
			l := leagues[i]
			return []any{l.Country, l.Competition, l.Name}
		},
	)
	if err != nil {
		return fmt.Errorf("insert leagues: %w", err)
	}
	return nil
}

func (db *DB) InsertSeasons(ctx context.Context, seasons []domain.Season) error {
	err := db.insertAll(ctx,
		`INSERT INTO seasons (season_id, country, competition, label, extension)
        VALUES (?, ?, ?, ?, ?) ON CONFLICT (season_id) DO NOTHING;`,
		len(seasons),
		func(i int) []any {
			s := seasons[i]
			return []any{s.ID(), s.Country, s.Competition, s.Label, s.Extension}
		},
	)
	if err != nil {
		return fmt.Errorf("insert seasons: %w", err)
	}
	return nil
}

func (db *DB) InsertLinks(ctx context.Context, links []domain.MatchLink) error {
	err := db.insertAll(ctx,
		`INSERT INTO match_links (match_id, season_id, url) VALUES (?, ?, ?)
        ON CONFLICT (match_id) DO NOTHING;`,
		len(links),
		func(i int) []any {
			l := links[i]
			return []any{l.MatchID, l.SeasonID, l.URL}
		},
	)
	if err != nil {
		return fmt.Errorf("insert links: %w", err)
	}
	return nil
}

// Links returns the stored links of seasonID, or every link when seasonID is
// empty.
func (db *DB) Links(ctx context.Context, seasonID string) ([]domain.MatchLink, error) {
	query := `SELECT match_id, season_id, url FROM match_links`
	var args []any
	if seasonID != "" {
		query += ` WHERE season_id = ?`
		args = append(args, seasonID)
	}
	query += ` ORDER BY season_id, match_id;`

	rows, err := db.db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.MatchLink
	for rows.Next() {
		var l domain.MatchLink
		if err := rows.Scan(&l.MatchID, &l.SeasonID, &l.URL); err != nil {
			return nil, err
		}
		links = append(links, l)
	}

	return links, rows.Err()
}

// InsertMatches stores match info. A match already stored is left as is.
func (db *DB) InsertMatches(ctx context.Context, matches []domain.MatchInfo) error {
	err := db.insertAll(ctx,
		`INSERT INTO matches (match_id, season_id, kickoff, home, away)
        VALUES (?, ?, ?, ?, ?) ON CONFLICT (match_id) DO NOTHING;`,
		len(matches),
		func(i int) []any {
			m := matches[i]
			return []any{m.MatchID, m.SeasonID, m.Kickoff.Unix(), m.Home, m.Away}
		},
	)
	if err != nil {
		return fmt.Errorf("insert matches: %w", err)
	}
	return nil
}

func (db *DB) Matches(ctx context.Context) ([]domain.MatchInfo, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT match_id, season_id, kickoff, home, away FROM matches ORDER BY kickoff, match_id;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.MatchInfo
	for rows.Next() {
		var (
			m       domain.MatchInfo
			kickoff int64
		)
		if err := rows.Scan(&m.MatchID, &m.SeasonID, &kickoff, &m.Home, &m.Away); err != nil {
			return nil, err
		}
		m.Kickoff = time.Unix(kickoff, 0).UTC()
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// InsertOdds appends records to the table of market in one transaction.
func (db *DB) InsertOdds(ctx context.Context, market domain.Market, records []domain.OddsRecord) error {
	t, ok := oddsTables[market]
	if !ok {
		return fmt.Errorf("insert odds: unknown market %q", market)
	}

	cols := t.columns()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		pq.QuoteIdentifier(t.name),
		quoteAll(cols),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)

	err := db.insertAll(ctx, query, len(records), func(i int) []any {
		return t.values(records[i])
	})
	if err != nil {
		return fmt.Errorf("insert %s odds: %w", market, err)
	}
	return nil
}

func (db *DB) CountOdds(ctx context.Context, market domain.Market) (int, error) {
	t, ok := oddsTables[market]
	if !ok {
		return 0, fmt.Errorf("count odds: unknown market %q", market)
	}

	var n int
	err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+pq.QuoteIdentifier(t.name)+";").Scan(&n)
	return n, err
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func unixOrNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
