package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"mxshs/oddsportal/src/core"
	"mxshs/oddsportal/src/domain"
	"mxshs/oddsportal/src/parser"

	"github.com/jedib0t/go-pretty/v6/table"
)

var outcomeNames = map[domain.Market][]string{
	domain.MarketMatchResult:  core.MatchResultOutcomes,
	domain.MarketCorrectScore: {"odds"},
	domain.MarketHandicap:     core.HandicapOutcomes,
	domain.MarketTotalGoals:   core.TotalGoalsOutcomes,
}

func NewTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func LeaguesTable(leagues []domain.League) table.Writer {
	t := NewTable()
	t.AppendHeader(table.Row{"country", "competition", "name"})
	for _, l := range leagues {
		t.AppendRow(table.Row{l.Country, l.Competition, l.Name})
	}
	return t
}

func SeasonsTable(seasons []domain.Season) table.Writer {
	t := NewTable()
	t.AppendHeader(table.Row{"season_id", "label", "extension"})
	for _, s := range seasons {
		t.AppendRow(table.Row{s.ID(), s.Label, s.Extension})
	}
	return t
}

func LinksTable(links []domain.MatchLink) table.Writer {
	t := NewTable()
	t.AppendHeader(table.Row{"season_id", "match_id", "url"})
	for _, l := range links {
		t.AppendRow(table.Row{l.SeasonID, l.MatchID, l.URL})
	}
	return t
}

func MatchesTable(matches []domain.MatchInfo) table.Writer {
	t := NewTable()
	t.AppendHeader(table.Row{"match_id", "season_id", "kickoff", "home", "away"})
	for _, m := range matches {
		t.AppendRow(table.Row{m.MatchID, m.SeasonID, formatTime(m.Kickoff), m.Home, m.Away})
	}
	return t
}

func BookmakersTable(bookmakers []domain.Bookmaker) table.Writer {
	t := NewTable()
	t.AppendHeader(table.Row{"id", "name"})
	for _, b := range bookmakers {
		t.AppendRow(table.Row{b.ID, b.Name})
	}
	return t
}

// OddsTable lays out records of market with one column per outcome. Handicap
// and total-goals tables carry the line, correct score the scoreline.
func OddsTable(market domain.Market, records []domain.OddsRecord) table.Writer {
	names := outcomeNames[market]
	withLine := market == domain.MarketHandicap || market == domain.MarketTotalGoals
	withScore := market == domain.MarketCorrectScore

	header := table.Row{"match_id", "timing", "time"}
	if withLine {
		header = append(header, "line")
	}
	if withScore {
		header = append(header, "home_score", "away_score")
	}
	for _, name := range names {
		header = append(header, name)
	}

	t := NewTable()
	t.AppendHeader(header)

	for _, r := range records {
		row := table.Row{r.MatchID, string(r.Timing), formatTime(r.Time)}
		if withLine {
			row = append(row, formatLine(r.Line))
		}
		if withScore {
			if r.Score != nil {
				row = append(row, r.Score.Home, r.Score.Away)
			} else {
				row = append(row, "", "")
			}
		}
		for _, name := range names {
			if v, ok := r.Value(name); ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}

	return t
}

// SummaryTable counts what a collection run produced.
func SummaryTable(res *parser.Result) table.Writer {
	t := NewTable()
	t.AppendHeader(table.Row{"item", "count"})
	t.AppendRow(table.Row{"passes", res.Passes})
	t.AppendRow(table.Row{"matches", len(res.Matches)})
	for _, market := range domain.Markets {
		t.AppendRow(table.Row{"odds " + string(market), len(res.Odds[market])})
	}
	t.AppendRow(table.Row{"failed", len(res.Failed)})

	if len(res.Failed) > 0 {
		failed := append([]string{}, res.Failed...)
		sort.Strings(failed)
		t.AppendFooter(table.Row{"failed ids", fmt.Sprint(failed)})
	}

	return t
}

// WriteCSV renders t as CSV into <dir>/<name>.csv and returns the path.
func WriteCSV(dir, name string, t table.Writer) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name+".csv")
	if err := os.WriteFile(path, []byte(t.RenderCSV()+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatLine(line *float64) string {
	if line == nil {
		return ""
	}
	return strconv.FormatFloat(*line, 'f', -1, 64)
}
