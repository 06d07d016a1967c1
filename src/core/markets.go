package core

import (
	"fmt"
	"strconv"
	"strings"

	"mxshs/oddsportal/src/domain"

	"go.uber.org/zap"
)

// MatchResultLine is the feed key of the full-time match result line.
const MatchResultLine = "E-1-2-0-0-0"

var (
	MatchResultOutcomes = []string{"home", "draw", "away"}
	HandicapOutcomes    = []string{"home", "away"}
	TotalGoalsOutcomes  = []string{"over", "under"}
)

type Extractor struct {
	log *zap.Logger
}

func NewExtractor(log *zap.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract dispatches lines to the extractor of market.
func (x *Extractor) Extract(market domain.Market, lines Lines, bookmaker, matchID string) ([]domain.OddsRecord, error) {
	switch market {
	case domain.MarketMatchResult:
		return x.MatchResult(lines, bookmaker, matchID)
	case domain.MarketCorrectScore:
		return x.CorrectScore(lines, bookmaker, matchID), nil
	case domain.MarketHandicap:
		return x.TwoWay(market, lines, bookmaker, matchID, HandicapOutcomes), nil
	case domain.MarketTotalGoals:
		return x.TwoWay(market, lines, bookmaker, matchID, TotalGoalsOutcomes), nil
	}
	return nil, fmt.Errorf("unknown market %q", market)
}

// MatchResult returns the opening and closing 1X2 quotes of bookmaker. A
// bookmaker that is missing or sent an unusable entry yields no records and
// only a warning.
func (x *Extractor) MatchResult(lines Lines, bookmaker, matchID string) ([]domain.OddsRecord, error) {
	line, ok := lines[MatchResultLine]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLineNotFound, MatchResultLine)
	}

	opening, closing, err := NormalizePair(line, bookmaker, MatchResultOutcomes)
	if err != nil {
		x.log.Warn("no 1X2 odds found",
			zap.String("match_id", matchID),
			zap.String("bookmaker", bookmaker),
			zap.Error(err),
		)
		return nil, nil
	}

	return []domain.OddsRecord{
		quoteRecord(matchID, domain.MarketMatchResult, nil, opening),
		quoteRecord(matchID, domain.MarketMatchResult, nil, closing),
	}, nil
}

// CorrectScore returns one record per quoted scoreline. Most scorelines carry
// no price from a given bookmaker, those are skipped.
func (x *Extractor) CorrectScore(lines Lines, bookmaker, matchID string) []domain.OddsRecord {
	var records []domain.OddsRecord

	for _, key := range lines.Keys() {
		line := lines[key]

		label := line.MixedParameterName
		if label == "" {
			label = key
		}
		score, err := parseScore(label)
		if err != nil {
			x.log.Debug("skipping correct score line", zap.String("line", key), zap.Error(err))
			continue
		}

		entry, ok := line.Odds[bookmaker]
		if !ok {
			continue
		}
		value, ok := firstValue(entry)
		if !ok {
			continue
		}

		records = append(records, domain.OddsRecord{
			MatchID:  matchID,
			Market:   domain.MarketCorrectScore,
			Timing:   domain.Closing,
			Outcomes: []domain.Outcome{{Name: "odds", Value: value}},
			Score:    &score,
		})
	}

	return records
}

// TwoWay extracts handicap and total-goals lines. Each timing is read on its
// own, so a book that opened late only contributes its closing record.
func (x *Extractor) TwoWay(market domain.Market, lines Lines, bookmaker, matchID string, names []string) []domain.OddsRecord {
	var records []domain.OddsRecord

	for _, key := range lines.Keys() {
		line := lines[key]

		sides := []struct {
			odds   BookOdds
			times  BookTimes
			timing domain.Timing
		}{
			{line.Odds, line.ChangeTime, domain.Closing},
			{line.OpeningOdd, line.OpeningChangeTime, domain.Opening},
		}

		for _, side := range sides {
			entry, ok := side.odds[bookmaker]
			if !ok {
				continue
			}

			q, err := Normalize(entry, side.times[bookmaker], names, side.timing)
			if err != nil {
				x.log.Debug("skipping line",
					zap.String("match_id", matchID),
					zap.String("market", string(market)),
					zap.String("line", key),
					zap.String("timing", string(side.timing)),
					zap.Error(err),
				)
				continue
			}

			records = append(records, quoteRecord(matchID, market, line.HandicapValue, q))
		}
	}

	return records
}

func quoteRecord(matchID string, market domain.Market, line *float64, q Quote) domain.OddsRecord {
	var value *float64
	if line != nil {
		v := *line
		value = &v
	}

	return domain.OddsRecord{
		MatchID:  matchID,
		Market:   market,
		Timing:   q.Timing,
		Time:     q.Time,
		Line:     value,
		Outcomes: q.Outcomes,
	}
}

func firstValue(entry OddsEntry) (float64, bool) {
	switch entry.Shape {
	case ShapeSequential:
		if len(entry.Values) > 0 {
			return entry.Values[0], true
		}
	case ShapeKeyed:
		v, ok := entry.Keyed["0"]
		return v, ok
	}
	return 0, false
}

func parseScore(label string) (domain.Score, error) {
	home, away, ok := strings.Cut(label, ":")
	if !ok {
		return domain.Score{}, fmt.Errorf("scoreline %q has no separator", label)
	}

	h, err := strconv.Atoi(strings.TrimSpace(home))
	if err != nil {
		return domain.Score{}, fmt.Errorf("scoreline %q: %w", label, err)
	}
	a, err := strconv.Atoi(strings.TrimSpace(away))
	if err != nil {
		return domain.Score{}, fmt.Errorf("scoreline %q: %w", label, err)
	}

	return domain.Score{Home: h, Away: a}, nil
}
