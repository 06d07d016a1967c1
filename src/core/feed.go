package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"mxshs/oddsportal/src/domain"
)

const (
	feedMarker      = ".dat',"
	bookmakerMarker = "bookmakersData="
)

var marketCodes = map[domain.Market]string{
	domain.MarketMatchResult:  "1-2",
	domain.MarketCorrectScore: "8-2",
	domain.MarketHandicap:     "5-2",
	domain.MarketTotalGoals:   "2-2",
}

func MarketCode(market domain.Market) (string, bool) {
	code, ok := marketCodes[market]
	return code, ok
}

// FeedURL builds the odds feed address of one market of one match. The
// trailing timestamp only defeats caching.
func FeedURL(host, matchID string, market domain.Market, token domain.SessionToken, now time.Time) string {
	return fmt.Sprintf(
		"%s1-1-%s-%s-%s%s?_=%d",
		FeedPrefix(host), matchID, marketCodes[market], token, feedExtension, now.UnixMilli(),
	)
}

func BookmakersURL(host, buildID string, now time.Time) string {
	return fmt.Sprintf("https://%s/res/x/bookies-%s-%d.js", host, buildID, now.Unix())
}

// ExtractFeedPayload returns the JSON object the feed script passes after
// its file name argument.
func ExtractFeedPayload(body string) ([]byte, error) {
	return extractObject(body, feedMarker)
}

// ExtractBookmakers reads the bookmaker directory script into id/name pairs
// sorted by id.
func ExtractBookmakers(body string) ([]domain.Bookmaker, error) {
	payload, err := extractObject(body, bookmakerMarker)
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		WebName string `json:"WebName"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode bookmakers: %w", err)
	}

	bookmakers := make([]domain.Bookmaker, 0, len(raw))
	for id, b := range raw {
		bookmakers = append(bookmakers, domain.Bookmaker{ID: id, Name: b.WebName})
	}
	sort.Slice(bookmakers, func(i, j int) bool {
		return bookmakers[i].ID < bookmakers[j].ID
	})

	return bookmakers, nil
}

func extractObject(body, marker string) ([]byte, error) {
	i := strings.Index(body, marker)
	if i < 0 {
		return nil, fmt.Errorf("%w: no %q marker", ErrPayloadNotFound, marker)
	}

	rest := strings.TrimLeft(body[i+len(marker):], " \t\r\n")
	if !strings.HasPrefix(rest, "{") {
		return nil, fmt.Errorf("%w: no object after %q", ErrPayloadNotFound, marker)
	}

	end := closingBrace(rest)
	if end < 0 {
		return nil, fmt.Errorf("%w: unbalanced object after %q", ErrPayloadNotFound, marker)
	}

	return []byte(rest[:end+1]), nil
}

// closingBrace returns the index of the brace closing the object s starts
// with, or -1. Braces inside JSON strings do not count.
func closingBrace(s string) int {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

type FeedClient struct {
	fetch       Fetcher
	feedHost    string
	bookiesHost string
	buildID     string
	now         func() time.Time
}

func NewFeedClient(fetch Fetcher, feedHost, bookiesHost, buildID string) *FeedClient {
	return &FeedClient{
		fetch:       fetch,
		feedHost:    feedHost,
		bookiesHost: bookiesHost,
		buildID:     buildID,
		now:         time.Now,
	}
}

// Odds fetches one market of a match and returns its lines.
func (c *FeedClient) Odds(ctx context.Context, matchID string, token domain.SessionToken, market domain.Market) (Lines, error) {
	if _, ok := MarketCode(market); !ok {
		return nil, fmt.Errorf("unknown market %q", market)
	}
	if token == domain.NoToken {
		return nil, fmt.Errorf("match %s: no session token", matchID)
	}

	body, err := c.fetch.Get(ctx, FeedURL(c.feedHost, matchID, market, token, c.now()))
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", market, err)
	}

	payload, err := ExtractFeedPayload(body)
	if err != nil {
		return nil, fmt.Errorf("%s feed of %s: %w", market, matchID, err)
	}

	return ParseOddsDocument(payload)
}

func (c *FeedClient) Bookmakers(ctx context.Context) ([]domain.Bookmaker, error) {
	body, err := c.fetch.Get(ctx, BookmakersURL(c.bookiesHost, c.buildID, c.now()))
	if err != nil {
		return nil, fmt.Errorf("fetch bookmakers: %w", err)
	}
	return ExtractBookmakers(body)
}
