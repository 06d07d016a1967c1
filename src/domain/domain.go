package domain

import (
	"strings"
	"time"
)

type League struct {
	Country     string
	Competition string
	Name        string
}

type Season struct {
	Country     string
	Competition string
	Label       string
	Extension   string
}

// ID is the country/competition-season part of the extension, e.g.
// "/soccer/england/premier-league-2019-2020/results/" -> "england/premier-league-2019-2020".
func (s Season) ID() string {
	parts := strings.Split(strings.Trim(s.Extension, "/"), "/")
	if len(parts) >= 3 && parts[0] == "soccer" {
		return parts[1] + "/" + parts[2]
	}
	return strings.Trim(s.Extension, "/")
}

type MatchLink struct {
	SeasonID string
	MatchID  string
	URL      string
}

// MatchIDFromURL returns the token after the last hyphen of the last path
// segment: "/soccer/england/premier-league/arsenal-chelsea-2JDks1o7/" -> "2JDks1o7".
func MatchIDFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	parts := strings.Split(strings.Trim(url, "/"), "/")
	last := parts[len(parts)-1]
	if i := strings.LastIndex(last, "-"); i >= 0 {
		return last[i+1:]
	}
	return last
}

type MatchInfo struct {
	MatchID  string
	SeasonID string
	Kickoff  time.Time
	Home     string
	Away     string
}

type SessionToken string

const NoToken SessionToken = ""

type Market string

const (
	MarketMatchResult  Market = "1X2"
	MarketCorrectScore Market = "CS"
	MarketHandicap     Market = "AHC"
	MarketTotalGoals   Market = "TG"
)

// Markets lists every market in collection order.
var Markets = []Market{
	MarketMatchResult,
	MarketCorrectScore,
	MarketHandicap,
	MarketTotalGoals,
}

type Timing string

const (
	Opening Timing = "opening"
	Closing Timing = "closing"
)

type Outcome struct {
	Name  string
	Value float64
}

type Score struct {
	Home int
	Away int
}

type OddsRecord struct {
	MatchID  string
	Market   Market
	Timing   Timing
	Time     time.Time
	Line     *float64
	Outcomes []Outcome
	Score    *Score
}

func (r OddsRecord) Value(name string) (float64, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o.Value, true
		}
	}
	return 0, false
}

type Bookmaker struct {
	ID   string
	Name string
}
