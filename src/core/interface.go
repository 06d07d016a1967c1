package core

import (
	"context"
	"errors"
)

var (
	ErrStructure         = errors.New("expected page element not found")
	ErrPayloadNotFound   = errors.New("embedded payload not found")
	ErrLineNotFound      = errors.New("odds line not found")
	ErrUnrecognizedShape = errors.New("unrecognized odds entry shape")
)

// Request is one network request observed while a page rendered.
type Request struct {
	URL string
}

type Page struct {
	HTML     string
	Requests []Request
}

// Renderer navigates a browser to url, waits for the page scripts to settle
// and returns the markup together with the requests issued, in order.
type Renderer interface {
	Render(ctx context.Context, url string) (*Page, error)
}

// Fetcher is a plain GET returning the decoded response body.
type Fetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

type Selector struct {
	LeagueLink    string
	SeasonLink    string
	MatchRow      string
	MatchRowLink  string
	MatchHeading  string
	MatchDate     string
	TeamSeparator string
}

var DefaultSelector = Selector{
	LeagueLink:    `table.table-main.sport tbody td a`,
	SeasonLink:    `div.main-menu2.main-menu-gray a`,
	MatchRow:      `table#tournamentTable tr.deactivate`,
	MatchRowLink:  `td.table-participant a`,
	MatchHeading:  `h1`,
	MatchDate:     `div#col-content p.date`,
	TeamSeparator: " - ",
}
