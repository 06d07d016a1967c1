package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mxshs/oddsportal/src/domain"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type CrawlerOptions struct {
	BaseURL    string
	FeedHost   string
	CutoffYear int
	// MaxPages caps results pagination, 0 means until an empty page.
	MaxPages int
}

// Crawler walks the oddsportal results pages: leagues, their seasons, the
// matches of a season and the detail page of a match.
type Crawler struct {
	fetch      Fetcher
	baseURL    string
	feedPrefix string
	cutoffYear int
	maxPages   int
	sel        Selector
	log        *zap.Logger
}

func NewCrawler(fetch Fetcher, opts CrawlerOptions, log *zap.Logger) *Crawler {
	return &Crawler{
		fetch:      fetch,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		feedPrefix: FeedPrefix(opts.FeedHost),
		cutoffYear: opts.CutoffYear,
		maxPages:   opts.MaxPages,
		sel:        DefaultSelector,
		log:        log,
	}
}

func (c *Crawler) Leagues(ctx context.Context) ([]domain.League, error) {
	body, err := c.fetch.Get(ctx, c.baseURL+"/soccer/results/")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	leagues := ParseLeagues(doc.Selection, c.sel)
	if len(leagues) == 0 {
		return nil, fmt.Errorf("leagues: %w", ErrStructure)
	}

	return leagues, nil
}

func ParseLeagues(s *goquery.Selection, sel Selector) []domain.League {
	var leagues []domain.League
	seen := map[string]int{}

	s.Find(sel.LeagueLink).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		parts := strings.Split(href, "/")
		if len(parts) < 4 || parts[2] == "" || parts[3] == "" {
			return
		}

		league := domain.League{
			Country:     parts[2],
			Competition: parts[3],
			Name:        strings.TrimSpace(s.Text()),
		}

		key := league.Country + "/" + league.Competition
		if i, ok := seen[key]; ok {
			leagues[i] = league
			return
		}
		seen[key] = len(leagues)
		leagues = append(leagues, league)
	})

	return leagues
}

// Seasons lists the seasons of league starting in or after the cutoff year.
// A page without the season menu is logged and gives no seasons.
func (c *Crawler) Seasons(ctx context.Context, league domain.League) ([]domain.Season, error) {
	url := fmt.Sprintf("%s/soccer/%s/%s/results/", c.baseURL, league.Country, league.Competition)

	body, err := c.fetch.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	seasons := ParseSeasons(doc.Selection, c.sel, league, c.cutoffYear)
	if len(seasons) == 0 {
		c.log.Warn("no seasons found",
			zap.String("country", league.Country),
			zap.String("competition", league.Competition),
		)
	}

	return seasons, nil
}

func ParseSeasons(s *goquery.Selection, sel Selector, league domain.League, cutoffYear int) []domain.Season {
	var seasons []domain.Season

	s.Find(sel.SeasonLink).Each(func(i int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Text())
		if len(label) < 4 {
			return
		}

		startYear, err := strconv.Atoi(label[:4])
		if err != nil || startYear < cutoffYear {
			return
		}

		href, ok := s.Attr("href")
		if !ok {
			return
		}

		seasons = append(seasons, domain.Season{
			Country:     league.Country,
			Competition: league.Name,
			Label:       label,
			Extension:   href,
		})
	})

	return seasons
}

// Pages binds the crawler to one rendering session.
type Pages struct {
	*Crawler
	renderer Renderer
}

func (c *Crawler) On(r Renderer) *Pages {
	return &Pages{Crawler: c, renderer: r}
}

func (c *Crawler) pageURL(extension string, page int) string {
	return fmt.Sprintf("%s%s#/page/%d/", c.baseURL, extension, page)
}

// MatchLinks follows the season's results pages from page 1 until a page
// lists no matches, and returns every match once.
func (p *Pages) MatchLinks(ctx context.Context, season domain.Season) ([]domain.MatchLink, error) {
	var links []domain.MatchLink

	for page := 1; p.maxPages == 0 || page <= p.maxPages; page++ {
		rendered, err := p.renderer.Render(ctx, p.pageURL(season.Extension, page))
		if err != nil {
			return Dedup(links), fmt.Errorf("season %s page %d: %w", season.ID(), page, err)
		}

		found, err := ParseMatchLinks(rendered.HTML, p.sel, season.ID())
		if err != nil {
			return Dedup(links), fmt.Errorf("season %s page %d: %w", season.ID(), page, err)
		}

		p.log.Debug("results page",
			zap.String("season", season.ID()),
			zap.Int("page", page),
			zap.Int("links", len(found)),
		)

		if len(found) == 0 {
			break
		}
		links = append(links, found...)
	}

	return Dedup(links), nil
}

// ParseMatchLinks reads the match rows of one results page. A page without
// the results table has no links.
func ParseMatchLinks(html string, sel Selector, seasonID string) ([]domain.MatchLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var links []domain.MatchLink

	doc.Find(sel.MatchRow).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Find(sel.MatchRowLink).First().Attr("href")
		if !ok {
			return
		}
		links = append(links, domain.MatchLink{
			SeasonID: seasonID,
			MatchID:  domain.MatchIDFromURL(href),
			URL:      href,
		})
	})

	return links, nil
}

// Dedup keeps the first link of every match id.
func Dedup(links []domain.MatchLink) []domain.MatchLink {
	seen := make(map[string]bool, len(links))
	out := make([]domain.MatchLink, 0, len(links))

	for _, l := range links {
		if seen[l.MatchID] {
			continue
		}
		seen[l.MatchID] = true
		out = append(out, l)
	}

	return out
}

// ResolveMatch renders the match page, reads teams and kickoff and picks the
// feed token out of the requests the page made.
func (p *Pages) ResolveMatch(ctx context.Context, link domain.MatchLink) (*domain.MatchInfo, domain.SessionToken, error) {
	url := link.URL
	if !strings.HasPrefix(url, "http") {
		url = p.baseURL + url
	}

	rendered, err := p.renderer.Render(ctx, url)
	if err != nil {
		p.log.Warn("failed to fetch game info", zap.String("match_id", link.MatchID), zap.Error(err))
		return nil, domain.NoToken, err
	}

	info, err := ParseMatchInfo(rendered.HTML, p.sel)
	if err != nil {
		p.log.Warn("failed to fetch game info", zap.String("match_id", link.MatchID), zap.Error(err))
		return nil, domain.NoToken, err
	}
	info.MatchID = link.MatchID
	info.SeasonID = link.SeasonID

	token := ResolveSessionToken(rendered.Requests, link.MatchID, p.feedPrefix)
	if token == domain.NoToken {
		p.log.Warn("no feed request found",
			zap.String("match_id", link.MatchID),
			zap.Int("requests", len(rendered.Requests)),
		)
		return nil, domain.NoToken, fmt.Errorf("match %s: session token not found", link.MatchID)
	}

	return info, token, nil
}

// ParseMatchInfo reads team names and kickoff from a match page. MatchID
// and SeasonID are left to the caller.
func ParseMatchInfo(html string, sel Selector) (*domain.MatchInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	heading := strings.TrimSpace(doc.Find(sel.MatchHeading).First().Text())
	teams := strings.Split(heading, sel.TeamSeparator)
	if len(teams) != 2 {
		return nil, fmt.Errorf(
			"%w: parsed %d teams from heading %q, expected 2", ErrStructure, len(teams), heading,
		)
	}

	home := strings.TrimSpace(teams[0])
	away := strings.TrimSpace(teams[1])
	if home == "" || away == "" {
		return nil, fmt.Errorf("%w: empty team name in heading %q", ErrStructure, heading)
	}

	class, ok := doc.Find(sel.MatchDate).First().Attr("class")
	if !ok {
		return nil, fmt.Errorf("%w: no match date element", ErrStructure)
	}

	kickoff, err := kickoffFromClass(class)
	if err != nil {
		return nil, err
	}

	return &domain.MatchInfo{Kickoff: kickoff, Home: home, Away: away}, nil
}

// kickoffFromClass decodes the epoch hidden in the date element's last class,
// e.g. "date datet t1618320499-1-1-0-0".
func kickoffFromClass(class string) (time.Time, error) {
	fields := strings.Fields(class)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("%w: empty date class", ErrStructure)
	}

	raw, _, _ := strings.Cut(fields[len(fields)-1], "-")
	if len(raw) < 2 {
		return time.Time{}, fmt.Errorf("%w: date class %q", ErrStructure, class)
	}

	epoch, err := strconv.ParseInt(raw[1:], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date class %q: %v", ErrStructure, class, err)
	}

	return time.Unix(epoch, 0).UTC(), nil
}
