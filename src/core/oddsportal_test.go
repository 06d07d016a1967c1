package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"mxshs/oddsportal/src/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRenderer struct {
	pages    map[string]*Page
	rendered []string
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (*Page, error) {
	f.rendered = append(f.rendered, url)
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return &Page{HTML: "<html><body></body></html>"}, nil
}

const leaguesHTML = `<html><body>
<table class="table-main sport">
  <tr><td><a href="/soccer/england/premier-league/results/">Premier League</a></td></tr>
  <tr><td><a href="/soccer/spain/laliga/results/">LaLiga</a></td></tr>
  <tr><td><a href="/soccer/england/premier-league/results/">Premier League 2</a></td></tr>
  <tr><td><a href="/soccer/">broken</a></td></tr>
</table>
<table class="table-main"><tr><td><a href="/basketball/usa/nba/results/">NBA</a></td></tr></table>
</body></html>`

const seasonsHTML = `<html><body>
<div class="main-menu2 main-menu-gray">
  <a href="/soccer/england/premier-league/results/">2020/2021</a>
  <a href="/soccer/england/premier-league-2019-2020/results/">2019/2020</a>
  <a href="/soccer/england/premier-league-2013-2014/results/">2013/2014</a>
  <a href="/soccer/england/premier-league-2011-2012/results/">2011/2012</a>
  <a>2018/2019</a>
  <a href="/x/">Archive</a>
</div>
</body></html>`

func resultsHTML(ids ...string) string {
	var rows strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&rows,
			`<tr class="odd deactivate"><td class="table-time">21:00</td>`+
				`<td class="name table-participant"><a href="/soccer/england/premier-league-2019-2020/home-away-%s/">Home - Away</a></td></tr>`,
			id,
		)
	}
	return `<html><body><table id="tournamentTable">` + rows.String() + `</table></body></html>`
}

const matchHTML = `<html><body>
<div id="col-content">
  <h1>Arsenal - Chelsea</h1>
  <p class="date datet t1618320499-1-1-0-0">Sunday, 13 Apr 2021, 13:28</p>
</div>
</body></html>`

func newTestCrawler(fetch Fetcher, maxPages int) *Crawler {
	return NewCrawler(fetch, CrawlerOptions{
		BaseURL:    "https://www.oddsportal.com/",
		FeedHost:   "fb.oddsportal.com",
		CutoffYear: 2013,
		MaxPages:   maxPages,
	}, zap.NewNop())
}

func TestLeagues(t *testing.T) {
	fetch := &fakeFetcher{bodies: map[string]string{
		"https://www.oddsportal.com/soccer/results/": leaguesHTML,
	}}

	leagues, err := newTestCrawler(fetch, 0).Leagues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.League{
		{Country: "england", Competition: "premier-league", Name: "Premier League 2"},
		{Country: "spain", Competition: "laliga", Name: "LaLiga"},
	}, leagues)
}

func TestLeaguesStructure(t *testing.T) {
	fetch := &fakeFetcher{bodies: map[string]string{
		"https://www.oddsportal.com/soccer/results/": `<html><body><p>maintenance</p></body></html>`,
	}}

	_, err := newTestCrawler(fetch, 0).Leagues(context.Background())
	require.ErrorIs(t, err, ErrStructure)
}

func TestSeasons(t *testing.T) {
	fetch := &fakeFetcher{bodies: map[string]string{
		"https://www.oddsportal.com/soccer/england/premier-league/results/": seasonsHTML,
	}}
	league := domain.League{Country: "england", Competition: "premier-league", Name: "Premier League"}

	seasons, err := newTestCrawler(fetch, 0).Seasons(context.Background(), league)
	require.NoError(t, err)
	require.Len(t, seasons, 3)

	assert.Equal(t, "2020/2021", seasons[0].Label)
	assert.Equal(t, "england/premier-league", seasons[0].ID())
	assert.Equal(t, "england/premier-league-2019-2020", seasons[1].ID())
	assert.Equal(t, "2013/2014", seasons[2].Label)
	assert.Equal(t, "Premier League", seasons[2].Competition)
}

func TestSeasonsWithoutMenu(t *testing.T) {
	fetch := &fakeFetcher{bodies: map[string]string{
		"https://www.oddsportal.com/soccer/": `<html><body></body></html>`,
	}}

	seasons, err := newTestCrawler(fetch, 0).Seasons(context.Background(), domain.League{Country: "x", Competition: "y"})
	require.NoError(t, err)
	assert.Empty(t, seasons)
}

func TestParseSeasonsCutoff(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(seasonsHTML))
	require.NoError(t, err)

	seasons := ParseSeasons(doc.Selection, DefaultSelector, domain.League{Country: "england"}, 2020)
	require.Len(t, seasons, 1)
	assert.Equal(t, "2020/2021", seasons[0].Label)
}

func TestMatchLinksPagination(t *testing.T) {
	season := domain.Season{
		Country:   "england",
		Label:     "2019/2020",
		Extension: "/soccer/england/premier-league-2019-2020/results/",
	}
	base := "https://www.oddsportal.com/soccer/england/premier-league-2019-2020/results/#/page/"

	renderer := &fakeRenderer{pages: map[string]*Page{
		base + "1/": {HTML: resultsHTML("aaa11111", "bbb22222")},
		base + "2/": {HTML: resultsHTML("ccc33333", "aaa11111")},
		base + "3/": {HTML: resultsHTML("ddd44444")},
	}}

	links, err := newTestCrawler(&fakeFetcher{}, 0).On(renderer).MatchLinks(context.Background(), season)
	require.NoError(t, err)

	// three pages with matches and the empty fourth
	require.Len(t, renderer.rendered, 4)
	assert.Equal(t, base+"4/", renderer.rendered[3])

	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.MatchID
		assert.Equal(t, "england/premier-league-2019-2020", l.SeasonID)
	}
	assert.Equal(t, []string{"aaa11111", "bbb22222", "ccc33333", "ddd44444"}, ids)
	assert.Equal(t, "/soccer/england/premier-league-2019-2020/home-away-aaa11111/", links[0].URL)
}

func TestMatchLinksPageCap(t *testing.T) {
	season := domain.Season{Extension: "/soccer/england/premier-league/results/"}
	base := "https://www.oddsportal.com/soccer/england/premier-league/results/#/page/"

	renderer := &fakeRenderer{pages: map[string]*Page{
		base + "1/": {HTML: resultsHTML("aaa11111")},
		base + "2/": {HTML: resultsHTML("bbb22222")},
		base + "3/": {HTML: resultsHTML("ccc33333")},
	}}

	links, err := newTestCrawler(&fakeFetcher{}, 2).On(renderer).MatchLinks(context.Background(), season)
	require.NoError(t, err)
	assert.Len(t, renderer.rendered, 2)
	assert.Len(t, links, 2)
}

type failingRenderer struct{ err error }

func (f failingRenderer) Render(ctx context.Context, url string) (*Page, error) {
	return nil, f.err
}

func TestMatchLinksRenderError(t *testing.T) {
	boom := errors.New("browser crashed")
	season := domain.Season{Extension: "/soccer/england/premier-league/results/"}

	links, err := newTestCrawler(&fakeFetcher{}, 0).On(failingRenderer{boom}).MatchLinks(context.Background(), season)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, links)
}

func TestParseMatchInfo(t *testing.T) {
	info, err := ParseMatchInfo(matchHTML, DefaultSelector)
	require.NoError(t, err)

	assert.Equal(t, "Arsenal", info.Home)
	assert.Equal(t, "Chelsea", info.Away)
	assert.Equal(t, time.Unix(1618320499, 0).UTC(), info.Kickoff)
}

func TestParseMatchInfoErrors(t *testing.T) {
	testCases := []struct {
		name string
		html string
	}{
		{
			name: "no heading",
			html: `<div id="col-content"><p class="date datet t1618320499-1-1-0-0"></p></div>`,
		},
		{
			name: "heading without separator",
			html: `<div id="col-content"><h1>Arsenal v Chelsea</h1><p class="date datet t1618320499-1-1-0-0"></p></div>`,
		},
		{
			name: "no date",
			html: `<div id="col-content"><h1>Arsenal - Chelsea</h1></div>`,
		},
		{
			name: "bad date class",
			html: `<div id="col-content"><h1>Arsenal - Chelsea</h1><p class="date datet tabc-1"></p></div>`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMatchInfo(tc.html, DefaultSelector)
			require.ErrorIs(t, err, ErrStructure)
		})
	}
}

func TestResolveMatch(t *testing.T) {
	link := domain.MatchLink{
		SeasonID: "england/premier-league-2020-2021",
		MatchID:  "2JDks1o7",
		URL:      "/soccer/england/premier-league/arsenal-chelsea-2JDks1o7/",
	}
	url := "https://www.oddsportal.com/soccer/england/premier-league/arsenal-chelsea-2JDks1o7/"

	renderer := &fakeRenderer{pages: map[string]*Page{
		url: {
			HTML: matchHTML,
			Requests: []Request{
				{URL: url},
				{URL: "https://fb.oddsportal.com/feed/match/1-1-2JDks1o7-1-2-yjd15.dat?_=1618320499284"},
			},
		},
	}}

	info, token, err := newTestCrawler(&fakeFetcher{}, 0).On(renderer).ResolveMatch(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionToken("yjd15"), token)
	assert.Equal(t, &domain.MatchInfo{
		MatchID:  "2JDks1o7",
		SeasonID: "england/premier-league-2020-2021",
		Kickoff:  time.Unix(1618320499, 0).UTC(),
		Home:     "Arsenal",
		Away:     "Chelsea",
	}, info)
}

func TestResolveMatchWithoutToken(t *testing.T) {
	link := domain.MatchLink{MatchID: "2JDks1o7", URL: "https://www.oddsportal.com/m/x-2JDks1o7/"}
	renderer := &fakeRenderer{pages: map[string]*Page{
		link.URL: {HTML: matchHTML},
	}}

	info, token, err := newTestCrawler(&fakeFetcher{}, 0).On(renderer).ResolveMatch(context.Background(), link)
	require.Error(t, err)
	assert.Nil(t, info)
	assert.Equal(t, domain.NoToken, token)
	assert.Equal(t, []string{link.URL}, renderer.rendered)
}
