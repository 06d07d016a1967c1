package parser

import (
	"context"
	"fmt"
	"time"

	"mxshs/oddsportal/src/core"
	"mxshs/oddsportal/src/domain"

	"go.uber.org/zap"
)

// Granularity decides what a failed pass puts back into the work-set.
type Granularity string

const (
	// GranularityMatch requeues a match only when its page could not be
	// resolved. Failed markets of a resolved match are not retried.
	GranularityMatch Granularity = "match"
	// GranularityMarket also requeues resolved matches, for the markets
	// that failed only.
	GranularityMarket Granularity = "market"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularityMatch, GranularityMarket:
		return g, nil
	}
	return "", fmt.Errorf("unknown retry granularity %q", s)
}

type MatchResolver interface {
	ResolveMatch(ctx context.Context, link domain.MatchLink) (*domain.MatchInfo, domain.SessionToken, error)
}

type OddsSource interface {
	Odds(ctx context.Context, matchID string, token domain.SessionToken, market domain.Market) (core.Lines, error)
}

type Options struct {
	// Bookmakers maps every market to the bookmaker id whose quotes are kept.
	Bookmakers    map[domain.Market]string
	MaxRetries    int
	Granularity   Granularity
	ProgressEvery int
}

type Result struct {
	Matches []domain.MatchInfo
	Odds    map[domain.Market][]domain.OddsRecord
	// Failed holds the match ids still failing once the retry budget ran out.
	Failed []string
	Passes int
}

type Collector struct {
	resolver MatchResolver
	feed     OddsSource
	extract  *core.Extractor
	opts     Options
	log      *zap.Logger
}

func NewCollector(resolver MatchResolver, feed OddsSource, opts Options, log *zap.Logger) *Collector {
	if opts.Granularity == "" {
		opts.Granularity = GranularityMatch
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 25
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Collector{
		resolver: resolver,
		feed:     feed,
		extract:  core.NewExtractor(log),
		opts:     opts,
		log:      log,
	}
}

type task struct {
	link    domain.MatchLink
	markets []domain.Market
}

// Collect resolves every link and gathers its odds, retrying failed work up
// to MaxRetries more times. When ctx is cancelled the partial result is
// returned with the unfinished ids in Failed.
func (c *Collector) Collect(ctx context.Context, links []domain.MatchLink) (*Result, error) {
	res := &Result{Odds: make(map[domain.Market][]domain.OddsRecord, len(domain.Markets))}
	recorded := make(map[string]bool, len(links))

	work := make([]task, 0, len(links))
	for _, link := range links {
		work = append(work, task{link: link, markets: domain.Markets})
	}

	budget := c.opts.MaxRetries
	for len(work) > 0 {
		res.Passes++

		failed, err := c.pass(ctx, res.Passes, work, res, recorded)
		if err != nil {
			res.Failed = matchIDs(failed)
			return res, err
		}

		if len(failed) == 0 || budget == 0 {
			res.Failed = matchIDs(failed)
			break
		}
		budget--

		c.log.Info("retrying failed matches",
			zap.Int("failed", len(failed)),
			zap.Int("retries_left", budget),
		)
		work = failed
	}

	c.log.Info("collection finished",
		zap.Int("passes", res.Passes),
		zap.Int("matches", len(res.Matches)),
		zap.Int("failed", len(res.Failed)),
	)

	return res, nil
}

func (c *Collector) pass(ctx context.Context, n int, work []task, res *Result, recorded map[string]bool) ([]task, error) {
	var failed []task
	start := time.Now()

	for i, t := range work {
		if err := ctx.Err(); err != nil {
			return append(failed, work[i:]...), err
		}

		if retry, ok := c.collectMatch(ctx, t, res, recorded); !ok {
			failed = append(failed, retry)
		}

		if (i+1)%c.opts.ProgressEvery == 0 {
			c.log.Info("progress",
				zap.Int("pass", n),
				zap.Int("done", i+1),
				zap.Int("total", len(work)),
				zap.Duration("elapsed", time.Since(start)),
			)
			start = time.Now()
		}
	}

	return failed, nil
}

func (c *Collector) collectMatch(ctx context.Context, t task, res *Result, recorded map[string]bool) (task, bool) {
	matchID := t.link.MatchID

	info, token, err := c.resolver.ResolveMatch(ctx, t.link)
	if err != nil {
		c.log.Warn("failed to resolve match", zap.String("match_id", matchID), zap.Error(err))
		return t, false
	}

	if !recorded[matchID] {
		res.Matches = append(res.Matches, *info)
		recorded[matchID] = true
	}

	var missed []domain.Market
	for _, market := range t.markets {
		records, err := c.market(ctx, matchID, token, market)
		if err != nil {
			c.log.Warn("failed to collect odds",
				zap.String("match_id", matchID),
				zap.String("market", string(market)),
				zap.Error(err),
			)
			missed = append(missed, market)
			continue
		}
		res.Odds[market] = append(res.Odds[market], records...)
	}

	if c.opts.Granularity == GranularityMarket && len(missed) > 0 {
		return task{link: t.link, markets: missed}, false
	}

	return t, true
}

func (c *Collector) market(ctx context.Context, matchID string, token domain.SessionToken, market domain.Market) ([]domain.OddsRecord, error) {
	lines, err := c.feed.Odds(ctx, matchID, token, market)
	if err != nil {
		return nil, err
	}

	return c.extract.Extract(market, lines, c.opts.Bookmakers[market], matchID)
}

func matchIDs(tasks []task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.link.MatchID)
	}
	return ids
}
