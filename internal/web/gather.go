package web

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/extract"
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/util"
	"github.com/ppiankov/clarifai/internal/validate"
	"github.com/ppiankov/clarifai/internal/worker"
)

// Gatherer collects evidence for claims concurrently
type Gatherer struct {
	searcher     Searcher
	fetcher      *Fetcher
	classifier   *validate.AuthorityClassifier
	pool         *worker.Pool
	maxResults   int
	snippetChars int
	log          *zap.Logger
}

// NewGatherer assembles a gatherer from its parts
func NewGatherer(searcher Searcher, fetcher *Fetcher, classifier *validate.AuthorityClassifier, workers, maxResults, snippetChars int, log *zap.Logger) *Gatherer {
	if maxResults <= 0 {
		maxResults = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gatherer{
		searcher:     searcher,
		fetcher:      fetcher,
		classifier:   classifier,
		pool:         worker.NewPool(workers),
		maxResults:   maxResults,
		snippetChars: snippetChars,
		log:          log.Named("web"),
	}
}

// NewGathererFromConfig wires DuckDuckGo search, a robots-aware fetcher and authority classification
func NewGathererFromConfig(cfg model.WebConfig, authority model.AuthorityConfig, log *zap.Logger) *Gatherer {
	client := util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	var robots *util.RobotsChecker
	if cfg.RespectRobots {
		robots = util.NewRobotsChecker(client, cfg.UserAgent, cfg.Timeout)
	}
	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)

	return NewGatherer(
		NewDuckDuckGo(cfg.SearchURL, cfg.UserAgent, client),
		NewFetcher(client, cfg.UserAgent, cfg.MaxBodyBytes, robots, limiter),
		validate.NewAuthorityClassifier(&authority),
		cfg.Workers,
		cfg.MaxResults,
		cfg.SnippetChars,
		log,
	)
}

// Gather looks up every claim. Lookup failures are recorded on the evidence
// rather than returned; only cancellation fails the call.
func (g *Gatherer) Gather(ctx context.Context, claims []model.Claim) ([]model.ClaimEvidence, error) {
	tasks := make([]worker.Task[model.ClaimEvidence], len(claims))
	for i, claim := range claims {
		tasks[i] = func(ctx context.Context) (model.ClaimEvidence, error) {
			return g.gatherOne(ctx, claim), nil
		}
	}

	outcomes := worker.Run(ctx, g.pool, tasks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.ClaimEvidence, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Value
	}
	return out, nil
}

func (g *Gatherer) gatherOne(ctx context.Context, claim model.Claim) model.ClaimEvidence {
	ce := model.ClaimEvidence{Claim: claim, Evidence: []model.Evidence{}}

	results, err := g.searcher.Search(ctx, claim.Content, g.maxResults)
	if err != nil {
		g.log.Warn("search failed", zap.Int("segment_id", claim.SegmentID), zap.Error(err))
		return ce
	}

	for _, r := range results {
		ev := model.Evidence{URL: r.URL, Title: r.Title, Snippet: extract.Snippet(r.Snippet, g.snippetChars)}

		page, err := g.fetcher.Fetch(ctx, r.URL)
		if err != nil {
			ev.Error = err.Error()
			g.log.Debug("fetch failed", zap.String("url", r.URL), zap.Error(err))
		} else {
			ev.Fetched = true
			ev.URL = page.URL
			if s := extract.Snippet(page.Text, g.snippetChars); s != "" {
				ev.Snippet = s
			}
		}
		ce.Evidence = append(ce.Evidence, ev)
	}

	g.classifier.Annotate(ce.Evidence)
	return ce
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}
