package trust

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/trustcrawl/internal/config"
	"github.com/nao1215/trustcrawl/internal/crawler"
	"github.com/nao1215/trustcrawl/internal/eigentrust"
	"github.com/nao1215/trustcrawl/internal/metrics"
	"github.com/nao1215/trustcrawl/internal/model"
	"github.com/nao1215/trustcrawl/internal/neighbor"
	"github.com/nao1215/trustcrawl/internal/pipeline"
)

// Request is one trust crawl request.
type Request struct {
	// Seeds are raw seed addresses. They are normalized and deduplicated.
	Seeds []string

	// Depth is the crawl depth. Zero selects the configured default.
	Depth int

	// Limit bounds the number of discovered addresses. Zero selects the
	// configured default.
	Limit int

	// Chain is a chain name or alias from the chain table.
	Chain string
}

// Service runs trust crawl requests. It is safe for concurrent use.
type Service struct {
	cfg       *config.Config
	crawler   pipeline.Crawler
	scorer    pipeline.Scorer
	blocklist pipeline.BlocklistSource
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records crawl and request metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBlocklist sets the blocklist read at the start of every crawl.
func WithBlocklist(src pipeline.BlocklistSource) Option {
	return func(s *Service) {
		s.blocklist = src
	}
}

// WithCrawler replaces the crawler built from the configuration.
func WithCrawler(c pipeline.Crawler) Option {
	return func(s *Service) {
		s.crawler = c
	}
}

// WithScorer replaces the scoring engine client built from the configuration.
func WithScorer(sc pipeline.Scorer) Option {
	return func(s *Service) {
		s.scorer = sc
	}
}

// WithClock sets the clock used for the lookup time window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New builds a Service from cfg. The neighbor client, the shared gate, the
// crawler and the scoring client are created here unless replaced by options.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.crawler == nil {
		c, err := s.buildCrawler()
		if err != nil {
			return nil, err
		}
		s.crawler = c
	}
	if s.scorer == nil {
		sc, err := eigentrust.NewClient(cfg.ScoringURL,
			eigentrust.WithParams(eigentrust.Params{
				Alpha:         cfg.Alpha,
				Epsilon:       cfg.Epsilon,
				MaxIterations: cfg.MaxIterations,
				FlatTail:      cfg.FlatTail,
			}),
			eigentrust.WithTimeout(cfg.ScoringTimeout),
			eigentrust.WithLogger(s.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("scoring engine client: %w", err)
		}
		s.scorer = sc
	}
	return s, nil
}

func (s *Service) buildCrawler() (*crawler.Crawler, error) {
	cfg := s.cfg

	client, err := neighbor.NewClient(cfg.NeighborURL,
		neighbor.WithAPIKey(cfg.NeighborAPIKey),
		neighbor.WithTimeout(cfg.NeighborTimeout),
		neighbor.WithProxy(cfg.ProxyAddress),
	)
	if err != nil {
		return nil, fmt.Errorf("neighbor client: %w", err)
	}

	fetcher := neighbor.NewFetcher(client,
		neighbor.WithDefaultWeight(cfg.DefaultTransferValue),
		neighbor.WithLargeAccountPrefix(cfg.LargeAccountPrefix),
		neighbor.WithLogger(s.logger),
	)

	gate := crawler.NewGate(cfg.MaxConcurrency,
		crawler.WithRateLimit(cfg.RateLimit, cfg.MaxConcurrency),
	)

	opts := []crawler.Option{
		crawler.WithGate(gate),
		crawler.WithLogger(s.logger),
	}
	if s.metrics != nil {
		opts = append(opts, crawler.WithObserver(s.metrics))
	}
	return crawler.New(fetcher, opts...), nil
}

// NewReport validates req and creates the report a pipeline run fills in.
// Errors wrap ErrInvalidRequest.
func (s *Service) NewReport(req Request) (*model.TrustReport, error) {
	depth := req.Depth
	if depth == 0 {
		depth = s.cfg.Depth
	}
	if depth < 1 || depth > config.MaxDepth {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, config.ErrInvalidDepth)
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.Limit
	}
	if limit < 1 || limit > config.MaxLimit {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, config.ErrInvalidLimit)
	}

	seeds, err := model.NormalizeAddresses(req.Seeds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, config.ErrNoSeeds)
	}

	chain, err := config.ResolveChain(s.cfg.Chains, req.Chain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	report := model.NewTrustReport(chain.Name, seeds, depth, limit)
	report.RequestID = s.newID()
	report.StartedAt = s.now()
	report.Query = chain.Window(report.StartedAt, s.cfg.ExcludeRecent)
	return report, nil
}

// Pipeline returns a fresh pipeline for one request.
func (s *Service) Pipeline() *pipeline.Pipeline {
	popts := []pipeline.Option{pipeline.WithLogger(s.logger)}
	if s.metrics != nil {
		popts = append(popts, pipeline.WithStepObserver(s.metrics))
	}
	p := pipeline.New(popts...)

	crawlOpts := []pipeline.CrawlStepOption{pipeline.WithCrawlLogger(s.logger)}
	if s.blocklist != nil {
		crawlOpts = append(crawlOpts, pipeline.WithBlocklist(s.blocklist))
	}

	p.AddSteps(
		pipeline.NewCrawlStep(s.crawler, crawlOpts...),
		pipeline.NewMatrixStep(s.logger),
		pipeline.NewScoreStep(s.scorer, s.logger),
		pipeline.NewFilterSeedsStep(),
		pipeline.NewRankStep(),
	)
	return p
}

// Run executes a fresh pipeline on report and records the outcome.
func (s *Service) Run(ctx context.Context, report *model.TrustReport) error {
	err := s.Pipeline().Execute(ctx, report)
	if err == nil && report.Error != nil {
		err = report.Error
	}
	s.observe(report)
	return err
}

// ObserveReport records a report finished outside Run, e.g. by a batch.
func (s *Service) ObserveReport(report *model.TrustReport) {
	s.observe(report)
}

func (s *Service) observe(report *model.TrustReport) {
	if s.metrics != nil {
		s.metrics.ObserveReport(report)
	}
	s.logger.Info("trust request finished",
		"request_id", report.RequestID,
		"chain", report.Chain,
		"seeds", len(report.Seeds),
		"addresses", report.Stats.Addresses,
		"edges", report.Stats.Edges,
		"scores", len(report.Scores),
		"failed_fetches", report.Stats.FailedFetches,
		"elapsed", time.Since(report.StartedAt),
		"failed", report.Failed(),
	)
}

// Neighbors crawls around req.Seeds and returns the scored addresses found,
// highest score first, without the seeds. An invalid request returns an
// ErrInvalidRequest error; every other failure, panics included, returns an
// ErrService error.
func (s *Service) Neighbors(ctx context.Context, req Request) (scores []model.ScoredAddress, err error) {
	report, err := s.NewReport(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("trust request panicked",
				"request_id", report.RequestID,
				"panic", r,
			)
			scores = nil
			err = fmt.Errorf("%w: panic: %v", ErrService, r)
		}
	}()

	if err := s.Run(ctx, report); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrService, err)
	}
	return report.Scores, nil
}

// Chains returns the canonical names of the supported chains.
func (s *Service) Chains() []string {
	return config.ChainNames(s.cfg.Chains)
}
