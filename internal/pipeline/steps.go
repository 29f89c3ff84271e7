package pipeline

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/nao1215/trustcrawl/internal/crawler"
	"github.com/nao1215/trustcrawl/internal/graph"
	"github.com/nao1215/trustcrawl/internal/model"
)

// Step names, as recorded in TrustReport.PerformedSteps.
const (
	StepCrawl  = "crawl"
	StepMatrix = "matrix"
	StepScore  = "score"
	StepFilter = "filter_seeds"
	StepRank   = "rank"
)

// Crawler runs one crawl. *crawler.Crawler implements it.
type Crawler interface {
	Crawl(ctx context.Context, seeds []model.Address, tc model.TraversalContext) (*crawler.Result, error)
}

// Scorer turns a matrix into scored addresses. *eigentrust.Client implements it.
type Scorer interface {
	Score(ctx context.Context, m *graph.Matrix) ([]model.ScoredAddress, error)
}

// BlocklistSource returns the blocklist in effect right now.
// *blocklist.List implements it.
type BlocklistSource interface {
	Current() model.AddressSet
}

// CrawlStep expands the report seeds into a transfer graph.
type CrawlStep struct {
	crawler   Crawler
	blocklist BlocklistSource
	logger    *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithBlocklist sets the source of the blocklist.
func WithBlocklist(src BlocklistSource) CrawlStepOption {
	return func(s *CrawlStep) {
		s.blocklist = src
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(c Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do executes the crawl step.
// The blocklist is read once, so a reload during the crawl does not apply to it.
func (s *CrawlStep) Do(ctx context.Context, report *model.TrustReport) error {
	tc := model.TraversalContext{
		MaxDepth:   report.MaxDepth,
		MaxResults: report.MaxResults,
		Chain:      report.Chain,
		Query:      report.Query,
	}
	if s.blocklist != nil {
		tc.Blocklist = s.blocklist.Current()
	}

	res, err := s.crawler.Crawl(ctx, report.Seeds, tc)
	if res != nil {
		report.Seeds = res.Snapshot.SeedAddresses()
		report.Addresses = res.Snapshot.Addresses
		report.Edges = res.Snapshot.Edges
		report.Stats = res.Stats
	}
	return err
}

// MatrixStep converts the crawled graph into scoring matrices.
type MatrixStep struct {
	logger *slog.Logger
}

// NewMatrixStep creates a matrix step.
func NewMatrixStep(logger *slog.Logger) *MatrixStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatrixStep{logger: logger}
}

// Name returns the step name.
func (s *MatrixStep) Name() string {
	return StepMatrix
}

// Do executes the matrix step. A graph without edges is left unscored.
func (s *MatrixStep) Do(_ context.Context, report *model.TrustReport) error {
	if len(report.Edges) == 0 {
		s.logger.Warn("no edges found", "request_id", report.RequestID, "seeds", len(report.Seeds))
		return nil
	}

	m, err := graph.BuildMatrix(graph.Snapshot{
		Addresses:  report.Addresses,
		Seeds:      len(report.Seeds),
		Edges:      report.Edges,
		Discovered: report.Stats.Discovered,
	})
	if err != nil {
		return err
	}

	report.IndexTable = m.Index
	report.Pretrust = m.Pretrust
	report.LocalTrust = m.LocalTrust

	s.logger.Debug("matrix built",
		"request_id", report.RequestID,
		"size", m.MaxIndex,
		"local_trust", len(m.LocalTrust),
	)
	return nil
}

// ScoreStep sends the matrices to the scoring engine.
// Its failure is fatal for the request.
type ScoreStep struct {
	scorer Scorer
	logger *slog.Logger
}

// NewScoreStep creates a score step.
func NewScoreStep(scorer Scorer, logger *slog.Logger) *ScoreStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreStep{scorer: scorer, logger: logger}
}

// Name returns the step name.
func (s *ScoreStep) Name() string {
	return StepScore
}

// Do executes the score step. Without matrices the scoring engine is not called.
func (s *ScoreStep) Do(ctx context.Context, report *model.TrustReport) error {
	if len(report.IndexTable) == 0 {
		report.Scores = make([]model.ScoredAddress, 0)
		return nil
	}

	m := graph.RestoreMatrix(report.IndexTable, report.Pretrust, report.LocalTrust)
	scores, err := s.scorer.Score(ctx, m)
	if err != nil {
		return err
	}
	report.Scores = scores
	return nil
}

// FilterSeedsStep removes the seed addresses from the scores.
type FilterSeedsStep struct{}

// NewFilterSeedsStep creates a filter step.
func NewFilterSeedsStep() *FilterSeedsStep {
	return &FilterSeedsStep{}
}

// Name returns the step name.
func (s *FilterSeedsStep) Name() string {
	return StepFilter
}

// Do executes the filter step.
func (s *FilterSeedsStep) Do(_ context.Context, report *model.TrustReport) error {
	out := make([]model.ScoredAddress, 0, len(report.Scores))
	for _, sc := range report.Scores {
		if report.IsSeed(sc.Address) {
			continue
		}
		out = append(out, sc)
	}
	report.Scores = out
	return nil
}

// RankStep orders the scores from highest to lowest.
// Ties keep the order the scoring engine returned.
type RankStep struct{}

// NewRankStep creates a rank step.
func NewRankStep() *RankStep {
	return &RankStep{}
}

// Name returns the step name.
func (s *RankStep) Name() string {
	return StepRank
}

// Do executes the rank step.
func (s *RankStep) Do(_ context.Context, report *model.TrustReport) error {
	slices.SortStableFunc(report.Scores, func(a, b model.ScoredAddress) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return nil
}
