package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/internal/entry"
	"github.com/Alias1177/signalrank/internal/momentum"
	"github.com/Alias1177/signalrank/internal/ranking"
	"github.com/Alias1177/signalrank/internal/scoring"
	"github.com/Alias1177/signalrank/internal/technical"
	"github.com/Alias1177/signalrank/models"
)

// providerCalls bounds the per-prediction deadline: market snapshot,
// fundamentals and order-book depth each get the configured request timeout.
const providerCalls = 3

// Deps are the external providers the pipeline scores against.
type Deps struct {
	Resolver     models.AssetResolver
	Market       models.MarketSignalProvider
	Fundamentals models.FundamentalsProvider
	Book         models.OrderBookProvider // optional
}

// Result is the outcome of one batch run.
type Result struct {
	Ranked   []models.RankedResult
	Rejected []models.RejectedPrediction
}

// Selected returns only the rows that passed gates and the top-fraction cut.
func (r *Result) Selected() []models.RankedResult {
	selected := make([]models.RankedResult, 0)
	for _, row := range r.Ranked {
		if row.Selected {
			selected = append(selected, row)
		}
	}
	return selected
}

// Runner scores a batch of predictions concurrently and ranks the results.
// Scoring individual predictions is independent; only the final ranking is a
// barrier across the whole batch.
type Runner struct {
	cfg       *config.Config
	deps      Deps
	technical *technical.Engine
	entry     *entry.Engine
	scorer    *scoring.Scorer
	selector  *ranking.Selector
	logger    zerolog.Logger
}

// New creates a pipeline runner from configuration and providers.
func New(cfg *config.Config, deps Deps) *Runner {
	return &Runner{
		cfg:       cfg,
		deps:      deps,
		technical: technical.NewEngine(cfg.Timeframes),
		entry:     entry.NewEngine(cfg.Entry, cfg.Bootstrap, deps.Book),
		scorer:    scoring.NewScorer(cfg.Structural),
		selector:  ranking.NewSelector(cfg.Gates),
		logger:    log.With().Str("component", "pipeline").Logger(),
	}
}

type scoreOutcome struct {
	result   *models.RankedResult
	rejected *models.RejectedPrediction
}

// Run scores every prediction through a worker pool, then ranks the batch.
func (r *Runner) Run(ctx context.Context, preds []models.Prediction) (*Result, error) {
	if len(preds) == 0 {
		return &Result{}, nil
	}

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(preds) {
		workers = len(preds)
	}

	jobs := make(chan models.Prediction)
	outcomes := make(chan scoreOutcome, len(preds))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pred := range jobs {
				outcomes <- r.score(ctx, pred)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, pred := range preds {
			select {
			case jobs <- pred:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	res := &Result{}
	scored := make([]models.RankedResult, 0, len(preds))
	for outcome := range outcomes {
		if outcome.rejected != nil {
			res.Rejected = append(res.Rejected, *outcome.rejected)
			continue
		}
		scored = append(scored, *outcome.result)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Ranked = r.selector.Rank(scored)
	r.logger.Info().
		Int("scored", len(scored)).
		Int("rejected", len(res.Rejected)).
		Int("selected", len(res.Selected())).
		Msg("batch ranked")
	return res, nil
}

// score evaluates one prediction. Provider failures degrade the affected
// signal to its neutral path; only validation failures reject the record.
func (r *Runner) score(parent context.Context, pred models.Prediction) scoreOutcome {
	budget := time.Duration(providerCalls) * r.cfg.RequestTimeout
	if budget <= 0 {
		budget = 90 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	reject := func(reason string) scoreOutcome {
		return scoreOutcome{rejected: &models.RejectedPrediction{
			SubmissionID: pred.SubmissionID,
			Source:       pred.Source,
			Asset:        pred.Asset,
			Reason:       reason,
		}}
	}

	asset, err := r.deps.Resolver.Resolve(pred.Asset)
	if err != nil {
		return reject("unknown asset " + pred.Asset)
	}

	in := scoring.Inputs{}

	snap, err := r.deps.Market.Fetch(ctx, asset, pred.IssuedAt, r.cfg.LookbackDays)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("asset", asset.Canonical).
			Str("submission_id", pred.SubmissionID).
			Msg("market data unavailable, structural signals degrade to neutral")
		snap = nil
	}

	if snap != nil {
		techRes := r.technical.Evaluate(snap, pred.Direction)
		in.TechnicalBias = techRes.Bias
		in.TechnicalAlignment = techRes.Alignment
		in.TechnicalAvailable = techRes.Available

		momRes := momentum.Evaluate(snap, pred.Direction)
		in.MomentumAlignment = momRes.Alignment
		in.WeightedMomentum = momRes.Set.Weighted
		in.MomentumAvailable = momRes.Available
		in.TimeConsistency = momRes.TimeConsistency
	}

	fundScore, err := r.deps.Fundamentals.Score(ctx, asset, pred.Direction, pred.IssuedAt)
	if err != nil {
		if !errors.Is(err, models.ErrUnavailable) && !errors.Is(err, context.DeadlineExceeded) {
			r.logger.Warn().Err(err).Str("asset", asset.Canonical).Msg("fundamentals failed")
		}
	} else {
		in.FundamentalScore = fundScore
		in.FundamentalAvailable = true
	}

	if snap != nil {
		if breakdown, applicable := r.entry.Evaluate(ctx, pred, snap); applicable {
			in.Entry = breakdown
			in.EntryApplicable = true
		}
	}

	bd, err := r.scorer.Compose(pred, in)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			return reject(vErr.Error())
		}
		return reject("scoring failed: " + err.Error())
	}

	return scoreOutcome{result: &models.RankedResult{Prediction: pred, Breakdown: bd}}
}
