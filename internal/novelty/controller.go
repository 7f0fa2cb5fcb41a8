package novelty

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/qa"
)

// GenerateFunc produces one candidate question.
type GenerateFunc func(ctx context.Context) (string, qa.Level, error)

// ProbeFunc returns the top-1 similarity of the question against the
// owner's stored questions, in [0,1].
type ProbeFunc func(ctx context.Context, question string) (float64, error)

// Result is the outcome of a novelty-controlled generation.
type Result struct {
	Question          string
	Level             qa.Level
	Regenerations     int
	SimilarityWarning bool
	LastSimilarity    float64
}

// Controller drives bounded regeneration: candidates at or above the
// similarity threshold are regenerated up to the attempt budget, and the
// last candidate is returned with a warning rather than blocking the user.
type Controller struct {
	threshold   float64
	maxAttempts int
	logger      *zap.Logger
}

// New creates a controller. Zero values fall back to threshold 0.9 and
// three attempts.
func New(threshold float64, maxAttempts int, logger *zap.Logger) *Controller {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.9
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{threshold: threshold, maxAttempts: maxAttempts, logger: logger}
}

// Run executes the generate/probe loop. Contract violations consume the
// attempt and re-drive generation; after the attempt budget is spent on
// violations the last one surfaces. Probe transport failures are logged and
// treated as similarity 0 so a degraded vector store never blocks question
// delivery.
func (c *Controller) Run(ctx context.Context, generate GenerateFunc, probe ProbeFunc) (Result, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		question, level, err := generate(ctx)
		if err != nil {
			if errors.Is(err, errs.ErrContract) {
				c.logger.Warn("Generation attempt violated contract",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				lastErr = err
				continue
			}
			return Result{}, err
		}

		similarity, err := probe(ctx, question)
		if err != nil {
			c.logger.Warn("Similarity probe failed, treating candidate as novel",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			similarity = 0
		}

		res := Result{
			Question:       question,
			Level:          level,
			Regenerations:  attempt - 1,
			LastSimilarity: similarity,
		}
		if similarity < c.threshold {
			return res, nil
		}
		if attempt == c.maxAttempts {
			res.SimilarityWarning = true
			c.logger.Warn("Novelty budget exhausted, returning last candidate",
				zap.Float64("similarity", similarity),
				zap.Float64("threshold", c.threshold),
			)
			return res, nil
		}
		c.logger.Debug("Candidate too similar, regenerating",
			zap.Int("attempt", attempt),
			zap.Float64("similarity", similarity),
		)
	}

	if lastErr != nil {
		return Result{}, lastErr
	}
	return Result{}, fmt.Errorf("%w: no candidate produced", errs.ErrContract)
}
