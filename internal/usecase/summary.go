package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/metrics"
	"github.com/onsikgu/famiq/internal/qa"
)

// FamilySummary produces a period headline from the family's exchanges.
type FamilySummary struct {
	store  VectorStore
	sum    Summarizer
	logger *zap.Logger
	now    func() time.Time
}

// NewFamilySummary wires the summary path.
func NewFamilySummary(store VectorStore, sum Summarizer, logger *zap.Logger) *FamilySummary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilySummary{store: store, sum: sum, logger: logger, now: time.Now}
}

// Execute scans the period window, renders each exchange with the canonical
// embedding text, and asks the summarizer for a headline. Zero answers still
// produce a graceful headline.
func (u *FamilySummary) Execute(ctx context.Context, familyID string, period qa.Period) (string, error) {
	startedAt := time.Now()

	start, end := period.Window(u.now())
	docs, err := u.store.ByFamilyInRange(ctx, familyID, start, end)
	if err != nil {
		metrics.SummaryRequests.WithLabelValues(string(period), "error").Inc()
		return "", err
	}

	texts := make([]string, 0, len(docs))
	for _, rec := range docs {
		texts = append(texts, rec.EmbeddingText())
	}

	headline, err := u.sum.Summarize(ctx, texts, period.Label(), len(docs))
	if err != nil {
		metrics.SummaryRequests.WithLabelValues(string(period), "error").Inc()
		return "", err
	}
	metrics.SummaryRequests.WithLabelValues(string(period), "ok").Inc()

	u.logger.Info("Period summary generated",
		zap.String("family_id", familyID),
		zap.String("period", string(period)),
		zap.Int("answer_count", len(docs)),
		zap.Duration("took", time.Since(startedAt)),
	)
	return headline, nil
}
