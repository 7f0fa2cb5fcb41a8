package usecase

import (
	"context"
	"time"

	"github.com/onsikgu/famiq/internal/qa"
)

// VectorStore is the persistence capability the use cases depend on. The
// concrete adapter is injected at startup and never named here.
type VectorStore interface {
	Store(ctx context.Context, rec qa.Record) error
	SearchByMember(ctx context.Context, memberID string, query qa.Record, k int) ([]qa.Record, error)
	SearchByFamily(ctx context.Context, familyID string, query qa.Record, k int) ([]qa.Record, error)
	SearchSimilarQuestions(ctx context.Context, questionText, memberID string) (float64, error)
	RecentByFamily(ctx context.Context, familyID string, limitPerMember int) ([]qa.Record, error)
	ByFamilyInRange(ctx context.Context, familyID string, start, end time.Time) ([]qa.Record, error)
	DeleteByMember(ctx context.Context, memberID string) (int, error)
}

// DeriveGenerator produces a question from a base exchange plus context.
type DeriveGenerator interface {
	Derive(ctx context.Context, base qa.Record, ragContext []qa.Record) (string, qa.Level, error)
}

// TargetGenerator produces a question for a target member with no base
// exchange.
type TargetGenerator interface {
	GenerateForTarget(ctx context.Context, targetMemberID, targetRoleLabel string, recent []qa.Record) (string, qa.Level, error)
}

// Summarizer renders a period's exchanges into a headline.
type Summarizer interface {
	Summarize(ctx context.Context, qaTexts []string, periodLabel string, answerCount int) (string, error)
}
