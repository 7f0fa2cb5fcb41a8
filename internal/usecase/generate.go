package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/metrics"
	"github.com/onsikgu/famiq/internal/novelty"
	"github.com/onsikgu/famiq/internal/qa"
)

// PersonalRAG generates a follow-up question from a member's own history.
type PersonalRAG struct {
	store   VectorStore
	gen     DeriveGenerator
	novelty *novelty.Controller
	topK    int
	logger  *zap.Logger
}

// NewPersonalRAG wires the personal generation path.
func NewPersonalRAG(store VectorStore, gen DeriveGenerator, ctrl *novelty.Controller, topK int, logger *zap.Logger) *PersonalRAG {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonalRAG{store: store, gen: gen, novelty: ctrl, topK: topK, logger: logger}
}

// Execute runs retrieve, derive under the novelty policy, then persist.
// Retrieval sees the store state prior to this exchange; the base is
// appended after generation so it can never be its own context.
func (u *PersonalRAG) Execute(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	return runDerive(ctx, deriveParams{
		kind:     "personal",
		priority: PriorityPersonal,
		store:    u.store,
		gen:      u.gen,
		novelty:  u.novelty,
		logger:   u.logger,
		search: func(ctx context.Context, base qa.Record) ([]qa.Record, error) {
			return u.store.SearchByMember(ctx, in.MemberID, base, u.topK)
		},
	}, in)
}

// FamilyRAG generates a follow-up question from the whole family's history.
// The novelty probe still targets the answering member; novelty is measured
// against that member's past questions, not the family's.
type FamilyRAG struct {
	store   VectorStore
	gen     DeriveGenerator
	novelty *novelty.Controller
	topK    int
	logger  *zap.Logger
}

// NewFamilyRAG wires the family generation path.
func NewFamilyRAG(store VectorStore, gen DeriveGenerator, ctrl *novelty.Controller, topK int, logger *zap.Logger) *FamilyRAG {
	if topK <= 0 {
		topK = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyRAG{store: store, gen: gen, novelty: ctrl, topK: topK, logger: logger}
}

// Execute runs the same pipeline as PersonalRAG with a family-scoped
// retrieval predicate.
func (u *FamilyRAG) Execute(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	return runDerive(ctx, deriveParams{
		kind:     "family",
		priority: PriorityFamily,
		store:    u.store,
		gen:      u.gen,
		novelty:  u.novelty,
		logger:   u.logger,
		search: func(ctx context.Context, base qa.Record) ([]qa.Record, error) {
			return u.store.SearchByFamily(ctx, in.FamilyID, base, u.topK)
		},
	}, in)
}

type deriveParams struct {
	kind     string
	priority int
	store    VectorStore
	gen      DeriveGenerator
	novelty  *novelty.Controller
	logger   *zap.Logger
	search   func(ctx context.Context, base qa.Record) ([]qa.Record, error)
}

func runDerive(ctx context.Context, p deriveParams, in GenerateInput) (GenerateOutput, error) {
	start := time.Now()

	base, err := in.Record()
	if err != nil {
		metrics.RecordGenerationMetrics(p.kind, "invalid", time.Since(start).Seconds(), 0, false)
		return GenerateOutput{}, err
	}

	ragContext, err := p.search(ctx, base)
	if err != nil {
		// Retrieval is best-effort: a degraded store means less context,
		// not a failed request.
		p.logger.Warn("Retrieval failed, generating without context",
			zap.String("kind", p.kind),
			zap.String("member_id", in.MemberID),
			zap.Error(err),
		)
		ragContext = nil
	}

	res, err := p.novelty.Run(ctx,
		func(ctx context.Context) (string, qa.Level, error) {
			return p.gen.Derive(ctx, base, ragContext)
		},
		func(ctx context.Context, question string) (float64, error) {
			return p.store.SearchSimilarQuestions(ctx, question, in.MemberID)
		},
	)
	if err != nil {
		metrics.RecordGenerationMetrics(p.kind, "error", time.Since(start).Seconds(), 0, false)
		return GenerateOutput{}, err
	}

	if err := p.store.Store(ctx, base); err != nil {
		metrics.RecordGenerationMetrics(p.kind, "store_error", time.Since(start).Seconds(), res.Regenerations, res.SimilarityWarning)
		return GenerateOutput{}, err
	}

	metrics.RecordGenerationMetrics(p.kind, "ok", time.Since(start).Seconds(), res.Regenerations, res.SimilarityWarning)
	return GenerateOutput{
		MemberID: in.MemberID,
		Content:  res.Question,
		Level:    res.Level.Int(),
		Priority: p.priority,
		Metadata: map[string]any{
			"rag_count":          len(ragContext),
			"member_id":          in.MemberID,
			"family_id":          in.FamilyID,
			"regeneration_count": res.Regenerations,
			"similarity_warning": res.SimilarityWarning,
		},
	}, nil
}
