package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/metrics"
	"github.com/onsikgu/famiq/internal/novelty"
	"github.com/onsikgu/famiq/internal/qa"
)

// fallbackRoleLabel is used when neither the request nor the family history
// names the target's role.
const fallbackRoleLabel = "멤버"

// FamilyRecent generates a question for a target member from the family's
// recent exchanges, with no base Q/A. The result is a prompt for the target,
// not a recorded exchange, so nothing is persisted.
type FamilyRecent struct {
	store          VectorStore
	gen            TargetGenerator
	novelty        *novelty.Controller
	limitPerMember int
	logger         *zap.Logger
}

// NewFamilyRecent wires the family-recent generation path.
func NewFamilyRecent(store VectorStore, gen TargetGenerator, ctrl *novelty.Controller, limitPerMember int, logger *zap.Logger) *FamilyRecent {
	if limitPerMember <= 0 {
		limitPerMember = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyRecent{store: store, gen: gen, novelty: ctrl, limitPerMember: limitPerMember, logger: logger}
}

// Execute gathers per-member recent windows and generates for the target.
func (u *FamilyRecent) Execute(ctx context.Context, in RecentInput) (GenerateOutput, error) {
	start := time.Now()

	recent, err := u.store.RecentByFamily(ctx, in.FamilyID, u.limitPerMember)
	if err != nil {
		u.logger.Warn("Recent-context retrieval failed, generating without context",
			zap.String("family_id", in.FamilyID),
			zap.Error(err),
		)
		recent = nil
	}

	roleLabel := resolveRoleLabel(recent, in.TargetMemberID, in.TargetRoleLabel)

	res, err := u.novelty.Run(ctx,
		func(ctx context.Context) (string, qa.Level, error) {
			return u.gen.GenerateForTarget(ctx, in.TargetMemberID, roleLabel, recent)
		},
		func(ctx context.Context, question string) (float64, error) {
			return u.store.SearchSimilarQuestions(ctx, question, in.TargetMemberID)
		},
	)
	if err != nil {
		metrics.RecordGenerationMetrics("family_recent", "error", time.Since(start).Seconds(), 0, false)
		return GenerateOutput{}, err
	}

	metrics.RecordGenerationMetrics("family_recent", "ok", time.Since(start).Seconds(), res.Regenerations, res.SimilarityWarning)
	return GenerateOutput{
		MemberID: in.TargetMemberID,
		Content:  res.Question,
		Level:    res.Level.Int(),
		Priority: PriorityFamilyRecent,
		Metadata: map[string]any{
			"context_count":      len(recent),
			"member_id":          in.TargetMemberID,
			"family_id":          in.FamilyID,
			"target_role":        roleLabel,
			"regeneration_count": res.Regenerations,
			"similarity_warning": res.SimilarityWarning,
		},
	}, nil
}

// resolveRoleLabel prefers the role recorded in the target's own history,
// then the request value, then the generic fallback.
func resolveRoleLabel(recent []qa.Record, targetMemberID, requested string) string {
	for _, rec := range recent {
		if rec.MemberID == targetMemberID && rec.RoleLabel != "" {
			return rec.RoleLabel
		}
	}
	if requested != "" {
		return requested
	}
	return fallbackRoleLabel
}
