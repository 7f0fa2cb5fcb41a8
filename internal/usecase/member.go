package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/errs"
)

// MemberDelete removes every record a member owns. Used at account deletion.
type MemberDelete struct {
	store  VectorStore
	logger *zap.Logger
}

// NewMemberDelete wires the member lifecycle path.
func NewMemberDelete(store VectorStore, logger *zap.Logger) *MemberDelete {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemberDelete{store: store, logger: logger}
}

// Execute deletes the member's records and returns the count. A count of
// zero is a caller-visible refusal, distinct from transport failure.
func (u *MemberDelete) Execute(ctx context.Context, memberID string) (int, error) {
	if memberID == "" {
		return 0, fmt.Errorf("%w: member id is required", errs.ErrInvalidInput)
	}

	count, err := u.store.DeleteByMember(ctx, memberID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		u.logger.Warn("Delete requested for member with no records",
			zap.String("member_id", memberID),
		)
		return 0, fmt.Errorf("%w: no records for member %s", errs.ErrNotFound, memberID)
	}

	u.logger.Info("Member records deleted",
		zap.String("member_id", memberID),
		zap.Int("count", count),
	)
	return count, nil
}
