package usecase

import (
	"fmt"
	"time"

	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/qa"
)

// Question priorities by generation path.
const (
	PriorityPersonal     = 2
	PriorityFamily       = 3
	PriorityFamilyRecent = 4
)

// GenerateInput carries a new exchange to derive a follow-up question from.
type GenerateInput struct {
	FamilyID     string
	MemberID     string
	RoleLabel    string
	BaseQuestion string
	BaseAnswer   string
	AnsweredAt   time.Time
}

// Record builds the domain entity from the input.
func (in GenerateInput) Record() (qa.Record, error) {
	rec, err := qa.NewRecord(in.FamilyID, in.MemberID, in.RoleLabel, in.BaseQuestion, in.BaseAnswer, in.AnsweredAt)
	if err != nil {
		return qa.Record{}, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	return rec, nil
}

// RecentInput requests a question for a target member with no base exchange.
type RecentInput struct {
	FamilyID        string
	TargetMemberID  string
	TargetRoleLabel string
	MemberIDs       []string
}

// GenerateOutput is the shared response shape for every generation path.
// Metadata always carries regeneration_count and similarity_warning; they
// are part of the contract operators tune the novelty threshold with.
type GenerateOutput struct {
	MemberID string
	Content  string
	Level    int
	Priority int
	Metadata map[string]any
}
