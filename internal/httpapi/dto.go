package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/onsikgu/famiq/internal/usecase"
)

// generateRequest is the shared body for the personal and family paths.
type generateRequest struct {
	FamilyID     string `json:"familyId"`
	MemberID     string `json:"memberId"`
	RoleLabel    string `json:"roleLabel"`
	BaseQuestion string `json:"baseQuestion"`
	BaseAnswer   string `json:"baseAnswer"`
	AnsweredAt   string `json:"answeredAt"`
}

func (r generateRequest) toInput() (usecase.GenerateInput, error) {
	var missing []string
	if r.FamilyID == "" {
		missing = append(missing, "familyId")
	}
	if r.MemberID == "" {
		missing = append(missing, "memberId")
	}
	if r.BaseQuestion == "" {
		missing = append(missing, "baseQuestion")
	}
	if r.AnsweredAt == "" {
		missing = append(missing, "answeredAt")
	}
	if len(missing) > 0 {
		return usecase.GenerateInput{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	answeredAt, err := time.Parse(time.RFC3339, r.AnsweredAt)
	if err != nil {
		return usecase.GenerateInput{}, fmt.Errorf("answeredAt must be ISO-8601 with offset: %v", err)
	}

	return usecase.GenerateInput{
		FamilyID:     r.FamilyID,
		MemberID:     r.MemberID,
		RoleLabel:    r.RoleLabel,
		BaseQuestion: r.BaseQuestion,
		BaseAnswer:   r.BaseAnswer,
		AnsweredAt:   answeredAt,
	}, nil
}

type recentRequest struct {
	FamilyID        string   `json:"familyId"`
	TargetMemberID  string   `json:"targetMemberId"`
	TargetRoleLabel string   `json:"targetRoleLabel"`
	MemberIDs       []string `json:"memberIds"`
}

func (r recentRequest) toInput() (usecase.RecentInput, error) {
	var missing []string
	if r.FamilyID == "" {
		missing = append(missing, "familyId")
	}
	if r.TargetMemberID == "" {
		missing = append(missing, "targetMemberId")
	}
	if len(missing) > 0 {
		return usecase.RecentInput{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return usecase.RecentInput{
		FamilyID:        r.FamilyID,
		TargetMemberID:  r.TargetMemberID,
		TargetRoleLabel: r.TargetRoleLabel,
		MemberIDs:       r.MemberIDs,
	}, nil
}

type generateResponse struct {
	MemberID string         `json:"memberId"`
	Content  string         `json:"content"`
	Level    int            `json:"level"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

func toGenerateResponse(out usecase.GenerateOutput) generateResponse {
	return generateResponse{
		MemberID: out.MemberID,
		Content:  out.Content,
		Level:    out.Level,
		Priority: out.Priority,
		Metadata: out.Metadata,
	}
}

type summaryResponse struct {
	Context string `json:"context"`
}

type deleteRequest struct {
	MemberID string `json:"memberId"`
}

type deleteResponse struct {
	DeletedCount int `json:"deletedCount"`
}

type analysisRequest struct {
	UserID           string `json:"userId"`
	QuestionContent  string `json:"questionContent"`
	AnswerText       string `json:"answerText"`
	QuestionCategory string `json:"questionCategory"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
