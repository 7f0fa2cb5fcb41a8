package qa

import (
	"fmt"
	"strings"
	"time"
)

// Record is a single question/answer exchange attributed to one family
// member at one instant. Records are immutable after construction; newer
// exchanges supersede older ones by appending, never by update.
type Record struct {
	FamilyID   string
	MemberID   string
	RoleLabel  string
	Question   string
	Answer     string
	AnsweredAt time.Time
}

// NewRecord validates the identity fields and returns an immutable record.
func NewRecord(familyID, memberID, roleLabel, question, answer string, answeredAt time.Time) (Record, error) {
	if familyID == "" {
		return Record{}, fmt.Errorf("family id is required")
	}
	if memberID == "" {
		return Record{}, fmt.Errorf("member id is required")
	}
	if question == "" {
		return Record{}, fmt.Errorf("question is required")
	}
	if answeredAt.IsZero() {
		return Record{}, fmt.Errorf("answered_at is required")
	}
	return Record{
		FamilyID:   familyID,
		MemberID:   memberID,
		RoleLabel:  roleLabel,
		Question:   question,
		Answer:     answer,
		AnsweredAt: answeredAt,
	}, nil
}

// DateParts returns the year, month and day of the exchange.
func (r Record) DateParts() (year int, month int, day int) {
	return r.AnsweredAt.Year(), int(r.AnsweredAt.Month()), r.AnsweredAt.Day()
}

// EmbeddingText renders the canonical document body for a record. The same
// rendering is used for embedding, for in-prompt display and for the stored
// document, so the date tokens stay consistent with retrieval semantics.
func (r Record) EmbeddingText() string {
	y, m, d := r.DateParts()
	return fmt.Sprintf("%d년 %d월 %d일에 %s이(가) 받은 질문: %s\n답변: %s",
		y, m, d, r.RoleLabel, r.Question, r.Answer)
}

const (
	questionMarker = "받은 질문: "
	answerMarker   = "\n답변: "
)

// ParseEmbeddingText recovers the question and answer from a rendered
// document body. Bodies that do not carry the markers come back whole as
// the question with an empty answer.
func ParseEmbeddingText(body string) (question, answer string) {
	rest := body
	if idx := strings.Index(rest, questionMarker); idx >= 0 {
		rest = rest[idx+len(questionMarker):]
	}
	if idx := strings.Index(rest, answerMarker); idx >= 0 {
		return rest[:idx], rest[idx+len(answerMarker):]
	}
	return rest, ""
}
