package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/llm"
	"github.com/onsikgu/famiq/internal/prompts"
)

type scriptedChat struct {
	response string
	err      error
	lastReq  llm.Request
}

func (s *scriptedChat) Complete(_ context.Context, req llm.Request) (string, error) {
	s.lastReq = req
	return s.response, s.err
}

func (s *scriptedChat) DefaultModel() string { return "gpt-4o-mini" }

func testRegistry(t *testing.T) *prompts.Registry {
	t.Helper()
	dir := t.TempDir()
	content := `
name: answer_analysis
system: "답변 분석기"
user: "질문: {question}\n카테고리: {category}\n답변: {answer}"
`
	if err := os.WriteFile(filepath.Join(dir, "answer_analysis.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	r := prompts.NewRegistry(zap.NewNop())
	if err := r.LoadDirectory(dir); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	return r
}

func newAnalyzer(t *testing.T, chat *scriptedChat) *Analyzer {
	t.Helper()
	a, err := New(chat, testRegistry(t), "answer_analysis", "", zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.now = func() time.Time { return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) }
	return a
}

func TestAnalyzeParsesAndSanitizes(t *testing.T) {
	chat := &scriptedChat{response: `{
		"summary": "친구들과 즐거운 시간을 보냈다는 답변",
		"categories": ["일상", "친구"],
		"keywords": ["놀이", "친구"],
		"scores": {
			"sentiment": 1.7,
			"emotion": {"joy": 0.856, "sadness": -0.2, "anger": 0, "fear": 0, "neutral": 0.1},
			"relevance_to_question": 0.924,
			"relevance_to_category": 0.5,
			"toxicity": -0.3,
			"length": 42
		}
	}`}
	a := newAnalyzer(t, chat)

	res, err := a.Analyze(context.Background(), Input{
		UserID:           "M1",
		QuestionContent:  "오늘 뭐 했어?",
		AnswerText:       "친구들과 놀았어요",
		QuestionCategory: "일상",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !res.ParseOk {
		t.Fatal("expected parseOk true")
	}
	if res.Scores.Sentiment != 1.0 {
		t.Errorf("sentiment not clamped: %v", res.Scores.Sentiment)
	}
	if res.Scores.Emotion.Joy != 0.86 {
		t.Errorf("joy not rounded: %v", res.Scores.Emotion.Joy)
	}
	if res.Scores.Emotion.Sadness != 0 {
		t.Errorf("sadness not clamped: %v", res.Scores.Emotion.Sadness)
	}
	if res.Scores.RelevanceToQuestion != 0.92 {
		t.Errorf("relevance not rounded: %v", res.Scores.RelevanceToQuestion)
	}
	if res.Scores.Toxicity != 0 {
		t.Errorf("toxicity not clamped: %v", res.Scores.Toxicity)
	}
	if res.Version != "ans-v1.0:gpt-4o-mini:2026-08-24" {
		t.Errorf("unexpected version %q", res.Version)
	}

	if chat.lastReq.Temperature != 0.2 || !chat.lastReq.JSONResponse {
		t.Errorf("unexpected request settings %+v", chat.lastReq)
	}
	user := chat.lastReq.Messages[len(chat.lastReq.Messages)-1].Content
	if !strings.Contains(user, "오늘 뭐 했어?") || !strings.Contains(user, "일상") {
		t.Errorf("prompt missing question context: %q", user)
	}
}

func TestAnalyzeSalvagesWrappedJSON(t *testing.T) {
	chat := &scriptedChat{response: "분석 결과입니다:\n{\"summary\": \"요약\", \"scores\": {\"sentiment\": 0.5}}\n이상입니다."}
	a := newAnalyzer(t, chat)

	res, err := a.Analyze(context.Background(), Input{AnswerText: "답변"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.ParseOk || res.Summary != "요약" {
		t.Errorf("salvage failed: %+v", res)
	}
}

func TestAnalyzeParseFailureDegrades(t *testing.T) {
	chat := &scriptedChat{response: "JSON이 아닌 텍스트"}
	a := newAnalyzer(t, chat)

	res, err := a.Analyze(context.Background(), Input{AnswerText: "답변"})
	if err != nil {
		t.Fatalf("parse failure must not error: %v", err)
	}
	if res.ParseOk {
		t.Error("expected parseOk false")
	}
	if res.Categories == nil || res.Keywords == nil {
		t.Error("defaults must carry empty slices, not nil")
	}
	if res.RawText != "JSON이 아닌 텍스트" {
		t.Errorf("raw text not retained: %q", res.RawText)
	}
	if res.Version == "" {
		t.Error("version must be stamped even on parse failure")
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	chat := &scriptedChat{err: errors.New("timeout")}
	a := newAnalyzer(t, chat)

	if _, err := a.Analyze(context.Background(), Input{AnswerText: "x"}); !errors.Is(err, errs.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSanitizeBounds(t *testing.T) {
	s := Sanitize(Scores{
		Sentiment:           -3,
		Emotion:             EmotionScores{Joy: 2, Sadness: 0.555, Anger: -1, Fear: 0.004, Neutral: 1},
		RelevanceToQuestion: 1.01,
		RelevanceToCategory: -0.5,
		Toxicity:            0.999,
		Length:              -10,
	})
	if s.Sentiment != -1 {
		t.Errorf("sentiment: %v", s.Sentiment)
	}
	if s.Emotion.Joy != 1 || s.Emotion.Sadness != 0.56 || s.Emotion.Anger != 0 || s.Emotion.Fear != 0 || s.Emotion.Neutral != 1 {
		t.Errorf("emotion: %+v", s.Emotion)
	}
	if s.RelevanceToQuestion != 1 || s.RelevanceToCategory != 0 {
		t.Errorf("relevance: %v %v", s.RelevanceToQuestion, s.RelevanceToCategory)
	}
	if s.Toxicity != 1.0 {
		t.Errorf("toxicity: %v", s.Toxicity)
	}
	if s.Length != 0 {
		t.Errorf("length: %v", s.Length)
	}
}
