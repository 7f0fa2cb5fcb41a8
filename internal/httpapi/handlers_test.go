package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/analysis"
	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/qa"
	"github.com/onsikgu/famiq/internal/usecase"
)

type stubGenerator struct {
	out  usecase.GenerateOutput
	err  error
	last usecase.GenerateInput
}

func (s *stubGenerator) Execute(_ context.Context, in usecase.GenerateInput) (usecase.GenerateOutput, error) {
	s.last = in
	return s.out, s.err
}

type stubRecent struct {
	out usecase.GenerateOutput
	err error
}

func (s *stubRecent) Execute(_ context.Context, _ usecase.RecentInput) (usecase.GenerateOutput, error) {
	return s.out, s.err
}

type stubSummary struct {
	headline   string
	err        error
	lastPeriod qa.Period
}

func (s *stubSummary) Execute(_ context.Context, _ string, period qa.Period) (string, error) {
	s.lastPeriod = period
	return s.headline, s.err
}

type stubDeleter struct {
	count int
	err   error
}

func (s *stubDeleter) Execute(_ context.Context, _ string) (int, error) {
	return s.count, s.err
}

type stubAnalyzer struct {
	res analysis.Result
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ analysis.Input) (analysis.Result, error) {
	return s.res, s.err
}

type deps struct {
	personal *stubGenerator
	family   *stubGenerator
	recent   *stubRecent
	summary  *stubSummary
	deleter  *stubDeleter
	analyzer *stubAnalyzer
}

func newTestMux(d deps) *http.ServeMux {
	if d.personal == nil {
		d.personal = &stubGenerator{}
	}
	if d.family == nil {
		d.family = &stubGenerator{}
	}
	if d.recent == nil {
		d.recent = &stubRecent{}
	}
	if d.summary == nil {
		d.summary = &stubSummary{headline: "요약"}
	}
	if d.deleter == nil {
		d.deleter = &stubDeleter{count: 1}
	}
	if d.analyzer == nil {
		d.analyzer = &stubAnalyzer{}
	}
	mux := http.NewServeMux()
	NewHandler(d.personal, d.family, d.recent, d.summary, d.deleter, d.analyzer, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func postJSON(mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const validGenerateBody = `{
	"familyId": "F1",
	"memberId": "M1",
	"roleLabel": "첫째 딸",
	"baseQuestion": "오늘 뭐 했어?",
	"baseAnswer": "친구들과 놀았어요",
	"answeredAt": "2026-01-20T14:30:00Z"
}`

func TestGeneratePersonal(t *testing.T) {
	personal := &stubGenerator{out: usecase.GenerateOutput{
		MemberID: "M1",
		Content:  "친구들과 어떤 놀이를 했나요?",
		Level:    2,
		Priority: 2,
		Metadata: map[string]any{"rag_count": 2, "regeneration_count": 0, "similarity_warning": false},
	}}
	mux := newTestMux(deps{personal: personal})

	rec := postJSON(mux, "/api/v1/questions/generate/personal", validGenerateBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp generateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MemberID != "M1" || resp.Priority != 2 || resp.Content == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Metadata["similarity_warning"] != false {
		t.Errorf("metadata must expose similarity_warning: %v", resp.Metadata)
	}
	if personal.last.MemberID != "M1" || personal.last.AnsweredAt.IsZero() {
		t.Errorf("input not mapped: %+v", personal.last)
	}
}

func TestGenerateMalformedBody(t *testing.T) {
	mux := newTestMux(deps{})

	cases := []string{
		`{not json`,
		`{"familyId": "F1"}`,
		`{"familyId": "F1", "memberId": "M1", "baseQuestion": "q", "answeredAt": "yesterday"}`,
	}
	for _, body := range cases {
		rec := postJSON(mux, "/api/v1/questions/generate/personal", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("body %q: expected 422, got %d", body, rec.Code)
		}
		var er errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&er); err != nil || er.Detail == "" {
			t.Errorf("error body must carry detail: %v %v", er, err)
		}
	}
}

func TestGenerateUpstreamFailureIs500(t *testing.T) {
	personal := &stubGenerator{err: fmt.Errorf("%w: llm down", errs.ErrUpstream)}
	mux := newTestMux(deps{personal: personal})

	rec := postJSON(mux, "/api/v1/questions/generate/personal", validGenerateBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "llm down") {
		t.Error("internal detail must not leak to the client")
	}
}

func TestFamilyRecentRoute(t *testing.T) {
	recentStub := &stubRecent{out: usecase.GenerateOutput{
		MemberID: "M1",
		Content:  "질문",
		Level:    1,
		Priority: 4,
		Metadata: map[string]any{"context_count": 0},
	}}
	mux := newTestMux(deps{recent: recentStub})

	rec := postJSON(mux, "/api/v1/questions/generate/family-recent",
		`{"familyId": "F1", "targetMemberId": "M1", "targetRoleLabel": "아빠"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp generateResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Priority != 4 {
		t.Errorf("expected priority 4, got %d", resp.Priority)
	}

	rec = postJSON(mux, "/api/v1/questions/generate/family-recent", `{"familyId": "F1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing target: expected 422, got %d", rec.Code)
	}
}

func TestSummaryRoute(t *testing.T) {
	summary := &stubSummary{headline: "이번 주 가족 이야기"}
	mux := newTestMux(deps{summary: summary})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary?familyId=F1&period=weekly", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp summaryResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Context == "" {
		t.Error("context must be non-empty")
	}
	if summary.lastPeriod != qa.PeriodWeekly {
		t.Errorf("expected weekly period, got %v", summary.lastPeriod)
	}

	// Bad period is a semantic refusal, not a validation error.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/summary?familyId=F1&period=daily", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad period, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/summary?period=weekly", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for missing familyId, got %d", rec.Code)
	}
}

func TestMemberDeleteRoute(t *testing.T) {
	mux := newTestMux(deps{deleter: &stubDeleter{count: 4}})

	rec := postJSON(mux, "/api/v1/members/delete", `{"memberId": "M1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp deleteResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.DeletedCount != 4 {
		t.Errorf("expected deletedCount 4, got %d", resp.DeletedCount)
	}
}

func TestMemberDeleteNothingIs400(t *testing.T) {
	deleter := &stubDeleter{err: fmt.Errorf("%w: no records for member M_unknown", errs.ErrNotFound)}
	mux := newTestMux(deps{deleter: deleter})

	rec := postJSON(mux, "/api/v1/members/delete", `{"memberId": "M_unknown"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var er errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&er)
	if er.Detail == "" {
		t.Error("expected detail in error body")
	}
}

func TestAnalysisRoute(t *testing.T) {
	analyzer := &stubAnalyzer{res: analysis.Result{
		Summary: "요약",
		ParseOk: true,
		Version: "ans-v1.0:gpt-4o-mini:2026-08-24",
	}}
	mux := newTestMux(deps{analyzer: analyzer})

	rec := postJSON(mux, "/api/v1/analysis/answer",
		`{"userId": "M1", "questionContent": "오늘 뭐 했어?", "answerText": "놀았어요", "questionCategory": "일상"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res analysis.Result
	_ = json.NewDecoder(rec.Body).Decode(&res)
	if !res.ParseOk || res.Summary != "요약" {
		t.Errorf("unexpected response %+v", res)
	}

	rec = postJSON(mux, "/api/v1/analysis/answer", `{"userId": "M1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for missing answerText, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(deps{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/questions/generate/personal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestRootAndSimpleHealth(t *testing.T) {
	mux := newTestMux(deps{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("root: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	mux := newTestMux(deps{})
	wrapped := CORS([]string{"https://app.example.com"})(mux)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/members/delete", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("allowed origin not echoed: %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin must not be echoed")
	}
}
