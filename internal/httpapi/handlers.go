package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/analysis"
	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/qa"
	"github.com/onsikgu/famiq/internal/usecase"
)

// Generator is a question generation use case.
type Generator interface {
	Execute(ctx context.Context, in usecase.GenerateInput) (usecase.GenerateOutput, error)
}

// RecentGenerator is the family-recent use case.
type RecentGenerator interface {
	Execute(ctx context.Context, in usecase.RecentInput) (usecase.GenerateOutput, error)
}

// Summarizer is the family summary use case.
type Summarizer interface {
	Execute(ctx context.Context, familyID string, period qa.Period) (string, error)
}

// MemberDeleter is the member lifecycle use case.
type MemberDeleter interface {
	Execute(ctx context.Context, memberID string) (int, error)
}

// AnswerAnalyzer is the answer analysis pipeline.
type AnswerAnalyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (analysis.Result, error)
}

// Handler exposes the service API under /api/v1.
type Handler struct {
	personal Generator
	family   Generator
	recent   RecentGenerator
	summary  Summarizer
	members  MemberDeleter
	analyzer AnswerAnalyzer
	logger   *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(personal, family Generator, recent RecentGenerator, summary Summarizer, members MemberDeleter, analyzer AnswerAnalyzer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		personal: personal,
		family:   family,
		recent:   recent,
		summary:  summary,
		members:  members,
		analyzer: analyzer,
		logger:   logger,
	}
}

// RegisterRoutes attaches all API endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.handleRoot)
	mux.HandleFunc("/health", h.handleSimpleHealth)
	mux.HandleFunc("/api/v1/questions/generate/personal", h.handleGenerate(h.personal))
	mux.HandleFunc("/api/v1/questions/generate/family", h.handleGenerate(h.family))
	mux.HandleFunc("/api/v1/questions/generate/family-recent", h.handleFamilyRecent)
	mux.HandleFunc("/api/v1/summary", h.handleSummary)
	mux.HandleFunc("/api/v1/members/delete", h.handleMemberDelete)
	mux.HandleFunc("/api/v1/analysis/answer", h.handleAnalysis)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "famiq",
		"status":  "running",
	})
}

func (h *Handler) handleSimpleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleGenerate(gen Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid request body")
			return
		}
		in, err := req.toInput()
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		out, err := gen.Execute(r.Context(), in)
		if err != nil {
			h.writeUseCaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGenerateResponse(out))
	}
}

func (h *Handler) handleFamilyRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req recentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out, err := h.recent.Execute(r.Context(), in)
	if err != nil {
		h.writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerateResponse(out))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	familyID := r.URL.Query().Get("familyId")
	if familyID == "" {
		writeError(w, http.StatusUnprocessableEntity, "familyId is required")
		return
	}
	period, err := qa.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	headline, err := h.summary.Execute(r.Context(), familyID, period)
	if err != nil {
		h.writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Context: headline})
}

func (h *Handler) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusUnprocessableEntity, "memberId is required")
		return
	}

	count, err := h.members.Execute(r.Context(), req.MemberID)
	if err != nil {
		h.writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{DeletedCount: count})
}

func (h *Handler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.AnswerText == "" {
		writeError(w, http.StatusUnprocessableEntity, "answerText is required")
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), analysis.Input{
		UserID:           req.UserID,
		QuestionContent:  req.QuestionContent,
		AnswerText:       req.AnswerText,
		QuestionCategory: req.QuestionCategory,
	})
	if err != nil {
		h.writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeUseCaseError maps error kinds to status codes. Internal traces are
// logged, never returned.
func (h *Handler) writeUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		h.logger.Warn("Request refused", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrContract):
		h.logger.Error("Generation contract failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "question generation failed")
	case errors.Is(err, errs.ErrUpstream), errors.Is(err, errs.ErrPersistence):
		h.logger.Error("Upstream capability failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.logger.Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorResponse{Detail: detail})
}
