package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/llm"
	"github.com/onsikgu/famiq/internal/metrics"
	"github.com/onsikgu/famiq/internal/prompts"
)

// ChatClient is the chat capability the analyzer runs on.
type ChatClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	DefaultModel() string
}

// Input is one answer to analyze.
type Input struct {
	UserID           string
	QuestionContent  string
	AnswerText       string
	QuestionCategory string
}

// Result is the structured analysis of one answer. ParseOk is false when
// the model output could not be parsed and the scores are defaults.
type Result struct {
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
	Scores     Scores   `json:"scores"`
	ParseOk    bool     `json:"parseOk"`
	Version    string   `json:"version"`
	RawText    string   `json:"-"`
}

// analysisTemperature keeps scoring runs near-deterministic.
const analysisTemperature = 0.2

// Analyzer turns free-text answers into structured scores.
type Analyzer struct {
	chat     ChatClient
	template *prompts.Template
	model    string
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an analyzer bound to a named prompt template.
func New(chat ChatClient, registry *prompts.Registry, templateName, model string, logger *zap.Logger) (*Analyzer, error) {
	tmpl, err := registry.Get(templateName)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = chat.DefaultModel()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{chat: chat, template: tmpl, model: model, logger: logger, now: time.Now}, nil
}

// version stamps results so stored analyses can be re-run when the schema
// or model changes.
func (a *Analyzer) version() string {
	return fmt.Sprintf("ans-v1.0:%s:%s", a.model, a.now().Format("2006-01-02"))
}

// Analyze calls the model and parses the structured result. Parse failures
// degrade to defaults with ParseOk=false; only transport failures error.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	vars := map[string]string{
		"question": in.QuestionContent,
		"answer":   in.AnswerText,
		"category": in.QuestionCategory,
	}

	messages := []llm.Message{}
	if sys := a.template.RenderSystem(vars); sys != "" {
		messages = append(messages, llm.Message{Role: "system", Content: sys})
	}
	messages = append(messages, llm.Message{Role: "user", Content: a.template.Render(vars)})

	raw, err := a.chat.Complete(ctx, llm.Request{
		Model:               a.model,
		Messages:            messages,
		MaxCompletionTokens: 800,
		Temperature:         analysisTemperature,
		JSONResponse:        true,
	})
	if err != nil {
		metrics.AnswerAnalyses.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: analyze answer: %v", errs.ErrUpstream, err)
	}

	res, ok := parseResult(raw)
	res.RawText = raw
	res.Version = a.version()
	if !ok {
		a.logger.Warn("Analysis output could not be parsed, returning defaults",
			zap.String("user_id", in.UserID),
		)
		metrics.AnswerAnalyses.WithLabelValues("parse_failed").Inc()
		return res, nil
	}

	metrics.AnswerAnalyses.WithLabelValues("ok").Inc()
	return res, nil
}

type rawResult struct {
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
	Scores     Scores   `json:"scores"`
}

// parseResult decodes the model output, salvaging the outermost brace slice
// when prose surrounds the JSON object.
func parseResult(raw string) (Result, bool) {
	defaults := Result{
		Categories: []string{},
		Keywords:   []string{},
		Scores:     Sanitize(Scores{}),
		ParseOk:    false,
	}

	candidate := raw
	var parsed rawResult
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return defaults, false
		}
		candidate = raw[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			return defaults, false
		}
	}

	res := Result{
		Summary:    parsed.Summary,
		Categories: parsed.Categories,
		Keywords:   parsed.Keywords,
		Scores:     Sanitize(parsed.Scores),
		ParseOk:    true,
	}
	if res.Categories == nil {
		res.Categories = []string{}
	}
	if res.Keywords == nil {
		res.Keywords = []string{}
	}
	return res, true
}
