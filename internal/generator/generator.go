package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/llm"
	"github.com/onsikgu/famiq/internal/prompts"
	"github.com/onsikgu/famiq/internal/qa"
)

// ChatClient is the chat capability the generators run on.
type ChatClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	DefaultModel() string
}

// Options tune one generator instance.
type Options struct {
	Template    string
	MaxContext  int
	Model       string
	MaxTokens   int
	Temperature float64
}

// QuestionGenerator produces follow-up questions through the LLM under a
// strict JSON output contract.
type QuestionGenerator struct {
	chat     ChatClient
	template *prompts.Template
	opts     Options
	logger   *zap.Logger
}

// New creates a question generator bound to a named prompt template. The
// template must already be loaded; a missing one is a wiring failure.
func New(chat ChatClient, registry *prompts.Registry, opts Options, logger *zap.Logger) (*QuestionGenerator, error) {
	tmpl, err := registry.Get(opts.Template)
	if err != nil {
		return nil, err
	}
	if opts.MaxContext <= 0 {
		opts.MaxContext = 5
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionGenerator{chat: chat, template: tmpl, opts: opts, logger: logger}, nil
}

// Derive produces a new question that deepens base, grounded in the related
// prior exchanges.
func (g *QuestionGenerator) Derive(ctx context.Context, base qa.Record, ragContext []qa.Record) (string, qa.Level, error) {
	vars := map[string]string{
		"base_qa":    base.EmbeddingText(),
		"role_label": base.RoleLabel,
		"context":    FormatContext(ragContext, g.opts.MaxContext),
	}
	return g.generate(ctx, vars)
}

// GenerateForTarget produces a question addressed to the target role with no
// base exchange, grounded in recent family history.
func (g *QuestionGenerator) GenerateForTarget(ctx context.Context, targetMemberID, targetRoleLabel string, recent []qa.Record) (string, qa.Level, error) {
	vars := map[string]string{
		"target_member_id": targetMemberID,
		"target_role":      targetRoleLabel,
		"context":          FormatContext(recent, g.opts.MaxContext),
	}
	return g.generate(ctx, vars)
}

func (g *QuestionGenerator) generate(ctx context.Context, vars map[string]string) (string, qa.Level, error) {
	messages := []llm.Message{}
	if sys := g.template.RenderSystem(vars); sys != "" {
		messages = append(messages, llm.Message{Role: "system", Content: sys})
	}
	messages = append(messages, llm.Message{Role: "user", Content: g.template.Render(vars)})

	out, err := g.chat.Complete(ctx, llm.Request{
		Model:               g.opts.Model,
		Messages:            messages,
		MaxCompletionTokens: g.opts.MaxTokens,
		Temperature:         g.opts.Temperature,
		JSONResponse:        true,
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: generate question: %v", errs.ErrUpstream, err)
	}

	question, level, err := parseQuestionJSON(out)
	if err != nil {
		g.logger.Warn("Question generation violated output contract",
			zap.String("template", g.opts.Template),
			zap.Error(err),
		)
		return "", 0, err
	}
	return question, level, nil
}

// parseQuestionJSON enforces the generator output contract: a JSON object
// with a non-empty question and an integer level. The body may carry prose
// around the object, so parsing falls back to the outermost brace slice.
func parseQuestionJSON(raw string) (string, qa.Level, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		sliced, ok := braceSlice(raw)
		if !ok {
			return "", 0, fmt.Errorf("%w: no JSON object in output", errs.ErrContract)
		}
		if err := json.Unmarshal([]byte(sliced), &payload); err != nil {
			return "", 0, fmt.Errorf("%w: malformed JSON output: %v", errs.ErrContract, err)
		}
	}

	qv, ok := payload["question"]
	if !ok {
		return "", 0, fmt.Errorf("%w: missing question key", errs.ErrContract)
	}
	question, ok := qv.(string)
	if !ok || strings.TrimSpace(question) == "" {
		return "", 0, fmt.Errorf("%w: question is empty", errs.ErrContract)
	}

	if _, ok := payload["level"]; !ok {
		return "", 0, fmt.Errorf("%w: missing level key", errs.ErrContract)
	}
	return strings.TrimSpace(question), qa.LevelFromAny(payload["level"]), nil
}

// braceSlice extracts the outermost {...} from mixed output.
func braceSlice(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// FormatContext renders prior exchanges as a numbered list, truncated to
// max entries. The per-line rendering matches the embedding text so dates
// and roles read the same everywhere.
func FormatContext(records []qa.Record, max int) string {
	if len(records) == 0 {
		return "(이전 질문/답변 없음)"
	}
	if max > 0 && len(records) > max {
		records = records[:max]
	}
	lines := make([]string, 0, len(records))
	for i, rec := range records {
		lines = append(lines, strconv.Itoa(i+1)+". "+rec.EmbeddingText())
	}
	return strings.Join(lines, "\n")
}
