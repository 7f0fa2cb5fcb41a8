package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/onsikgu/famiq/internal/errs"
	"github.com/onsikgu/famiq/internal/llm"
	"github.com/onsikgu/famiq/internal/prompts"
)

// SummaryGenerator renders one period's exchanges into a single headline.
type SummaryGenerator struct {
	chat     ChatClient
	template *prompts.Template
	opts     Options
	logger   *zap.Logger
}

// NewSummary creates a summary generator bound to a named prompt template.
func NewSummary(chat ChatClient, registry *prompts.Registry, opts Options, logger *zap.Logger) (*SummaryGenerator, error) {
	tmpl, err := registry.Get(opts.Template)
	if err != nil {
		return nil, err
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryGenerator{chat: chat, template: tmpl, opts: opts, logger: logger}, nil
}

// Summarize produces a headline for the period. With zero answers the
// prompt instructs a graceful tone instead of fabricated events; the call
// still goes to the model.
func (g *SummaryGenerator) Summarize(ctx context.Context, qaTexts []string, periodLabel string, answerCount int) (string, error) {
	rendered := "(이 기간에 기록된 질문/답변이 없습니다)"
	if len(qaTexts) > 0 {
		lines := make([]string, 0, len(qaTexts))
		for i, text := range qaTexts {
			lines = append(lines, strconv.Itoa(i+1)+". "+text)
		}
		rendered = strings.Join(lines, "\n")
	}

	vars := map[string]string{
		"period_label": periodLabel,
		"answer_count": strconv.Itoa(answerCount),
		"qa_texts":     rendered,
	}

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
	})
	if err != nil {
		return "", fmt.Errorf("%w: summarize period: %v", errs.ErrUpstream, err)
	}

	headline := strings.TrimSpace(out)
	if headline == "" {
		return "", fmt.Errorf("%w: empty headline", errs.ErrContract)
	}
	return headline, nil
}
