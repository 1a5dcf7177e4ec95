package interview

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/prepd-app/prepd/internal/llm"
	"github.com/prepd-app/prepd/internal/reliability"
)

// Agent is the capability contract shared by the three interviewer personas.
type Agent interface {
	Role() Role
	RoleName() string

	// GenerateQuestion produces the next question for the candidate. The
	// result is untrusted model output; markdown-free text is requested at
	// the prompt level, never guaranteed.
	GenerateQuestion(ctx context.Context, ic *Context) (string, error)

	// AnalyzeAnswer evaluates a completed answer. A response that does not
	// parse as the expected JSON yields a role-flavored fallback result,
	// never an error.
	AnalyzeAnswer(ctx context.Context, question, answer string, ic *Context) (AnalysisResult, error)

	// ShouldFollowUp is a pure, local decision on answer length and score.
	ShouldFollowUp(answer string, analysis AnalysisResult) bool
}

// Completer is the narrowed text-generation dependency the agents consume.
// Implemented in production by Caller; tests substitute fakes. Question
// generation and answer analysis are separate calls because they may route
// to different models.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CompleteAnalysis(ctx context.Context, system, user string) (string, error)
}

// Caller sends prompts through the language model client, wrapped in retry
// and request deduplication.
type Caller struct {
	client        llm.Client
	retry         reliability.RetryPolicy
	dedup         *reliability.Deduplicator
	model         string
	analysisModel string
	temperature   float32
	maxTokens     int
}

// NewCaller wires a Caller. A zero retry policy is replaced with the default;
// an empty analysisModel falls back to model.
func NewCaller(client llm.Client, retry reliability.RetryPolicy, dedup *reliability.Deduplicator, model, analysisModel string, temperature float32, maxTokens int) *Caller {
	if retry.MaxRetries <= 0 {
		retry = reliability.DefaultRetryPolicy()
	}
	if dedup == nil {
		dedup = reliability.NewDeduplicator()
	}
	if analysisModel == "" {
		analysisModel = model
	}
	return &Caller{
		client:        client,
		retry:         retry,
		dedup:         dedup,
		model:         model,
		analysisModel: analysisModel,
		temperature:   temperature,
		maxTokens:     maxTokens,
	}
}

// Complete performs one deduplicated, retried chat completion with the
// question-generation model.
func (c *Caller) Complete(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, c.model, system, user)
}

// CompleteAnalysis is Complete routed to the analysis model.
func (c *Caller) CompleteAnalysis(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, c.analysisModel, system, user)
}

func (c *Caller) complete(ctx context.Context, model, system, user string) (string, error) {
	key := reliability.Key(model, system, user)
	return c.dedup.Do(ctx, key, func(ctx context.Context) (string, error) {
		return c.retry.Execute(ctx, func(ctx context.Context) (string, error) {
			return c.client.ChatCompletion(ctx, llm.Request{
				Model: model,
				Messages: []llm.Message{
					{Role: "system", Content: system},
					{Role: "user", Content: user},
				},
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
			})
		})
	})
}

// parseAnalysis extracts and unmarshals the JSON analysis from a model
// response. Models routinely wrap JSON in prose or code fences, so the first
// balanced object in the text is tried when the whole response fails to
// parse. On any failure the role's fallback is returned.
func parseAnalysis(raw string, fallback AnalysisResult) AnalysisResult {
	var result AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err == nil && result.Score > 0 {
		return result
	}

	if obj := extractJSONObject(raw); obj != "" {
		if err := json.Unmarshal([]byte(obj), &result); err == nil && result.Score > 0 {
			return result
		}
	}

	slog.Warn("analysis response did not match schema, using fallback", "response_len", len(raw))
	return fallback
}

// extractJSONObject returns the first balanced {...} block in text, or "".
// Brace counting ignores string contents, which is good enough for model
// output that embeds a single JSON object in prose.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// formatHistory renders the most recent turns for inclusion in a prompt,
// keeping the model's context focused on the live conversation.
func formatHistory(history []ConversationTurn, limit int) string {
	if len(history) == 0 {
		return "(none)"
	}
	start := 0
	if len(history) > limit {
		start = len(history) - limit
	}
	var sb strings.Builder
	for _, turn := range history[start:] {
		sb.WriteString(turn.RoleName)
		sb.WriteString(": ")
		sb.WriteString(turn.Question)
		sb.WriteString("\n")
		if turn.Answered {
			sb.WriteString("Candidate: ")
			sb.WriteString(turn.Answer)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
