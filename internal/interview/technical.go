package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prepd-app/prepd/internal/vectorstore"
)

// QuestionRetriever supplies similar prior questions from the knowledge base.
// Satisfied by rag.Service. Retrieval failure is a degradation, not an error:
// the agent proceeds with an empty context list.
type QuestionRetriever interface {
	RetrieveSimilarQuestions(ctx context.Context, jd string, topK int) ([]vectorstore.SearchResult, error)
}

const techSystemPrompt = `You are a senior technical interviewer with over ten years of engineering management experience.

Evaluation focus:
- Technical depth: understanding of core technical principles
- Problem solving: ability to analyze problems and design solutions
- System design: architectural thinking and technology choices
- Code quality: awareness of conventions and best practices

Questioning style:
- Start from fundamentals, then drill into underlying principles
- Probe implementation details and edge cases
- Ground questions in realistic scenarios

Tone: professional, rigorous, deep.`

const techAnalysisPrompt = `Evaluate the quality of the candidate's answer.

Dimensions:
1. Technical accuracy: is the answer correct
2. Depth and breadth: how thoroughly the question is understood and covered
3. Structure: is the answer clear and logically organized
4. Practical experience: is it backed by real project work

Output format (JSON):
{
  "score": 8.5,
  "strengths": ["deep technical understanding", "hands-on experience"],
  "improvements": ["could elaborate on specifics"],
  "summary": "The candidate has a solid grasp of the technology..."
}`

// TechnicalAgent asks technology questions seeded with similar prior
// questions retrieved from the knowledge base.
type TechnicalAgent struct {
	completer Completer
	retriever QuestionRetriever
	topK      int
}

// NewTechnicalAgent creates the technical persona. retriever may be nil, in
// which case questions are generated without knowledge-base context.
func NewTechnicalAgent(completer Completer, retriever QuestionRetriever, topK int) *TechnicalAgent {
	if topK <= 0 {
		topK = 3
	}
	return &TechnicalAgent{completer: completer, retriever: retriever, topK: topK}
}

func (a *TechnicalAgent) Role() Role       { return RoleTechnical }
func (a *TechnicalAgent) RoleName() string { return "Technical Interviewer" }

func (a *TechnicalAgent) GenerateQuestion(ctx context.Context, ic *Context) (string, error) {
	var refQuestions []string
	if a.retriever != nil {
		results, err := a.retriever.RetrieveSimilarQuestions(ctx, ic.JobDescription, a.topK)
		if err != nil {
			slog.Debug("knowledge retrieval unavailable, generating without context", "error", err)
		} else {
			for _, r := range results {
				refQuestions = append(refQuestions, r.Content)
			}
		}
	}

	reference := "(none)"
	if len(refQuestions) > 0 {
		reference = "- " + strings.Join(refQuestions, "\n- ")
	}

	user := fmt.Sprintf(`Based on the job description and the candidate's resume, generate one technical interview question.

Job description: %s

Resume: %s

Conversation so far:
%s

Reference question bank:
%s

Requirements:
1. Output only the question itself, with no preamble, evaluation criteria, or internal notes
2. Use plain text only; no markdown (no **bold**, no # headings)
3. Ask in the natural voice of an interviewer, concise and direct`,
		ic.JobDescription, ic.Resume, formatHistory(ic.History, 6), reference)

	question, err := a.completer.Complete(ctx, techSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("generating technical question: %w", err)
	}
	return strings.TrimSpace(question), nil
}

func (a *TechnicalAgent) AnalyzeAnswer(ctx context.Context, question, answer string, ic *Context) (AnalysisResult, error) {
	user := fmt.Sprintf("Question: %s\n\nCandidate's answer: %s\n\nEvaluate the answer quality and output the JSON result.", question, answer)

	response, err := a.completer.CompleteAnalysis(ctx, techAnalysisPrompt, user)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyzing answer: %w", err)
	}

	return parseAnalysis(response, AnalysisResult{
		Score:        7.0,
		Strengths:    []string{"complete answer"},
		Improvements: []string{"could go into more detail"},
		Summary:      "The answer covers the essentials with room to go deeper.",
	}), nil
}

func (a *TechnicalAgent) ShouldFollowUp(answer string, analysis AnalysisResult) bool {
	return len(answer) < 100 || analysis.Score < 7.0
}
