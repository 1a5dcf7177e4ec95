package interview

import (
	"context"
	"fmt"
	"strings"
)

const businessSystemPrompt = `You are a business unit lead assessing whether the candidate can ramp up quickly and deliver business value.

Evaluation focus:
- Business understanding: depth of industry and domain knowledge
- Execution: turning ideas into workable plans
- Results orientation: concrete outcomes of past projects
- Learning ability: speed of picking up new domains

Questioning style:
- Start from real business scenarios
- Focus on how problems get solved
- Probe data-driven decision making

Tone: pragmatic, results-driven, detail-oriented.`

const businessAnalysisPrompt = `Evaluate the quality of the candidate's answer.

Dimensions:
1. Business insight: grasp of what the business actually needs
2. Methodology: a systematic approach to the problem
3. Data literacy: are judgments backed by data
4. Outcomes: quantifiable results delivered

Output format (JSON):
{
  "score": 8.2,
  "strengths": ["thorough business understanding", "data-backed reasoning"],
  "improvements": ["could quantify the impact"],
  "summary": "The candidate shows strong business execution..."
}`

// BusinessAgent asks business-understanding questions.
type BusinessAgent struct {
	completer Completer
}

// NewBusinessAgent creates the business persona.
func NewBusinessAgent(completer Completer) *BusinessAgent {
	return &BusinessAgent{completer: completer}
}

func (a *BusinessAgent) Role() Role       { return RoleBusiness }
func (a *BusinessAgent) RoleName() string { return "Business Interviewer" }

func (a *BusinessAgent) GenerateQuestion(ctx context.Context, ic *Context) (string, error) {
	user := fmt.Sprintf(`Based on the job description and the candidate's resume, generate one business-understanding question.

Job description: %s

Resume: %s

Conversation so far:
%s

Requirements:
1. Output only the question itself, with no preamble, evaluation criteria, or internal notes
2. Use plain text only; no markdown (no **bold**, no # headings)
3. Ask in the natural voice of an interviewer, concise and conversational, as in a real interview`,
		ic.JobDescription, ic.Resume, formatHistory(ic.History, 6))

	question, err := a.completer.Complete(ctx, businessSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("generating business question: %w", err)
	}
	return strings.TrimSpace(question), nil
}

func (a *BusinessAgent) AnalyzeAnswer(ctx context.Context, question, answer string, ic *Context) (AnalysisResult, error) {
	user := fmt.Sprintf("Question: %s\n\nCandidate's answer: %s\n\nEvaluate the answer quality and output the JSON result.", question, answer)

	response, err := a.completer.CompleteAnalysis(ctx, businessAnalysisPrompt, user)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyzing answer: %w", err)
	}

	return parseAnalysis(response, AnalysisResult{
		Score:        7.5,
		Strengths:    []string{"clear reasoning"},
		Improvements: []string{"could focus more on business metrics"},
		Summary:      "The candidate has a working grasp of the business.",
	}), nil
}

func (a *BusinessAgent) ShouldFollowUp(answer string, analysis AnalysisResult) bool {
	return len(answer) < 120 || analysis.Score < 7.5
}
