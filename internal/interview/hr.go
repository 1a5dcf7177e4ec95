package interview

import (
	"context"
	"fmt"
	"strings"
)

const hrSystemPrompt = `You are an experienced HR interviewer focused on soft skills and culture fit.

Evaluation focus:
- Communication: clarity and logical expression
- Teamwork: past collaboration and conflict handling
- Career planning: alignment of goals with the role
- Values: work attitude and professionalism

Questioning style:
- Use behavioral interviewing (STAR)
- Ask for concrete examples from past experience
- Draw out what the candidate actually thinks

Tone: warm, professional, guiding.`

const hrAnalysisPrompt = `Evaluate the quality of the candidate's answer.

Dimensions:
1. STAR structure: does it cover situation, task, action, result
2. Authenticity: how real and specific the example is
3. Communication: clarity and organization
4. Culture fit: alignment of values

Output format (JSON):
{
  "score": 8.0,
  "strengths": ["specific, credible example", "clear communication"],
  "improvements": ["could show more of the outcome"],
  "summary": "The candidate demonstrates solid collaboration skills..."
}`

// HRAgent asks behavioral questions and evaluates soft skills.
type HRAgent struct {
	completer Completer
}

// NewHRAgent creates the HR persona.
func NewHRAgent(completer Completer) *HRAgent {
	return &HRAgent{completer: completer}
}

func (a *HRAgent) Role() Role       { return RoleHR }
func (a *HRAgent) RoleName() string { return "HR Interviewer" }

func (a *HRAgent) GenerateQuestion(ctx context.Context, ic *Context) (string, error) {
	user := fmt.Sprintf(`Based on the job description and the candidate's resume, generate one behavioral interview question.

Job description: %s

Resume: %s

Conversation so far:
%s

Requirements:
1. Output only the question itself, with no preamble, evaluation criteria, STAR hints, or internal notes
2. Use plain text only; no markdown (no **bold**, no # headings)
3. Ask in the natural voice of an interviewer, concise and conversational, as in a real interview`,
		ic.JobDescription, ic.Resume, formatHistory(ic.History, 6))

	question, err := a.completer.Complete(ctx, hrSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("generating behavioral question: %w", err)
	}
	return strings.TrimSpace(question), nil
}

func (a *HRAgent) AnalyzeAnswer(ctx context.Context, question, answer string, ic *Context) (AnalysisResult, error) {
	user := fmt.Sprintf("Question: %s\n\nCandidate's answer: %s\n\nEvaluate the answer quality and output the JSON result.", question, answer)

	response, err := a.completer.CompleteAnalysis(ctx, hrAnalysisPrompt, user)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyzing answer: %w", err)
	}

	return parseAnalysis(response, AnalysisResult{
		Score:        7.5,
		Strengths:    []string{"credible example"},
		Improvements: []string{"could structure the story more"},
		Summary:      "The candidate shows adequate soft skills.",
	}), nil
}

func (a *HRAgent) ShouldFollowUp(answer string, analysis AnalysisResult) bool {
	return len(answer) < 150 || analysis.Score < 7.5
}
