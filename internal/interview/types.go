// Package interview implements the multi-agent interview core: three
// interviewer personas, a rotation scheduler, and the phase state machine
// that drives a session from warm-up to completion.
package interview

import "fmt"

// Role identifies which interviewer persona produced or should produce a turn.
type Role string

const (
	RoleTechnical Role = "technical"
	RoleHR        Role = "hr"
	RoleBusiness  Role = "business"
)

// Phase is the interview stage. Phases are strictly forward-moving.
type Phase int

const (
	PhaseWarmUp Phase = iota
	PhaseTechnical
	PhaseBehavioral
	PhaseBusiness
	PhaseQuestions
	PhaseCompleted
)

var phaseNames = map[Phase]string{
	PhaseWarmUp:     "warm_up",
	PhaseTechnical:  "technical",
	PhaseBehavioral: "behavioral",
	PhaseBusiness:   "business",
	PhaseQuestions:  "questions",
	PhaseCompleted:  "completed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase converts a stored phase name back to a Phase.
func ParsePhase(name string) (Phase, error) {
	for p, n := range phaseNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// PhaseConfig is the static per-phase question quota and owning role.
type PhaseConfig struct {
	MinQuestions int
	MaxQuestions int
	PrimaryRole  Role
}

// defaultPhaseConfigs covers every non-terminal phase.
func defaultPhaseConfigs() map[Phase]PhaseConfig {
	return map[Phase]PhaseConfig{
		PhaseWarmUp:     {MinQuestions: 1, MaxQuestions: 2, PrimaryRole: RoleHR},
		PhaseTechnical:  {MinQuestions: 3, MaxQuestions: 5, PrimaryRole: RoleTechnical},
		PhaseBehavioral: {MinQuestions: 2, MaxQuestions: 3, PrimaryRole: RoleHR},
		PhaseBusiness:   {MinQuestions: 2, MaxQuestions: 3, PrimaryRole: RoleBusiness},
		PhaseQuestions:  {MinQuestions: 1, MaxQuestions: 2, PrimaryRole: RoleHR},
	}
}

// AnalysisResult is an agent's structured evaluation of one answer.
// Immutable once attached to a ConversationTurn.
type AnalysisResult struct {
	Score        float64  `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

// ConversationTurn is one question/answer exchange. Answer and Analysis
// transition from empty to populated exactly once, in that order.
type ConversationTurn struct {
	Role     Role            `json:"role"`
	RoleName string          `json:"role_name"`
	Question string          `json:"question"`
	Answer   string          `json:"answer,omitempty"`
	Answered bool            `json:"answered"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// Context is the state of one active interview session. It is owned by a
// single logical caller at a time; the scheduler and state machine are its
// only mutators.
type Context struct {
	Resume         string
	JobDescription string
	History        []ConversationTurn
	CurrentPhase   Phase
}
