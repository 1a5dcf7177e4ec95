package interview

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrNoPendingTurn is returned by ProcessAnswer when there is no turn
// awaiting an answer. This is a contract violation by the caller, not a
// recoverable condition.
var ErrNoPendingTurn = errors.New("no pending turn awaiting an answer")

// Strategy selects which agent asks the next question.
type Strategy int

const (
	// FixedOrder rotates through the agents round-robin.
	FixedOrder Strategy = iota
	// Random picks a random agent each turn.
	Random
	// PhaseBased maps the interview phase to its primary role.
	PhaseBased
)

// phaseRoles maps phases to the role that conducts them under PhaseBased
// rotation.
var phaseRoles = map[Phase]Role{
	PhaseWarmUp:     RoleHR,
	PhaseTechnical:  RoleTechnical,
	PhaseBehavioral: RoleHR,
	PhaseBusiness:   RoleBusiness,
	PhaseQuestions:  RoleHR,
	PhaseCompleted:  RoleHR,
}

// Scheduler holds the agent set and rotation policy, and is the single
// choke point for creating turns and attaching answers.
type Scheduler struct {
	agents   []Agent
	current  int
	strategy Strategy
}

// NewScheduler creates a Scheduler over the given agents. The agent slice
// must be non-empty; the first agent starts as current.
func NewScheduler(agents []Agent, strategy Strategy) (*Scheduler, error) {
	if len(agents) == 0 {
		return nil, errors.New("scheduler requires at least one agent")
	}
	return &Scheduler{agents: agents, strategy: strategy}, nil
}

// CurrentAgent returns the agent that will ask the next question.
func (s *Scheduler) CurrentAgent() Agent {
	return s.agents[s.current]
}

// NextAgent advances the rotation and returns the newly selected agent.
// Under PhaseBased rotation selection happens in ExecuteTurn instead and
// NextAgent leaves the current agent unchanged.
func (s *Scheduler) NextAgent() Agent {
	switch s.strategy {
	case FixedOrder:
		s.current = (s.current + 1) % len(s.agents)
	case Random:
		s.current = rand.IntN(len(s.agents))
	case PhaseBased:
		// Driven by SelectByPhase.
	}
	return s.CurrentAgent()
}

// SelectByPhase switches the current agent to the one owning the given
// phase. Falls back to the first agent when no agent has the target role.
func (s *Scheduler) SelectByPhase(phase Phase) Agent {
	target := phaseRoles[phase]
	s.current = 0
	for i, agent := range s.agents {
		if agent.Role() == target {
			s.current = i
			break
		}
	}
	return s.CurrentAgent()
}

// ExecuteTurn generates the next question and appends an unanswered turn to
// the context's history. This is the only place turns are created.
func (s *Scheduler) ExecuteTurn(ctx context.Context, ic *Context) (ConversationTurn, error) {
	if s.strategy == PhaseBased {
		s.SelectByPhase(ic.CurrentPhase)
	}
	agent := s.CurrentAgent()

	question, err := agent.GenerateQuestion(ctx, ic)
	if err != nil {
		return ConversationTurn{}, fmt.Errorf("agent %s: %w", agent.Role(), err)
	}

	turn := ConversationTurn{
		Role:     agent.Role(),
		RoleName: agent.RoleName(),
		Question: question,
	}
	ic.History = append(ic.History, turn)
	return turn, nil
}

// ProcessAnswer attaches the answer to the most recent pending turn, has the
// active agent analyze it, and attaches the analysis. This is the only place
// a turn transitions from pending to analyzed.
func (s *Scheduler) ProcessAnswer(ctx context.Context, ic *Context, answer string) (AnalysisResult, error) {
	if len(ic.History) == 0 {
		return AnalysisResult{}, ErrNoPendingTurn
	}
	last := &ic.History[len(ic.History)-1]
	if last.Answered {
		return AnalysisResult{}, ErrNoPendingTurn
	}

	last.Answer = answer
	last.Answered = true

	agent := s.CurrentAgent()
	analysis, err := agent.AnalyzeAnswer(ctx, last.Question, answer, ic)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("agent %s: %w", agent.Role(), err)
	}

	last.Analysis = &analysis
	return analysis, nil
}

// ShouldFollowUp asks the active agent whether the answer deserves a probe.
func (s *Scheduler) ShouldFollowUp(answer string, analysis AnalysisResult) bool {
	return s.CurrentAgent().ShouldFollowUp(answer, analysis)
}
