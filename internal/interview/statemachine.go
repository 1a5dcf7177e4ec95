package interview

// advanceScore is the answer quality at which a phase may end early once its
// minimum question count is met.
const advanceScore = 8.0

// StateMachine tracks the interview phase and question counts, and decides
// phase advancement. It is pure transition logic with no side effects and is
// not safe for concurrent use; one session has one logical owner.
type StateMachine struct {
	phase          Phase
	phaseQuestions int
	totalQuestions int
	configs        map[Phase]PhaseConfig
}

// NewStateMachine starts a machine in WarmUp with the default phase quotas.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		phase:   PhaseWarmUp,
		configs: defaultPhaseConfigs(),
	}
}

// NewStateMachineWithConfigs starts a machine with custom quotas (used by tests).
func NewStateMachineWithConfigs(configs map[Phase]PhaseConfig) *StateMachine {
	return &StateMachine{
		phase:   PhaseWarmUp,
		configs: configs,
	}
}

// Phase returns the current phase.
func (m *StateMachine) Phase() Phase {
	return m.phase
}

// RecordQuestion increments both question counters. Reaching the phase's
// maximum forces an advance regardless of answer quality. The returned bool
// reports whether the phase changed.
func (m *StateMachine) RecordQuestion() (Phase, bool) {
	m.phaseQuestions++
	m.totalQuestions++

	cfg, ok := m.configs[m.phase]
	if !ok {
		return m.phase, false
	}
	if m.phaseQuestions >= cfg.MaxQuestions {
		return m.advancePhase()
	}
	return m.phase, false
}

// MaybeAdvance ends the phase early when the minimum question count is met
// and the answer scored at or above the advance threshold.
func (m *StateMachine) MaybeAdvance(analysis AnalysisResult) (Phase, bool) {
	cfg, ok := m.configs[m.phase]
	if !ok {
		return m.phase, false
	}
	if m.phaseQuestions >= cfg.MinQuestions && analysis.Score >= advanceScore {
		return m.advancePhase()
	}
	return m.phase, false
}

// advancePhase resets the per-phase counter and moves to the next phase in
// the fixed linear order. Completed is terminal.
func (m *StateMachine) advancePhase() (Phase, bool) {
	if m.phase == PhaseCompleted {
		return m.phase, false
	}
	m.phaseQuestions = 0
	m.phase++
	return m.phase, true
}

// PrimaryRole returns the role that owns the current phase. Completed maps
// to HR, matching the closing pleasantries of a real interview.
func (m *StateMachine) PrimaryRole() Role {
	if cfg, ok := m.configs[m.phase]; ok {
		return cfg.PrimaryRole
	}
	return RoleHR
}

// Progress is a point-in-time snapshot of the machine.
type Progress struct {
	CurrentPhase       Phase `json:"-"`
	PhaseName          string `json:"current_phase"`
	PhaseQuestionCount int    `json:"phase_question_count"`
	TotalQuestionCount int    `json:"total_question_count"`
	IsCompleted        bool   `json:"is_completed"`
}

// Progress reports the current phase and counters.
func (m *StateMachine) Progress() Progress {
	return Progress{
		CurrentPhase:       m.phase,
		PhaseName:          m.phase.String(),
		PhaseQuestionCount: m.phaseQuestions,
		TotalQuestionCount: m.totalQuestions,
		IsCompleted:        m.phase == PhaseCompleted,
	}
}
