package interview

import "testing"

func TestNewStateMachine_StartsInWarmUp(t *testing.T) {
	m := NewStateMachine()
	if m.Phase() != PhaseWarmUp {
		t.Errorf("phase = %v, want %v", m.Phase(), PhaseWarmUp)
	}
	if m.PrimaryRole() != RoleHR {
		t.Errorf("primary role = %v, want %v", m.PrimaryRole(), RoleHR)
	}
}

func TestRecordQuestion_ForcedAdvanceAtMaximum(t *testing.T) {
	m := NewStateMachine()

	// WarmUp allows at most 2 questions.
	phase, advanced := m.RecordQuestion()
	if advanced {
		t.Fatal("first question must not advance")
	}
	if phase != PhaseWarmUp {
		t.Errorf("phase = %v, want %v", phase, PhaseWarmUp)
	}

	phase, advanced = m.RecordQuestion()
	if !advanced {
		t.Fatal("second question must hit the maximum and advance")
	}
	if phase != PhaseTechnical {
		t.Errorf("phase = %v, want %v", phase, PhaseTechnical)
	}
	if m.PrimaryRole() != RoleTechnical {
		t.Errorf("primary role = %v, want %v", m.PrimaryRole(), RoleTechnical)
	}
}

func TestMaybeAdvance_RequiresMinimumAndScore(t *testing.T) {
	configs := map[Phase]PhaseConfig{
		PhaseWarmUp: {MinQuestions: 2, MaxQuestions: 5, PrimaryRole: RoleHR},
	}

	t.Run("below minimum never advances", func(t *testing.T) {
		m := NewStateMachineWithConfigs(configs)
		m.RecordQuestion()
		if _, advanced := m.MaybeAdvance(AnalysisResult{Score: 10}); advanced {
			t.Error("advanced with 1 question, minimum is 2")
		}
	})

	t.Run("below threshold never advances", func(t *testing.T) {
		m := NewStateMachineWithConfigs(configs)
		m.RecordQuestion()
		m.RecordQuestion()
		if _, advanced := m.MaybeAdvance(AnalysisResult{Score: 7.9}); advanced {
			t.Error("advanced with score 7.9, threshold is 8.0")
		}
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		m := NewStateMachineWithConfigs(configs)
		m.RecordQuestion()
		m.RecordQuestion()
		phase, advanced := m.MaybeAdvance(AnalysisResult{Score: 8.0})
		if !advanced {
			t.Fatal("score 8.0 with minimum met must advance")
		}
		if phase != PhaseTechnical {
			t.Errorf("phase = %v, want %v", phase, PhaseTechnical)
		}
	})
}

func TestAdvance_ResetsPhaseCounterOnly(t *testing.T) {
	m := NewStateMachine()
	m.RecordQuestion()
	m.RecordQuestion() // forced advance to Technical

	p := m.Progress()
	if p.PhaseQuestionCount != 0 {
		t.Errorf("phase question count = %d, want 0 after advance", p.PhaseQuestionCount)
	}
	if p.TotalQuestionCount != 2 {
		t.Errorf("total question count = %d, want 2", p.TotalQuestionCount)
	}
}

func TestPhaseOrder_FullTraversal(t *testing.T) {
	m := NewStateMachine()
	want := []Phase{PhaseTechnical, PhaseBehavioral, PhaseBusiness, PhaseQuestions, PhaseCompleted}

	for _, expected := range want {
		// Exhaust the phase maximum to force each transition.
		for {
			phase, advanced := m.RecordQuestion()
			if advanced {
				if phase != expected {
					t.Fatalf("advanced to %v, want %v", phase, expected)
				}
				break
			}
		}
	}
	if !m.Progress().IsCompleted {
		t.Error("machine should report completed")
	}
}

func TestCompleted_IsTerminal(t *testing.T) {
	m := NewStateMachineWithConfigs(map[Phase]PhaseConfig{})
	m.phase = PhaseCompleted

	if _, advanced := m.RecordQuestion(); advanced {
		t.Error("RecordQuestion advanced past Completed")
	}
	if _, advanced := m.MaybeAdvance(AnalysisResult{Score: 10}); advanced {
		t.Error("MaybeAdvance advanced past Completed")
	}
	if m.Phase() != PhaseCompleted {
		t.Errorf("phase = %v, want %v", m.Phase(), PhaseCompleted)
	}
}

func TestProgress_Snapshot(t *testing.T) {
	m := NewStateMachine()
	m.RecordQuestion()

	p := m.Progress()
	if p.CurrentPhase != PhaseWarmUp {
		t.Errorf("current phase = %v, want %v", p.CurrentPhase, PhaseWarmUp)
	}
	if p.PhaseName != "warm_up" {
		t.Errorf("phase name = %q, want %q", p.PhaseName, "warm_up")
	}
	if p.PhaseQuestionCount != 1 || p.TotalQuestionCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", p.PhaseQuestionCount, p.TotalQuestionCount)
	}
	if p.IsCompleted {
		t.Error("fresh machine must not be completed")
	}
}

func TestParsePhase_RoundTrip(t *testing.T) {
	for _, p := range []Phase{PhaseWarmUp, PhaseTechnical, PhaseBehavioral, PhaseBusiness, PhaseQuestions, PhaseCompleted} {
		got, err := ParsePhase(p.String())
		if err != nil {
			t.Fatalf("ParsePhase(%q): %v", p.String(), err)
		}
		if got != p {
			t.Errorf("ParsePhase(%q) = %v, want %v", p.String(), got, p)
		}
	}
	if _, err := ParsePhase("lunch"); err == nil {
		t.Error("expected error for unknown phase name")
	}
}
