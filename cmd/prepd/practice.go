package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/prepd-app/prepd/internal/interview"
	"github.com/prepd-app/prepd/internal/rag"
	"github.com/prepd-app/prepd/internal/storage"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run an interactive mock interview in the terminal",
	Long: `Run an interactive mock interview in the terminal.

A panel of three interviewers (HR, technical, business) asks questions phase
by phase. Each answer is scored and the interview advances through warm-up,
technical, behavioral, business, and candidate-question phases.

Examples:
  prepd practice --jd job.txt --resume resume.pdf
  prepd practice --jd job.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jdPath, _ := cmd.Flags().GetString("jd")
		resumePath, _ := cmd.Flags().GetString("resume")

		if jdPath == "" {
			return fmt.Errorf("--jd is required")
		}

		jd, err := readTextFile(jdPath)
		if err != nil {
			return fmt.Errorf("reading job description: %w", err)
		}

		var resume string
		if resumePath != "" {
			resume, err = readTextFile(resumePath)
			if err != nil {
				return fmt.Errorf("reading resume: %w", err)
			}
		}

		return runPractice(cmd.Context(), jd, resume)
	},
}

func init() {
	practiceCmd.Flags().String("jd", "", "job description file (text)")
	practiceCmd.Flags().String("resume", "", "resume file (text or PDF)")
}

// readTextFile returns the file's text content, extracting plain text from
// PDFs by extension.
func readTextFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDFText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

func runPractice(ctx context.Context, jd, resume string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	knowledge := rag.New(store.DB(), store, cfg.Embedding.ModelDir)
	agents, err := buildAgents(cfg, knowledge)
	if err != nil {
		return err
	}

	scheduler, err := interview.NewScheduler(agents, interview.PhaseBased)
	if err != nil {
		return err
	}
	machine := interview.NewStateMachine()
	ic := &interview.Context{
		Resume:         resume,
		JobDescription: jd,
		CurrentPhase:   interview.PhaseWarmUp,
	}

	sessionID := uuid.New().String()
	now := time.Now().UTC()
	if err := store.SaveSession(storage.Session{
		ID:             sessionID,
		Resume:         resume,
		JobDescription: jd,
		Phase:          interview.PhaseWarmUp.String(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	fmt.Println(colorize(colorBold, "Mock interview started. Type \"quit\" to end early."))

	for {
		progress := machine.Progress()
		if progress.IsCompleted {
			break
		}

		ic.CurrentPhase = machine.Phase()
		turn, err := scheduler.ExecuteTurn(ctx, ic)
		if err != nil {
			return fmt.Errorf("generating question: %w", err)
		}

		fmt.Printf("\n%s %s\n", colorize(colorCyan, fmt.Sprintf("[%s]", machine.Phase())), colorize(colorBold, turn.RoleName))
		fmt.Printf("%s\n\n", turn.Question)

		phase, advanced := machine.RecordQuestion()
		if advanced {
			ic.CurrentPhase = phase
			if err := store.UpdateSessionPhase(sessionID, phase.String()); err != nil {
				printWarning("failed to persist phase: %v", err)
			}
		}

		prompt := promptui.Prompt{Label: "Your answer"}
		answer, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				fmt.Println("\nInterview ended.")
				return nil
			}
			return fmt.Errorf("reading answer: %w", err)
		}
		answer = strings.TrimSpace(answer)
		if answer == "quit" || answer == "exit" {
			fmt.Println("Interview ended.")
			return nil
		}

		analysis, err := scheduler.ProcessAnswer(ctx, ic, answer)
		if err != nil {
			return fmt.Errorf("analyzing answer: %w", err)
		}

		printAnalysis(analysis)

		turnIndex := len(ic.History) - 1
		if _, err := store.SaveAnswer(storage.Answer{
			SessionID: sessionID,
			TurnIndex: turnIndex,
			Role:      string(turn.Role),
			Question:  turn.Question,
			Answer:    answer,
			Score:     analysis.Score,
		}); err != nil {
			printWarning("failed to save answer: %v", err)
		}

		if phase, advanced := machine.MaybeAdvance(analysis); advanced {
			ic.CurrentPhase = phase
			if err := store.UpdateSessionPhase(sessionID, phase.String()); err != nil {
				printWarning("failed to persist phase: %v", err)
			}
			if !machine.Progress().IsCompleted {
				fmt.Printf("\n%s\n", colorize(colorGreen, fmt.Sprintf("Strong answer. Moving on to the %s phase.", phase)))
			}
		} else if scheduler.ShouldFollowUp(answer, analysis) {
			fmt.Printf("%s\n", colorize(colorYellow, "The interviewer may probe deeper on this topic."))
		}
	}

	printSummary(ic)
	return nil
}

func printAnalysis(a interview.AnalysisResult) {
	fmt.Printf("\n%s %.1f/10\n", colorize(colorBold, "Score:"), a.Score)
	for _, s := range a.Strengths {
		fmt.Printf("  %s %s\n", colorize(colorGreen, "+"), s)
	}
	for _, s := range a.Improvements {
		fmt.Printf("  %s %s\n", colorize(colorYellow, "-"), s)
	}
	if a.Summary != "" {
		fmt.Printf("  %s\n", a.Summary)
	}
}

func printSummary(ic *interview.Context) {
	fmt.Printf("\n%s\n", colorize(colorBold, "Interview complete."))

	var total float64
	var scored int
	for _, turn := range ic.History {
		if turn.Analysis != nil {
			total += turn.Analysis.Score
			scored++
		}
	}
	if scored > 0 {
		printStatus("Questions answered", "%d", scored)
		printStatus("Average score", "%.1f/10", total/float64(scored))
	}
}
