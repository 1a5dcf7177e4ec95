package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/prepd-app/prepd/internal/rag"
	"github.com/prepd-app/prepd/internal/storage"
	"github.com/prepd-app/prepd/internal/vectorstore"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the interview knowledge base",
}

var knowledgeImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import knowledge entries from a file",
	Long: `Import knowledge entries from a file.

Two formats are supported, chosen by file extension:
  .json     JSON array of {content_type, content, metadata} objects
  anything  pipe-delimited lines: content_type|content|metadata
            (blank lines and lines starting with # are skipped)

Examples:
  prepd knowledge import questions.json
  prepd knowledge import questions.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		knowledge, closeStore, err := openKnowledge()
		if err != nil {
			return err
		}
		defer closeStore()

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening import file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stating import file: %w", err)
		}

		bar := progressbar.DefaultBytes(info.Size(), "importing")
		reader := progressbar.NewReader(f, bar)

		var result rag.ImportResult
		if strings.EqualFold(filepath.Ext(path), ".json") {
			result, err = knowledge.ImportJSON(cmd.Context(), &reader)
		} else {
			result, err = knowledge.ImportText(cmd.Context(), &reader)
		}
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		for _, msg := range result.Errors {
			printWarning("%s", msg)
		}
		if result.Succeeded > 0 {
			printStep("Rebuilding search index...")
			if err := knowledge.RebuildIndex(cmd.Context()); err != nil {
				return fmt.Errorf("rebuilding index: %w", err)
			}
		}
		printSuccess("Imported %d entries (%d failed)", result.Succeeded, result.Failed)
		return nil
	},
}

var knowledgeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		knowledge, closeStore, err := openKnowledge()
		if err != nil {
			return err
		}
		defer closeStore()

		status, err := knowledge.Status()
		if err != nil {
			return err
		}

		printStatus("Engine", "%s", status.State)
		printStatus("Total entries", "%d", status.TotalVectors)
		printStatus("Questions", "%d", status.QuestionCount)
		printStatus("Answers", "%d", status.AnswerCount)
		printStatus("Job descriptions", "%d", status.JDCount)
		return nil
	},
}

var knowledgeRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the search index from stored vectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		knowledge, closeStore, err := openKnowledge()
		if err != nil {
			return err
		}
		defer closeStore()

		printStep("Rebuilding search index...")
		if err := knowledge.RebuildIndex(cmd.Context()); err != nil {
			return err
		}
		printSuccess("Index rebuilt")
		return nil
	},
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		entryType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		knowledge, closeStore, err := openKnowledge()
		if err != nil {
			return err
		}
		defer closeStore()

		var results []vectorstore.SearchResult
		switch entryType {
		case rag.TypeAnswer:
			results, err = knowledge.RetrieveBestAnswers(cmd.Context(), query, limit)
		case rag.TypeJD:
			results, err = knowledge.RetrieveSimilarJD(cmd.Context(), query, limit)
		case rag.TypeQuestion:
			results, err = knowledge.RetrieveSimilarQuestions(cmd.Context(), query, limit)
		default:
			return fmt.Errorf("unknown type %q (want question, answer, or jd)", entryType)
		}
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [similarity: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Similarity)
			if r.Metadata != "" {
				fmt.Printf("  Metadata: %s\n", r.Metadata)
			}
			text := r.Content
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", text)
		}
		return nil
	},
}

func init() {
	knowledgeSearchCmd.Flags().String("type", rag.TypeQuestion, "entry type: question, answer, or jd")
	knowledgeSearchCmd.Flags().Int("limit", 5, "maximum number of results")

	knowledgeCmd.AddCommand(knowledgeImportCmd)
	knowledgeCmd.AddCommand(knowledgeStatusCmd)
	knowledgeCmd.AddCommand(knowledgeRebuildCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
}

// openKnowledge opens storage and wraps it in the retrieval facade. The
// returned closer must be called when done.
func openKnowledge() (*rag.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	setupLogging(cfg.Log.Level)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	knowledge := rag.New(store.DB(), store, cfg.Embedding.ModelDir)
	return knowledge, func() { store.Close() }, nil
}
