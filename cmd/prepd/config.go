package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prepd-app/prepd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// The token and API key stay out of display output.
		cfg.Server.APIToken = redact(cfg.Server.APIToken)
		cfg.LLM.APIKey = redact(cfg.LLM.APIKey)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write it back to the config file.

Supported keys:
  server.port, llm.base_url, llm.api_key, llm.model, llm.analysis_model,
  embedding.model_dir, storage.data_dir, retrieval.top_k,
  retry.max_retries, retry.retry_all_errors, log.level`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := setConfigKey(&cfg, key, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(resolveConfigPath()); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func setConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port: %w", err)
		}
		cfg.Server.Port = port
	case "llm.base_url":
		cfg.LLM.BaseURL = value
	case "llm.api_key":
		cfg.LLM.APIKey = value
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.analysis_model":
		cfg.LLM.AnalysisModel = value
	case "embedding.model_dir":
		cfg.Embedding.ModelDir = value
	case "storage.data_dir":
		cfg.Storage.DataDir = value
	case "retrieval.top_k":
		k, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid top_k: %w", err)
		}
		cfg.Retrieval.TopK = k
	case "retry.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max_retries: %w", err)
		}
		cfg.Retry.MaxRetries = n
	case "retry.retry_all_errors":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid retry_all_errors: %w", err)
		}
		cfg.Retry.RetryAllErrors = b
	case "log.level":
		cfg.Log.Level = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
