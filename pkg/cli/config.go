package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	logLevel string
	profile  string

	// Chat app
	chatURL    string
	chatAPIKey string

	// Knowledge store
	knowledgeURL    string
	knowledgeAPIKey string
	datasetID       string
	documentID      string

	// Summarizer app (optional: absence disables summarization for the
	// whole process)
	summaryURL    string
	summaryAPIKey string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Path to YAML profile with endpoint settings",
			Sources:     cli.EnvVars("KIOKU_PROFILE"),
			Destination: &cfg.profile,
		},
		&cli.StringFlag{
			Name:        "chat-url",
			Usage:       "Base URL of the chat app",
			Sources:     cli.EnvVars("DIFY_URL"),
			Destination: &cfg.chatURL,
		},
		&cli.StringFlag{
			Name:        "chat-api-key",
			Usage:       "API key of the chat app",
			Sources:     cli.EnvVars("DIFY_API"),
			Destination: &cfg.chatAPIKey,
		},
		&cli.StringFlag{
			Name:        "knowledge-url",
			Usage:       "Base URL of the knowledge store",
			Sources:     cli.EnvVars("DIFY_KNOWLEDGE_URL", "DIFY_URL"),
			Destination: &cfg.knowledgeURL,
		},
		&cli.StringFlag{
			Name:        "knowledge-api-key",
			Usage:       "API key of the knowledge store",
			Sources:     cli.EnvVars("DIFY_KNOWLEDGE_API", "DIFY_API"),
			Destination: &cfg.knowledgeAPIKey,
		},
		&cli.StringFlag{
			Name:        "dataset-id",
			Usage:       "Knowledge dataset ID",
			Sources:     cli.EnvVars("DIFY_DATASET_ID"),
			Destination: &cfg.datasetID,
		},
		&cli.StringFlag{
			Name:        "document-id",
			Usage:       "Knowledge document ID holding the memory segments",
			Sources:     cli.EnvVars("DIFY_DOCUMENT_ID"),
			Destination: &cfg.documentID,
		},
		&cli.StringFlag{
			Name:        "summary-url",
			Usage:       "Base URL of the summarizer app",
			Sources:     cli.EnvVars("DIFY_SUMMARY_URL", "DIFY_URL"),
			Destination: &cfg.summaryURL,
		},
		&cli.StringFlag{
			Name:        "summary-api-key",
			Usage:       "API key of the summarizer app",
			Sources:     cli.EnvVars("DIFY_SUMMARY_API_KEY"),
			Destination: &cfg.summaryAPIKey,
		},
	}
}

// profileFile mirrors the YAML profile layout. Flags and environment
// variables override profile values.
type profileFile struct {
	Chat struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"chat"`
	Knowledge struct {
		URL        string `yaml:"url"`
		APIKey     string `yaml:"api_key"`
		DatasetID  string `yaml:"dataset_id"`
		DocumentID string `yaml:"document_id"`
	} `yaml:"knowledge"`
	Summary struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"summary"`
}

// applyProfile fills unset fields from the YAML profile, if one is given
func (cfg *config) applyProfile() error {
	if cfg.profile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.profile)
	if err != nil {
		return goerr.Wrap(err, "failed to read profile", goerr.V("path", cfg.profile))
	}

	var p profileFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return goerr.Wrap(err, "failed to parse profile", goerr.V("path", cfg.profile))
	}

	fill(&cfg.chatURL, p.Chat.URL)
	fill(&cfg.chatAPIKey, p.Chat.APIKey)
	fill(&cfg.knowledgeURL, p.Knowledge.URL)
	fill(&cfg.knowledgeAPIKey, p.Knowledge.APIKey)
	fill(&cfg.datasetID, p.Knowledge.DatasetID)
	fill(&cfg.documentID, p.Knowledge.DocumentID)
	fill(&cfg.summaryURL, p.Summary.URL)
	fill(&cfg.summaryAPIKey, p.Summary.APIKey)
	return nil
}

func fill(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

// setup applies the profile and installs the logger into the context
func (cfg *config) setup(ctx context.Context) (context.Context, error) {
	if err := cfg.applyProfile(); err != nil {
		return ctx, err
	}

	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// newChat creates the chat app client
func (cfg *config) newChat() (adapter.Chat, error) {
	if cfg.chatURL == "" {
		return nil, goerr.New("chat-url is required")
	}
	if cfg.chatAPIKey == "" {
		return nil, goerr.New("chat-api-key is required")
	}
	return adapter.NewChat(cfg.chatURL, cfg.chatAPIKey), nil
}

// newMemory creates the memory service. All knowledge settings are
// required. The summarizer is attached only when configured; without it
// turns are stored with raw content as the summary.
func (cfg *config) newMemory(ctx context.Context) (*memory.Service, error) {
	if cfg.knowledgeURL == "" {
		return nil, goerr.New("knowledge-url is required")
	}
	if cfg.knowledgeAPIKey == "" {
		return nil, goerr.New("knowledge-api-key is required")
	}
	if cfg.datasetID == "" {
		return nil, goerr.New("dataset-id is required")
	}
	if cfg.documentID == "" {
		return nil, goerr.New("document-id is required")
	}

	knowledge := adapter.NewKnowledge(cfg.knowledgeURL, cfg.knowledgeAPIKey, cfg.datasetID, cfg.documentID)

	var opts []memory.Option
	if cfg.summaryURL != "" && cfg.summaryAPIKey != "" {
		opts = append(opts, memory.WithSummarizer(adapter.NewSummarizer(cfg.summaryURL, cfg.summaryAPIKey)))
	} else {
		logging.From(ctx).Info("summarizer disabled (missing settings), storing raw content")
	}

	return memory.New(knowledge, opts...), nil
}
