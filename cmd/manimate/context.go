package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"manimate/internal/config"
	"manimate/internal/generate"
	"manimate/internal/history"
	"manimate/internal/logging"
	"manimate/internal/render"
	"manimate/internal/services/llm"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	store history.Store
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// historyStore opens the configured store once per invocation.
func (c *commandContext) historyStore(ctx context.Context) (history.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// llmClient returns nil when no API key is configured.
func (c *commandContext) llmClient() *llm.Client {
	cfg, err := c.ensureConfig()
	if err != nil || strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil
	}
	temperature := cfg.LLM.Temperature
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    &temperature,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
}

// buildService wires the generation pipeline. requireLLM rejects a missing
// API key instead of falling back to the minimal scene.
func (c *commandContext) buildService(ctx context.Context, requireLLM bool) (*generate.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store, err := c.historyStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	orch, err := render.New(render.Config{
		WorkDir:       cfg.Paths.WorkDir,
		OutputDir:     cfg.Paths.OutputDir,
		SourceName:    cfg.Render.SourceName,
		OutputStem:    cfg.Render.OutputStem,
		CanonicalName: cfg.Render.CanonicalName,
		Binary:        cfg.Render.Binary,
		Quality:       cfg.Render.Quality,
		Timeout:       cfg.RenderTimeout(),
		ExcerptLimit:  cfg.Render.ExcerptLimit,
	}, render.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var oracle generate.Oracle
	if client := c.llmClient(); client != nil {
		oracle = client
	} else if requireLLM {
		return nil, errors.New("llm.api_key is not configured (set it in the config file or export OPENAI_API_KEY)")
	} else {
		logger.Warn("llm api key not configured; every prompt renders the minimal scene",
			logging.String(logging.FieldEventType, "llm_unconfigured"),
			logging.String(logging.FieldImpact, "prompts are ignored"),
		)
	}

	return generate.New(generate.Config{
		LockPath:      cfg.LockPath(),
		VideosMount:   cfg.Server.VideosMount,
		CanonicalName: cfg.Render.CanonicalName,
	}, oracle, orch, generate.WithHistory(store), generate.WithLogger(logger))
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
