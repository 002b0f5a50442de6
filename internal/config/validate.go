package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRender() error {
	switch c.Render.Quality {
	case "l", "m":
	default:
		return fmt.Errorf("render.quality must be \"l\" (low) or \"m\" (medium), got %q", c.Render.Quality)
	}
	if err := ensurePositiveMap(map[string]int{
		"render.timeout_seconds": c.Render.TimeoutSeconds,
		"render.excerpt_limit":   c.Render.ExcerptLimit,
	}); err != nil {
		return err
	}
	for key, value := range map[string]string{
		"render.source_name":    c.Render.SourceName,
		"render.output_stem":    c.Render.OutputStem,
		"render.canonical_name": c.Render.CanonicalName,
	} {
		if strings.ContainsAny(value, `/\`) {
			return fmt.Errorf("%s must be a bare file name, got %q", key, value)
		}
	}
	if !strings.HasSuffix(c.Render.CanonicalName, ".mp4") {
		return errors.New("render.canonical_name must end in .mp4")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	return nil
}

func (c *Config) validateHistory() error {
	switch c.History.Driver {
	case HistorySQLite, HistoryNone:
		return nil
	case HistoryPostgres:
		if c.History.DSN == "" {
			return errors.New("history.dsn must be set when history.driver is postgres (or set MANIMATE_DATABASE_URL)")
		}
		return nil
	default:
		return fmt.Errorf("history.driver must be one of sqlite, postgres, none; got %q", c.History.Driver)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
