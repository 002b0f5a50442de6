package config

import (
	"fmt"
	"os"
	"path"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeRender()
	c.normalizeLLM()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = c.Paths.WorkDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	mount := strings.TrimSpace(c.Server.VideosMount)
	if mount == "" {
		mount = defaultVideosMount
	}
	c.Server.VideosMount = path.Clean("/" + strings.Trim(mount, "/"))
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("MANIMATE_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeRender() {
	c.Render.Binary = strings.TrimSpace(c.Render.Binary)
	if c.Render.Binary == "" {
		c.Render.Binary = defaultRenderBinary
	}
	switch q := strings.ToLower(strings.TrimSpace(c.Render.Quality)); q {
	case "", "low":
		c.Render.Quality = defaultRenderQuality
	case "medium":
		c.Render.Quality = "m"
	default:
		c.Render.Quality = q
	}
	if c.Render.TimeoutSeconds == 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
	if strings.TrimSpace(c.Render.SourceName) == "" {
		c.Render.SourceName = defaultSourceName
	}
	if strings.TrimSpace(c.Render.OutputStem) == "" {
		c.Render.OutputStem = defaultOutputStem
	}
	if strings.TrimSpace(c.Render.CanonicalName) == "" {
		c.Render.CanonicalName = defaultCanonicalName
	}
	if c.Render.ExcerptLimit == 0 {
		c.Render.ExcerptLimit = defaultExcerptLimit
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if value, ok := os.LookupEnv("OPENAI_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		if c.LLM.BaseURL == "" || c.LLM.BaseURL == defaultLLMBaseURL {
			c.LLM.BaseURL = chatCompletionsURL(value)
		}
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
}

// chatCompletionsURL accepts both an API root (as OPENAI_BASE_URL is usually
// set) and a full endpoint.
func chatCompletionsURL(value string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if strings.HasSuffix(value, "/chat/completions") {
		return value
	}
	return value + "/chat/completions"
}

func (c *Config) normalizeHistory() error {
	c.History.Driver = strings.ToLower(strings.TrimSpace(c.History.Driver))
	c.History.DSN = strings.TrimSpace(c.History.DSN)
	if value, ok := os.LookupEnv("MANIMATE_DATABASE_URL"); ok && strings.TrimSpace(value) != "" {
		if c.History.DSN == "" || c.History.DSN == defaultHistoryDSN {
			c.History.DSN = strings.TrimSpace(value)
		}
	}
	switch c.History.Driver {
	case "":
		c.History.Driver = defaultHistoryDriver
	case "postgresql", "pgx":
		c.History.Driver = HistoryPostgres
	case "sqlite3":
		c.History.Driver = HistorySQLite
	}
	if c.History.Driver == HistorySQLite && isPostgresDSN(c.History.DSN) {
		c.History.Driver = HistoryPostgres
	}
	if c.History.Driver == HistorySQLite {
		if c.History.DSN == "" {
			c.History.DSN = defaultHistoryDSN
		}
		var err error
		if c.History.DSN, err = expandPath(c.History.DSN); err != nil {
			return fmt.Errorf("history.dsn: %w", err)
		}
	}
	return nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
