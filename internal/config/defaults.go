package config

const (
	defaultWorkDir        = "~/.local/share/manimate/generate"
	defaultLogDir         = "~/.local/share/manimate/logs"
	defaultBind           = "127.0.0.1:8000"
	defaultVideosMount    = "/videos"
	defaultRenderBinary   = "manim"
	defaultRenderQuality  = "l"
	defaultRenderTimeout  = 120
	defaultSourceName     = "generated_scene.py"
	defaultOutputStem     = "output"
	defaultCanonicalName  = "output.mp4"
	defaultExcerptLimit   = 2000
	defaultLLMBaseURL     = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel       = "gpt-4"
	defaultLLMTemperature = 0.7
	defaultLLMTimeout     = 60
	defaultHistoryDriver  = HistorySQLite
	defaultHistoryDSN     = "~/.local/share/manimate/history.db"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// History drivers.
const (
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
	HistoryNone     = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:        defaultBind,
			VideosMount: defaultVideosMount,
		},
		Render: Render{
			Binary:         defaultRenderBinary,
			Quality:        defaultRenderQuality,
			TimeoutSeconds: defaultRenderTimeout,
			SourceName:     defaultSourceName,
			OutputStem:     defaultOutputStem,
			CanonicalName:  defaultCanonicalName,
			ExcerptLimit:   defaultExcerptLimit,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeout,
		},
		History: History{
			Driver: defaultHistoryDriver,
			DSN:    defaultHistoryDSN,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
