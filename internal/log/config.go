package log

// Config controls level, line pattern and appenders of the process
// logger.
type Config struct {
	Level   string `mapstructure:"level"`
	Pattern string `mapstructure:"pattern"`
	Time    string `mapstructure:"time"`

	// File enables a rotating file appender next to the console one.
	File *FileAppenderOpt `mapstructure:"file"`
}

// FileAppenderOpt configures the lumberjack-backed file appender.
type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

func defaultConfig() *Config {
	return &Config{
		Level:   "info",
		Pattern: "%time [%level] %msg%fields%n",
		Time:    "2006-01-02 15:04:05",
	}
}

func (c *Config) withDefaults() *Config {
	d := defaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Level == "" {
		out.Level = d.Level
	}
	if out.Pattern == "" {
		out.Pattern = d.Pattern
	}
	if out.Time == "" {
		out.Time = d.Time
	}
	return &out
}
