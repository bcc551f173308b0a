// Package config handles exporter configuration loading and management.
package config

// Config holds all exporter tool settings.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ExportConfig holds default export behavior. Command-line flags override
// these per invocation.
type ExportConfig struct {
	Format           string   `yaml:"format"`             // text, binary or package
	OutputDir        string   `yaml:"output_dir"`         // default output directory
	MaxInfluences    int      `yaml:"max_influences"`     // per-vertex influence cap
	PreserveBindPose bool     `yaml:"preserve_bind_pose"` // write inverse bind matrices
	TexturePaths     []string `yaml:"texture_paths"`      // search roots for texture references
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Format:           "binary",
			OutputDir:        ".",
			MaxInfluences:    4,
			PreserveBindPose: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
