package pipeline

// Default configuration values.
const (
	defaultQualityThreshold = 70
)

// Config holds pipeline gating behavior.
type Config struct {
	QualityThreshold  int  `yaml:"quality_threshold"`
	AllowPlaceholders bool `yaml:"allow_placeholders"`
	KeepSnapshots     bool `yaml:"keep_snapshots"`
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = defaultQualityThreshold
	}
	return c
}
