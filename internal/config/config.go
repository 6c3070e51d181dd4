// Package config holds the small set of configuration types the spec
// runtime's ambient stack needs: embedding-client settings consumed by
// internal/embedding and internal/mission's retrieval step, and
// OpenTelemetry settings consumed by internal/observability.
package config

// EmbeddingConfig configures the generic HTTP embedding client used by
// internal/embedding and retrieval-context injection in internal/mission.
type EmbeddingConfig struct {
	BaseURL    string            `yaml:"base_url"`
	Path       string            `yaml:"path"`
	Model      string            `yaml:"model"`
	APIKey     string            `yaml:"api_key"`
	APIHeader  string            `yaml:"api_header"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Timeout    int               `yaml:"timeout_seconds"`
	Dimensions int               `yaml:"dimensions"`
}

// ObsConfig controls OpenTelemetry exporter settings for
// internal/observability.InitOTel.
type ObsConfig struct {
	OTLP           string `yaml:"otlp"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}
