package config

const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 3000
	DefaultMetricsPath   = "/metrics"
	DefaultMetricsAddr   = "127.0.0.1:9464"
	DefaultNATSURL       = "nats://127.0.0.1:4222"
	DefaultSubjectPrefix = "livepreview"
)

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Preview: PreviewConfig{
			AutoRefresh: AutoRefreshOnAnyChange,
		},
		Monitoring: MonitoringConfig{
			Metrics: MonitoringMetrics{
				Address: DefaultMetricsAddr,
				Path:    DefaultMetricsPath,
			},
			Logging: MonitoringLogging{
				Level:  LogLevelInfo,
				Format: LogFormatText,
			},
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				URL:           DefaultNATSURL,
				SubjectPrefix: DefaultSubjectPrefix,
			},
		},
	}
}
