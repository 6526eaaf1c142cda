package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:           BackendSQLite,
			Path:              "~/.config/chargebook",
			SQLiteFile:        "chargebook.db",
			SQLiteJournalMode: "wal",
		},
		Display: DisplayConfig{
			Locale:   "zh-CN",
			Currency: "CNY",
			Timezone: "Local",
			Months:   6,
		},
		Extraction: ExtractionConfig{
			Enabled:        true,
			Model:          "gemini-2.5-flash",
			APIKeyEnv:      "GEMINI_API_KEY",
			TimeoutSeconds: 60,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "localhost:1883",
			TopicPrefix: "chargebook",
			ClientID:    "chargebook",
		},
		Logging: LoggingConfig{
			Level: "warn",
			File:  "",
		},
	}
}
