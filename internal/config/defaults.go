package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:            "info",
			LogFormat:           "text",
			MaxConcurrentEvents: 8,
			NotifyDelayMs:       1500,
			DedupTTLSeconds:     120,
		},
		Settings: SettingsConfig{
			Path:  "~/.alphabot/settings.json",
			Watch: true,
		},
		Feedback: FeedbackConfig{
			Path: "~/.alphabot/feedback.log",
		},
		Policy: PolicyConfig{
			ModerationPerMinute: 30,
			ModerationBurst:     5,
		},
		Bridge: BridgeConfig{
			Enabled:          false,
			URL:              "ws://127.0.0.1:3001/ws",
			ReconnectSeconds: 5,
		},
		Telegram: TelegramConfig{
			Enabled: false,
		},
		Console: ConsoleConfig{
			Enabled:  true,
			SenderID: "254701964272@c.us",
		},
		Admin: AdminConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8089,
		},
	}
}
