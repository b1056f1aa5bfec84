package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Long-poll timeout in seconds
	PollTimeout int
	// Largest member list accepted by /importusers
	ImportMaxBytes int64
	// Timeout for downloading an imported file
	DownloadTimeout time.Duration
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		PollTimeout:     60,
		ImportMaxBytes:  1 << 20,
		DownloadTimeout: 30 * time.Second,
	}
}
