package config

import (
	"fmt"
	"time"
)

// WorkDir is the process's home-relative state directory, holding the
// sqlite database, logs, and config file.
const WorkDir = ".akari"

type DirConf struct {
	HomeDir     string
	WorkDir     string
	DownloadDir string
}

// GlobalConfig holds the scheduler and fetcher defaults, §6 Configuration.
type GlobalConfig struct {
	PollingIntervalMinutes    int32 `mapstructure:"polling_interval_minutes"`
	MaxSubscriptionsPerPoll   int   `mapstructure:"max_subscriptions_per_poll"`
	StartupDelaySeconds       int   `mapstructure:"startup_delay_seconds"`
	EnablePolling             bool  `mapstructure:"enable_polling"`
	FeedFetchTimeoutSeconds   int   `mapstructure:"feed_fetch_timeout_seconds"`
	ProgressSyncIntervalSecs  int   `mapstructure:"progress_sync_interval_seconds"`
	MaxConcurrentFetches      int   `mapstructure:"max_concurrent_fetches"`
	FeedCacheTTLSeconds       int   `mapstructure:"feed_cache_ttl_seconds"`
}

// PollingInterval returns the effective tick period for the scheduler.
func (g GlobalConfig) PollingInterval() time.Duration {
	if g.PollingIntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(g.PollingIntervalMinutes) * time.Minute
}

func (g GlobalConfig) StartupDelay() time.Duration {
	if g.StartupDelaySeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.StartupDelaySeconds) * time.Second
}

func (g GlobalConfig) FeedFetchTimeout() time.Duration {
	if g.FeedFetchTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.FeedFetchTimeoutSeconds) * time.Second
}

func (g GlobalConfig) ProgressSyncInterval() time.Duration {
	if g.ProgressSyncIntervalSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.ProgressSyncIntervalSecs) * time.Second
}

func (g GlobalConfig) MaxPerPoll() int {
	if g.MaxSubscriptionsPerPoll <= 0 {
		return 50
	}
	return g.MaxSubscriptionsPerPoll
}

func (g GlobalConfig) MaxFetches() int {
	if g.MaxConcurrentFetches <= 0 {
		return 3
	}
	return g.MaxConcurrentFetches
}

func (g GlobalConfig) FeedCacheTTL() time.Duration {
	if g.FeedCacheTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.FeedCacheTTLSeconds) * time.Second
}

// TorrentClientConfig describes the qBittorrent WebUI endpoint, §6.
type TorrentClientConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DefaultSavePath string `mapstructure:"default_save_path"`
	Category        string `mapstructure:"category"`
	Tags            string `mapstructure:"tags"`
}

func (t TorrentClientConfig) BaseURL() string {
	if t.Port == 0 {
		return t.Host
	}
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// MikanConfig points at the upstream RSS-indexing site, §6.
type MikanConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Config is the fully assembled runtime configuration.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	TorrentClient TorrentClientConfig `mapstructure:"torrent_client"`
	Mikan         MikanConfig         `mapstructure:"mikan"`
}

// Validate checks required fields and the invariants spec §6 names
// (polling interval floor of 5 minutes).
func (c *Config) Validate() error {
	if c.Global.PollingIntervalMinutes != 0 && c.Global.PollingIntervalMinutes < 5 {
		return fmt.Errorf("polling_interval_minutes 不能小于 5: %d", c.Global.PollingIntervalMinutes)
	}
	if c.Mikan.BaseURL == "" {
		return fmt.Errorf("mikan.base_url 不能为空")
	}
	return nil
}
