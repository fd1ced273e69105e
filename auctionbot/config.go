package auctionbot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/kirillLeo1/Auction/auctionbot/database"
	"github.com/kirillLeo1/Auction/auctionbot/payments"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log      LogConfig         `toml:"log"`
	Bot      BotConfig         `toml:"bot"`
	DB       database.DBConfig `toml:"db"`
	HTTP     HTTPConfig        `toml:"http"`
	Payments payments.Config   `toml:"payments"`
	Auction  AuctionConfig     `toml:"auction"`
	Spaces   SpacesConfig      `toml:"spaces"`
}

type BotConfig struct {
	Token     string         `toml:"token"`
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	// ChannelID is the public sale channel where listings are published.
	ChannelID snowflake.ID `toml:"channel_id"`
	// AdminIDs are the operators: they manage lots and receive delivery
	// details.
	AdminIDs []snowflake.ID `toml:"admin_ids"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type AuctionConfig struct {
	// HoldMinutes is how long a granted offer stays claimable.
	HoldMinutes int `toml:"hold_minutes"`
	// ReminderLeadMinutes is how long before the deadline the reminder
	// goes out. Must be smaller than HoldMinutes.
	ReminderLeadMinutes int `toml:"reminder_lead_minutes"`
	// SweepIntervalSeconds is the reconciliation cadence; it bounds how
	// stale an expired offer can stay before being reassigned.
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
	DefaultMinStep       int64  `toml:"default_min_step"`
	Currency             string `toml:"currency"`
	// PublishDelayMillis spaces out channel posts during publish-all.
	PublishDelayMillis int `toml:"publish_delay_millis"`
}

func (c AuctionConfig) HoldDuration() time.Duration {
	if c.HoldMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.HoldMinutes) * time.Minute
}

func (c AuctionConfig) ReminderLeadTime() time.Duration {
	if c.ReminderLeadMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.ReminderLeadMinutes) * time.Minute
}

func (c AuctionConfig) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c AuctionConfig) PublishDelay() time.Duration {
	if c.PublishDelayMillis <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.PublishDelayMillis) * time.Millisecond
}

type SpacesConfig struct {
	Key    string `toml:"key"`
	Secret string `toml:"secret"`
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
	Root   string `toml:"root"`
}
