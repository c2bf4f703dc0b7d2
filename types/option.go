package types

import (
	"context"
	"time"

	"github.com/mcuadros/go-defaults"
)

func NewOptions() *Options {
	opts := &Options{Ctx: context.Background()}
	defaults.SetDefaults(opts)
	return opts
}

type Options struct {
	Ctx context.Context
	/**
	 * default: 5m
	 * ceiling of every single wait on a config or output node.
	 */
	StageTimeout time.Duration `default:"5m"`
	/**
	 * default: gpt-4o, the model asked to classify the intent.
	 */
	ChatModel string `default:"gpt-4o"`

	// attached to created config nodes when not empty
	ImageModel string
	ImageSize  string
	VideoModel string

	ColumnSpacing        float64 `default:"400"`
	VideoRowSpacing      float64 `default:"200"`
	StoryboardRowSpacing float64 `default:"250"`

	/**
	 * default: false, only set it to true when doing testing or developing.
	 * execution records are kept in memory.
	 */
	MemStore bool `default:"false"`

	// PostgreSQL record store configuration
	// If both MemStore and PostgresConfig are set, PostgresConfig takes precedence
	PostgresConfig *PostgresConfig
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, require, verify-ca, verify-full
}

type Option func(*Options)

func WithContext(ctx context.Context) Option {
	return func(opts *Options) {
		opts.Ctx = ctx
	}
}

func WithStageTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.StageTimeout = timeout
	}
}

func WithChatModel(model string) Option {
	return func(opts *Options) {
		opts.ChatModel = model
	}
}

func WithImageModel(model, size string) Option {
	return func(opts *Options) {
		opts.ImageModel = model
		opts.ImageSize = size
	}
}

func WithVideoModel(model string) Option {
	return func(opts *Options) {
		opts.VideoModel = model
	}
}

func WithLayout(column, videoRow, storyboardRow float64) Option {
	return func(opts *Options) {
		opts.ColumnSpacing = column
		opts.VideoRowSpacing = videoRow
		opts.StoryboardRowSpacing = storyboardRow
	}
}

func EnableMemStore() Option {
	return func(opts *Options) {
		opts.MemStore = true
	}
}

// WithPostgresConfig keeps execution records in PostgreSQL
func WithPostgresConfig(config *PostgresConfig) Option {
	return func(opts *Options) {
		opts.PostgresConfig = config
	}
}
