package simulator

import (
	"context"
	"time"

	"github.com/mcuadros/go-defaults"
)

func NewOptions(opts ...Option) *Options {
	o := &Options{Ctx: context.Background()}
	defaults.SetDefaults(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type Options struct {
	Ctx context.Context
	/**
	 * default: 4
	 * at most this many jobs are dispatched by one RunOnce.
	 */
	MaxConcurrency int `default:"4"`
	/**
	 * default: 200ms, time a job takes between creating its output node
	 * and publishing the url.
	 */
	Latency time.Duration `default:"200ms"`
	// default: 50ms, the scan interval of the background loop
	PollInterval time.Duration `default:"50ms"`
	/**
	 * default: true, can set it to false and *important*
	 * caller should call Simulator.RunOnce() looply.
	 */
	AutoStart bool `default:"true"`
	/**
	 * default: true, jobs run on the worker pool. When false RunOnce runs
	 * every dispatched job to the end before returning, Latency is skipped.
	 */
	TaskRunAsync bool   `default:"true"`
	URLPrefix    string `default:"sim://"`
	// output nodes are placed this far right of their config node
	ColumnSpacing float64 `default:"400"`

	// Fail returns the error message to report on the config node, empty for success.
	Fail func(job *Job) string
	// Stall keeps the job's output loading forever.
	Stall func(job *Job) bool
}

type Option func(*Options)

func WithContext(ctx context.Context) Option {
	return func(opts *Options) {
		opts.Ctx = ctx
	}
}

func WithLatency(latency time.Duration) Option {
	return func(opts *Options) {
		opts.Latency = latency
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.PollInterval = interval
	}
}

func SetMaxConcurrency(concurrency int) Option {
	return func(opts *Options) {
		opts.MaxConcurrency = concurrency
	}
}

func DisableAutoStart() Option {
	return func(opts *Options) {
		opts.AutoStart = false
	}
}

func DisableTaskRunAsync() Option {
	return func(opts *Options) {
		opts.TaskRunAsync = false
	}
}

func WithFailure(fail func(job *Job) string) Option {
	return func(opts *Options) {
		opts.Fail = fail
	}
}

func WithStall(stall func(job *Job) bool) Option {
	return func(opts *Options) {
		opts.Stall = stall
	}
}
