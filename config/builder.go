package config

import (
	"github.com/jpalmerr/mirrorrank"
	"github.com/jpalmerr/mirrorrank/source"
)

// BuildSource converts the configured sources into a single provider.
//
// Order is Markdown files, then text files, then literal mirrors, each in
// the order listed.
func BuildSource(cfg *Config) source.Provider {
	var providers []source.Provider

	for _, path := range cfg.Sources.Markdown {
		providers = append(providers, source.Markdown{Path: path, Statuses: cfg.Sources.Statuses})
	}
	for _, path := range cfg.Sources.Files {
		providers = append(providers, source.TextFile{Path: path})
	}
	if len(cfg.Mirrors) > 0 {
		providers = append(providers, source.Static(cfg.Mirrors))
	}

	return source.Multi(providers...)
}

// RunnerOptions converts the probing and watch mode settings into runner
// options.
func RunnerOptions(cfg *Config) []mirrorrank.Option {
	opts := []mirrorrank.Option{
		mirrorrank.WithAttempts(cfg.Attempts),
		mirrorrank.WithTimeout(cfg.Timeout.Duration()),
		mirrorrank.WithMaxConcurrency(cfg.MaxConcurrency),
		mirrorrank.WithURLTemplate(cfg.URLTemplate),
		mirrorrank.WithPort(cfg.Serve.Port),
		mirrorrank.WithInterval(cfg.Serve.Interval.Duration()),
	}
	if cfg.AttemptDelay != nil {
		opts = append(opts, mirrorrank.WithAttemptDelay(cfg.AttemptDelay.Duration()))
	}
	if cfg.Serve.Title != "" {
		opts = append(opts, mirrorrank.WithTitle(cfg.Serve.Title))
	}
	return opts
}
