package mirrorrank

import (
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jpalmerr/mirrorrank/internal/prober"
)

// MinInterval is the shortest round interval accepted by [WithInterval].
const MinInterval = 30 * time.Second

// runnerConfig holds mutable state during Runner construction.
type runnerConfig struct {
	attempts       int
	timeout        time.Duration
	attemptDelay   time.Duration
	maxConcurrency int
	urlTemplate    string
	logger         *slog.Logger
	prober         Prober
	clock          clock.Clock
	evaluatedHooks []func(Stats)
	resultHooks    []func(Stats)
	interval       time.Duration
	port           int
	title          string
}

// Option configures a [Runner] during construction.
//
// Options return an error if validation fails; [New] reports the first one.
type Option func(*runnerConfig) error

// WithAttempts sets how many probes are sent to each endpoint. The attempt
// count is also the success rate denominator. Defaults to 5.
//
// Returns an error if n is zero or negative.
func WithAttempts(n int) Option {
	return func(cfg *runnerConfig) error {
		if n <= 0 {
			return errors.New("attempts must be positive")
		}
		cfg.attempts = n
		return nil
	}
}

// WithTimeout sets the per-attempt timeout. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *runnerConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithAttemptDelay sets the pause taken after every attempt, the last one
// included. Zero disables the pause. Defaults to 1 second.
//
// Returns an error if the duration is negative.
func WithAttemptDelay(d time.Duration) Option {
	return func(cfg *runnerConfig) error {
		if d < 0 {
			return errors.New("attempt delay cannot be negative")
		}
		cfg.attemptDelay = d
		return nil
	}
}

// WithMaxConcurrency sets how many endpoints are evaluated at once.
// Attempts against a single endpoint are always sequential. Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *runnerConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithURLTemplate sets the text/template used to build the probe URL from
// an endpoint, e.g. "http://{{.Endpoint}}/v2/" for plain-HTTP mirrors.
// Defaults to "https://{{.Endpoint}}/v2/".
//
// Returns an error if the template does not parse or does not render to an
// http or https URL with a host.
func WithURLTemplate(tmpl string) Option {
	return func(cfg *runnerConfig) error {
		if _, err := prober.ParseURLTemplate(tmpl); err != nil {
			return err
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *runnerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithProber replaces the built-in HTTP prober. A panic inside p is
// recovered and recorded as a [ClassOther] failure.
//
// Returns an error if p is nil.
func WithProber(p Prober) Option {
	return func(cfg *runnerConfig) error {
		if p == nil {
			return errors.New("prober cannot be nil")
		}
		cfg.prober = p
		return nil
	}
}

// WithClock sets the clock used for latency measurement and the pause
// between attempts. Tests pass clock.NewMock().
//
// Returns an error if c is nil.
func WithClock(c clock.Clock) Option {
	return func(cfg *runnerConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// WithEvaluatedCallback registers a function called as soon as an endpoint
// finishes all its attempts, on the goroutine that evaluated it.
//
// Callbacks for different endpoints may run concurrently; cb must be safe
// for concurrent use. Panics are recovered and logged with a correlation ID.
// Nil callbacks are silently ignored.
func WithEvaluatedCallback(cb func(Stats)) Option {
	return func(cfg *runnerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.evaluatedHooks = append(cfg.evaluatedHooks, cb)
		return nil
	}
}

// WithResultCallback registers a function called for every result as it
// arrives at the coordinator, in completion order.
//
// Result callbacks run one at a time on a single goroutine and must not
// block. Multiple callbacks execute in registration order. Panics are
// recovered and logged with a correlation ID. Nil callbacks are ignored.
func WithResultCallback(cb func(Stats)) Option {
	return func(cfg *runnerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.resultHooks = append(cfg.resultHooks, cb)
		return nil
	}
}

// WithInterval sets the time between the starts of consecutive rounds in
// [Runner.Serve]. Defaults to 10 minutes.
//
// Returns an error if d is below [MinInterval].
func WithInterval(d time.Duration) Option {
	return func(cfg *runnerConfig) error {
		if d < MinInterval {
			return errors.New("interval must be at least 30s")
		}
		cfg.interval = d
		return nil
	}
}

// WithPort sets the HTTP port used by [Runner.Serve]. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *runnerConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title shown by [Runner.Serve]. Defaults to
// "mirrorrank".
func WithTitle(title string) Option {
	return func(cfg *runnerConfig) error {
		cfg.title = title
		return nil
	}
}
