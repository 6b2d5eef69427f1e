package wayland

import (
	"log/slog"
	"time"
)

// defaultSyncTimeout bounds how long Sync waits for its callback before
// giving up with ErrSyncTimeout (spec.md §5).
const defaultSyncTimeout = 5 * time.Second

// clientConfig holds NewClient's construction-time settings, built from
// defaultConfig and layered with whatever ClientOptions the caller
// supplies. Unlike the teacher's copy-returning Config/With... builder,
// NewClient takes a connection to open immediately rather than a value to
// hand around later, so the options here are applied functionally against
// one config instance instead of chained on copies.
type clientConfig struct {
	socketPath  string
	logger      *slog.Logger
	syncTimeout time.Duration
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		syncTimeout: defaultSyncTimeout,
	}
}

// ClientOption customizes a Client at construction time.
type ClientOption func(*clientConfig)

// WithSocketPath overrides the compositor socket path resolved from
// $XDG_RUNTIME_DIR/$WAYLAND_DISPLAY.
func WithSocketPath(path string) ClientOption {
	return func(c *clientConfig) { c.socketPath = path }
}

// WithLogger sets the *slog.Logger the client logs through. The default,
// when unset, is slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = logger }
}

// WithSyncTimeout overrides how long Sync waits for its barrier callback
// before returning ErrSyncTimeout. The default is 5 seconds.
func WithSyncTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.syncTimeout = d }
}
