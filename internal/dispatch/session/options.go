package session

// Option configures a Session.
type Option func(*config)

type config struct {
	lifecycle      []string
	stats          bool
	siteCapture    bool
	identityPolicy bool
	presize        int
}

func defaultConfig() config {
	return config{
		lifecycle:      []string{"Finalize"},
		identityPolicy: true,
	}
}

// WithLifecycleMethods names additional zero-argument lifecycle methods
// that are never intercepted. Finalize and methods of KindFinalizer are
// always skipped.
func WithLifecycleMethods(names ...string) Option {
	return func(c *config) {
		c.lifecycle = append(c.lifecycle, names...)
	}
}

// WithStats enables dispatch counters (see Session.Stats).
func WithStats(enabled bool) Option {
	return func(c *config) {
		c.stats = enabled
	}
}

// WithSiteCapture records the stack of every Register call so that
// Session.Entries can report where each handler was installed.
func WithSiteCapture(enabled bool) Option {
	return func(c *config) {
		c.siteCapture = enabled
	}
}

// WithIdentityPolicy controls whether Equal and Hash methods of instances
// without a handler are answered by identity. Enabled by default; when
// disabled they run natively like any other method.
func WithIdentityPolicy(enabled bool) Option {
	return func(c *config) {
		c.identityPolicy = enabled
	}
}

// WithPresize sizes the registry for n instances.
func WithPresize(n int) Option {
	return func(c *config) {
		c.presize = n
	}
}
