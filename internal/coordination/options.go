package coordination

import "github.com/orchflow/orchflow/internal/config"

// hubConfig holds optional configuration for a Hub.
type hubConfig struct {
	watchConfig bool
	onReload    func(*config.Config)
}

// Option configures a Hub.
type Option func(*hubConfig)

// WithConfigWatch enables hot-reload of the config file while the hub runs.
// onReload, if non-nil, is invoked with each validated new config; a
// config.reloaded event is published either way.
func WithConfigWatch(onReload func(*config.Config)) Option {
	return func(c *hubConfig) {
		c.watchConfig = true
		c.onReload = onReload
	}
}
