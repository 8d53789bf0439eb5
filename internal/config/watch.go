package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/orchflow/orchflow/internal/event"
)

// Watch enables hot reload of the config file. Whenever the file changes and
// the new contents validate, onChange is called with the fresh Config and a
// config.reloaded event is published to bus. Invalid edits are dropped: the
// previous configuration stays in effect and no event is emitted.
//
// bus and onChange may each be nil. Watch requires Init to have located a
// config file; with no file present it does nothing.
func Watch(bus *event.Bus, onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load()
		if err != nil {
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
		if bus != nil {
			bus.Publish(event.NewConfigReloadedEvent(e.Name))
		}
	})
	viper.WatchConfig()
}
