package redisstream

// Settings holds Redis Streams transport configuration for the session
// event bus.
type Settings struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled"`
	Addr     string `koanf:"addr" yaml:"addr"`
	Group    string `koanf:"group" yaml:"group"`
	Consumer string `koanf:"consumer" yaml:"consumer"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:  false,
		Addr:     "localhost:6379",
		Group:    "sec-policy-lens-ui",
		Consumer: "ui-1",
	}
}
