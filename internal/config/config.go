package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config covers both roles a node can run in. Host fields are ignored in
// guest mode and vice versa; shared fields apply to both.
type Config struct {
	LogLevel string `yaml:"log-level" env-default:"info"`
	Mode     string `yaml:"mode" env-default:"host"`
	HTTPPort string `yaml:"http-port" env-default:"9090"`
	HostURL  string `yaml:"host-url" env-default:"ws://localhost:9090/ws"`

	Player    Player    `yaml:"player"`
	Session   Session   `yaml:"session"`
	Reconnect Reconnect `yaml:"reconnect"`
	Redis     Redis     `yaml:"redis"`

	CatalogPath     string `yaml:"catalog-path"`
	MaxMessageBytes int    `yaml:"max-message-bytes" env-default:"1048576"`
	BinaryThreshold int    `yaml:"binary-threshold" env-default:"32768"`
}

type Player struct {
	Name  string `yaml:"name" env-default:"player"`
	Color string `yaml:"color"`
	Deck  string `yaml:"deck" env-default:"vanguard"`
}

type Session struct {
	ID              string        `yaml:"id"`
	MaxPlayers      int           `yaml:"max-players" env-default:"4"`
	BoardRows       int           `yaml:"board-rows" env-default:"4"`
	BoardCols       int           `yaml:"board-cols" env-default:"5"`
	HandSize        int           `yaml:"hand-size" env-default:"5"`
	DisconnectGrace time.Duration `yaml:"disconnect-grace" env-default:"30s"`
	InactivityLimit time.Duration `yaml:"inactivity-limit" env-default:"30m"`
	CleanupDelay    time.Duration `yaml:"cleanup-delay" env-default:"5m"`
	TurnLimit       time.Duration `yaml:"turn-limit"`
}

type Reconnect struct {
	Window          time.Duration `yaml:"window" env-default:"30s"`
	DialTimeout     time.Duration `yaml:"dial-timeout" env-default:"5s"`
	InitialInterval time.Duration `yaml:"initial-interval" env-default:"500ms"`
	MaxInterval     time.Duration `yaml:"max-interval" env-default:"5s"`
}

// Redis is optional. An empty host disables persistence entirely and the
// session lives only in memory.
type Redis struct {
	Host string `yaml:"host"`
	Port string `yaml:"port" env-default:"6379"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
