package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`

	Room        Room        `yaml:"room"`
	GoogleOAuth GoogleOAuth `yaml:"google-oauth"`

	JWTSecretKey string `yaml:"jwt-secret-key" env:"JWT_SECRET_KEY" env-default:""`
}

type Room struct {
	Capacity          int           `yaml:"capacity" env-default:"2"`
	InactivityTimeout time.Duration `yaml:"inactivity-timeout" env-default:"10m"`
	SweepInterval     time.Duration `yaml:"sweep-interval" env-default:"30m"`
	StaleThreshold    time.Duration `yaml:"stale-threshold" env-default:"30m"`
	MaxNameLength     int           `yaml:"max-name-length" env-default:"20"`
	MaxRoomIDLength   int           `yaml:"max-room-id-length" env-default:"10"`
	MaxChatLength     int           `yaml:"max-chat-length" env-default:"100"`
}

type GoogleOAuth struct {
	ClientID     string `yaml:"client-id" env-default:""`
	ClientSecret string `yaml:"client-secret" env-default:""`
	RedirectURL  string `yaml:"redirect-url" env-default:""`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}
