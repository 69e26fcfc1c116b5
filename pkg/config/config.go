package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Provider selects which broadcast transport the connection is built for.
type Provider string

const (
	// ProviderHosted is the managed broadcast relay (cluster-addressed, TLS).
	ProviderHosted Provider = "hosted"
	// ProviderSelfHosted is a self-run broadcast server such as apps/relayd.
	ProviderSelfHosted Provider = "selfhosted"
)

// Broadcast holds the connection parameters for the broadcast server. Exactly
// one of Cluster (hosted) or Host/Port (selfhosted) is meaningful, selected by
// Provider.
type Broadcast struct {
	Provider     Provider
	Key          string
	Cluster      string
	Host         string
	Port         string
	TLS          bool
	AuthEndpoint string
}

// Relay configures the development broadcast relay (apps/relayd).
type Relay struct {
	Addr      string
	Key       string
	Secret    string
	JWTSecret string
	JWTExpire time.Duration
	RedisAddr string
}

type Config struct {
	APIBaseURL string
	Token      string
	TokenFile  string
	Broadcast  Broadcast
	Relay      Relay
}

// Load reads configuration from the environment, with an optional .env file
// for local development. It is read once at startup; the connection never
// re-reads configuration after it is built.
func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.SetDefault("SIAKAD_API_URL", "http://localhost:8000/api")
	viper.SetDefault("SIAKAD_TOKEN", "")
	viper.SetDefault("SIAKAD_TOKEN_FILE", "")
	viper.SetDefault("BROADCAST_PROVIDER", string(ProviderSelfHosted))
	viper.SetDefault("BROADCAST_KEY", "siakad-local")
	viper.SetDefault("BROADCAST_CLUSTER", "ap1")
	viper.SetDefault("BROADCAST_HOST", "localhost")
	viper.SetDefault("BROADCAST_PORT", "6001")
	viper.SetDefault("BROADCAST_TLS", false)
	viper.SetDefault("BROADCAST_AUTH_ENDPOINT", "")
	viper.SetDefault("RELAY_ADDR", ":6001")
	viper.SetDefault("RELAY_SECRET", "siakad-local-secret")
	viper.SetDefault("RELAY_JWT_SECRET", "dev_secret_key")
	viper.SetDefault("RELAY_JWT_EXPIRE", "24h")
	viper.SetDefault("RELAY_REDIS_ADDR", "")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config: no .env file (%v), using environment and defaults", err)
	}

	cfg := &Config{
		APIBaseURL: viper.GetString("SIAKAD_API_URL"),
		Token:      viper.GetString("SIAKAD_TOKEN"),
		TokenFile:  viper.GetString("SIAKAD_TOKEN_FILE"),
		Broadcast: Broadcast{
			Provider:     Provider(viper.GetString("BROADCAST_PROVIDER")),
			Key:          viper.GetString("BROADCAST_KEY"),
			Cluster:      viper.GetString("BROADCAST_CLUSTER"),
			Host:         viper.GetString("BROADCAST_HOST"),
			Port:         viper.GetString("BROADCAST_PORT"),
			TLS:          viper.GetBool("BROADCAST_TLS"),
			AuthEndpoint: viper.GetString("BROADCAST_AUTH_ENDPOINT"),
		},
		Relay: Relay{
			Addr:      viper.GetString("RELAY_ADDR"),
			Key:       viper.GetString("BROADCAST_KEY"),
			Secret:    viper.GetString("RELAY_SECRET"),
			JWTSecret: viper.GetString("RELAY_JWT_SECRET"),
			JWTExpire: viper.GetDuration("RELAY_JWT_EXPIRE"),
			RedisAddr: viper.GetString("RELAY_REDIS_ADDR"),
		},
	}

	if cfg.Broadcast.AuthEndpoint == "" {
		cfg.Broadcast.AuthEndpoint = cfg.APIBaseURL + "/broadcasting/auth"
	}

	return cfg
}
