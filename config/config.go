// Package config defines the service configuration, parsed from the
// environment with the GOCART prefix.
package config

import "time"

type Config struct {
	Web       Web
	Cors      Cors
	DB        DB
	Redis     Redis
	Lock      Lock
	Auth      Auth
	Products  Service
	Coupons   Service
	Sendgrid  Sendgrid
	Abandoned Abandoned
	RateLimit RateLimit
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string `conf:"default:*"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost"`
	Name         string `conf:"default:gocart"`
	MaxIdleConns int    `conf:"default:2"`
	MaxOpenConns int    `conf:"default:25"`
	DisableTLS   bool   `conf:"default:true"`
}

type Redis struct {
	Address  string `conf:"default:localhost:6379"`
	Password string `conf:",mask"`
	DB       int    `conf:"default:0"`
}

type Lock struct {
	TTL           time.Duration `conf:"default:10s"`
	Wait          time.Duration `conf:"default:500ms"`
	RetryInterval time.Duration `conf:"default:50ms"`
}

// Auth selects the credential resolver: "tokens" reads the api_tokens
// table, "oidc" verifies bearer ID tokens against the issuer.
type Auth struct {
	Mode             string        `conf:"default:tokens"`
	Issuer           string        `conf:""`
	ClientID         string        `conf:""`
	DiscoveryTimeout time.Duration `conf:"default:10s"`
}

// Service configures one outbound HTTP dependency.
type Service struct {
	URL          string        `conf:""`
	Timeout      time.Duration `conf:"default:5s"`
	ClientID     string        `conf:""`
	ClientSecret string        `conf:",mask"`
	TokenURL     string        `conf:""`
}

type Sendgrid struct {
	APIKey      string `conf:",mask"`
	FromName    string `conf:"default:GoCart"`
	FromAddress string `conf:"default:noreply@gocart.io"`
	Subject     string `conf:"default:Your cart misses you"`
}

// Abandoned configures the periodic abandoned-cart sweep.
type Abandoned struct {
	Interval time.Duration `conf:"default:30m"`
}

type RateLimit struct {
	RPS   float64 `conf:"default:20"`
	Burst int     `conf:"default:40"`
}
