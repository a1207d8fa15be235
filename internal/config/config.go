package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ZoneRule maps an address prefix to a logical network zone. Rules are
// evaluated in order; the first matching prefix wins.
type ZoneRule struct {
	Prefix string `mapstructure:"prefix"`
	Zone   string `mapstructure:"zone"`
}

type IdP struct {
	BaseURL      string        `mapstructure:"base_url"`
	Realm        string        `mapstructure:"realm"`
	ExtraIssuers []string      `mapstructure:"extra_issuers"`
	JWKSCacheTTL time.Duration `mapstructure:"jwks_cache_ttl"`
	JWKSCacheMax int           `mapstructure:"jwks_cache_max"`
	JWKSPerMin   int           `mapstructure:"jwks_rate_per_minute"`
}

type PDP struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type IDS struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Protected store coordinates reported in traffic descriptors.
	StoreIP   string `mapstructure:"store_ip"`
	StorePort int    `mapstructure:"store_port"`
}

type DB struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Config is built once at startup and passed by reference into each
// component. Nothing reads viper (or any other ambient state) after Load.
type Config struct {
	Listen    string     `mapstructure:"listen"`
	IdP       IdP        `mapstructure:"idp"`
	PDP       PDP        `mapstructure:"pdp"`
	IDS       IDS        `mapstructure:"ids"`
	DB        DB         `mapstructure:"db"`
	ZoneRules []ZoneRule `mapstructure:"zone_rules"`
}

// JWKSURL is the issuer's key-discovery endpoint.
func (c *Config) JWKSURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs",
		strings.TrimRight(c.IdP.BaseURL, "/"), c.IdP.Realm)
}

// AllowedIssuers lists every issuer URI accepted for this trust domain:
// the canonical issuer plus localhost aliases used when the IdP is
// reached through port forwarding, plus any configured extras.
func (c *Config) AllowedIssuers() []string {
	realm := c.IdP.Realm
	iss := []string{
		fmt.Sprintf("%s/realms/%s", strings.TrimRight(c.IdP.BaseURL, "/"), realm),
		fmt.Sprintf("http://localhost:8180/realms/%s", realm),
		fmt.Sprintf("http://127.0.0.1:8180/realms/%s", realm),
	}
	return append(iss, c.IdP.ExtraIssuers...)
}

// DefaultZoneRules mirrors the lab network layout. Order matters:
// first match wins.
func DefaultZoneRules() []ZoneRule {
	return []ZoneRule{
		{Prefix: "172.28.4.", Zone: "production"},
		{Prefix: "172.28.5.", Zone: "development"},
		{Prefix: "172.28.2.", Zone: "internal"},
		{Prefix: "172.28.3.", Zone: "dmz"},
		{Prefix: "172.28.1.", Zone: "external"},
	}
}

// Load reads configuration from an optional file and PEP_* environment
// variables, applying defaults for everything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("idp.base_url", "http://keycloak:8080")
	v.SetDefault("idp.realm", "techcorp")
	v.SetDefault("idp.jwks_cache_ttl", 10*time.Minute)
	v.SetDefault("idp.jwks_cache_max", 5)
	v.SetDefault("idp.jwks_rate_per_minute", 10)
	v.SetDefault("pdp.url", "http://pdp:5000")
	v.SetDefault("pdp.timeout", 5*time.Second)
	v.SetDefault("ids.url", "http://snort-ids:9090")
	v.SetDefault("ids.timeout", 3*time.Second)
	v.SetDefault("ids.store_ip", "172.28.2.40")
	v.SetDefault("ids.store_port", 5432)
	v.SetDefault("db.url", "postgres://techcorp_user@postgres-db:5432/techcorp_db?sslmode=disable")
	v.SetDefault("db.max_conns", 10)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.ZoneRules) == 0 {
		cfg.ZoneRules = DefaultZoneRules()
	}
	return &cfg, nil
}
