package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	// Upstream is the storefront backend every checkout call goes through.
	Upstream struct {
		BaseURL        string        `koanf:"base_url"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
		TokenPath      string        `koanf:"token_path"`
		ClientID       string        `koanf:"client_id"`
		ClientSecret   string        `koanf:"client_secret"`
	} `koanf:"upstream"`

	Checkout struct {
		Currency                   string        `koanf:"currency"`
		TaxMode                    string        `koanf:"tax_mode"` // exclusive | inclusive
		TaxRateBps                 int64         `koanf:"tax_rate_bps"`
		FreeShippingThresholdCents int64         `koanf:"free_shipping_threshold_cents"`
		DefaultShippingCents       int64         `koanf:"default_shipping_cents"`
		SessionTTL                 time.Duration `koanf:"session_ttl"`
	} `koanf:"checkout"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Rabbit struct {
		URL string `koanf:"url"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string      `koanf:"brokers"`
		GroupID     string        `koanf:"group_id"`
		TopicOrders string        `koanf:"topic_orders"`
		DialTimeout time.Duration `koanf:"dial_timeout"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env overlay (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix CHECKOUT_, nested with __)
	// e.g. CHECKOUT_UPSTREAM__BASE_URL, CHECKOUT_REDIS__PASSWORD
	if err := k.Load(env.Provider("CHECKOUT_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CHECKOUT_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url required")
	}
	switch c.Checkout.TaxMode {
	case "exclusive", "inclusive":
	default:
		return fmt.Errorf("checkout.tax_mode must be exclusive or inclusive, got %q", c.Checkout.TaxMode)
	}
	if c.Checkout.Currency == "" {
		return fmt.Errorf("checkout.currency required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required (can be dummy for now)")
	}
	return nil
}
