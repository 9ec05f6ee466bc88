package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Payment policy. PaymentDueHours is the window for full payments,
	// DownpaymentHoldHours the window for a scheduled booking's downpayment,
	// FinalPaymentLeadHours how long before scheduled_at the final payment
	// falls due, and DownpaymentRate the fraction of the total held upfront.
	PaymentDueHours       int     `mapstructure:"PAYMENT_DUE_HOURS"`
	DownpaymentHoldHours  int     `mapstructure:"DOWNPAYMENT_HOLD_HOURS"`
	FinalPaymentLeadHours int     `mapstructure:"FINAL_PAYMENT_LEAD_HOURS"`
	DownpaymentRate       float64 `mapstructure:"DOWNPAYMENT_RATE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("PAYMENT_DUE_HOURS", 24)
	v.SetDefault("DOWNPAYMENT_HOLD_HOURS", 12)
	v.SetDefault("FINAL_PAYMENT_LEAD_HOURS", 6)
	v.SetDefault("DOWNPAYMENT_RATE", 0.30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("PAYMENT_DUE_HOURS")
	v.BindEnv("DOWNPAYMENT_HOLD_HOURS")
	v.BindEnv("FINAL_PAYMENT_LEAD_HOURS")
	v.BindEnv("DOWNPAYMENT_RATE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// mode a JWT secret must be present so real authentication is enforced, and
// the payment policy windows must be sane.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.PaymentDueHours <= 0 {
		return fmt.Errorf("PAYMENT_DUE_HOURS must be positive, got %d", c.PaymentDueHours)
	}
	if c.DownpaymentHoldHours <= 0 {
		return fmt.Errorf("DOWNPAYMENT_HOLD_HOURS must be positive, got %d", c.DownpaymentHoldHours)
	}
	if c.FinalPaymentLeadHours < 0 {
		return fmt.Errorf("FINAL_PAYMENT_LEAD_HOURS must not be negative, got %d", c.FinalPaymentLeadHours)
	}
	if c.DownpaymentRate <= 0 || c.DownpaymentRate >= 1 {
		return fmt.Errorf("DOWNPAYMENT_RATE must be between 0 and 1 exclusive, got %g", c.DownpaymentRate)
	}
	return nil
}

// PaymentDue returns the full-payment window as a duration.
func (c *Config) PaymentDue() time.Duration {
	return time.Duration(c.PaymentDueHours) * time.Hour
}

// DownpaymentHold returns the downpayment window as a duration.
func (c *Config) DownpaymentHold() time.Duration {
	return time.Duration(c.DownpaymentHoldHours) * time.Hour
}

// FinalPaymentLead returns how long before the scheduled service time the
// final payment falls due.
func (c *Config) FinalPaymentLead() time.Duration {
	return time.Duration(c.FinalPaymentLeadHours) * time.Hour
}
