// Package config содержит логику чтения конфигурации сервиса магазина.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса магазина.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	GatewayAddress string `env:"GATEWAY_ADDRESS"`
	GatewaySecret  string `env:"GATEWAY_SECRET"`
	AdminChatID    string `env:"ADMIN_CHAT_ID"`

	PaymentMethods []string          `env:"PAYMENT_METHODS" envSeparator:","`
	Wallets        map[string]string `env:"WALLETS"`

	SupportedLocales []string `env:"SUPPORTED_LOCALES" envSeparator:","`
	DefaultLocale    string   `env:"DEFAULT_LOCALE"`

	LowStockThreshold int64 `env:"LOW_STOCK_THRESHOLD"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.GatewayAddress
	envGatewaySecret := cfg.GatewaySecret
	envAdminChatID := cfg.AdminChatID

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "messaging gateway address")
	flag.StringVar(&cfg.GatewaySecret, "s", "", "messaging gateway shared secret")
	flag.StringVar(&cfg.AdminChatID, "admin", "", "admin chat identifier for notifications")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.GatewayAddress = envGatewayAddress
	}
	if envGatewaySecret != "" {
		cfg.GatewaySecret = envGatewaySecret
	}
	if envAdminChatID != "" {
		cfg.AdminChatID = envAdminChatID
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if len(cfg.PaymentMethods) == 0 {
		cfg.PaymentMethods = []string{"binance_pay", "bybit_pay", "usdt_trc20"}
	}
	if len(cfg.SupportedLocales) == 0 {
		cfg.SupportedLocales = []string{"en", "ru"}
	}
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}
	if cfg.LowStockThreshold == 0 {
		cfg.LowStockThreshold = 3
	}

	return cfg, nil
}

// IsPaymentMethodSupported проверяет, включён ли способ оплаты в конфигурации.
func (c *Config) IsPaymentMethodSupported(method string) bool {
	for _, m := range c.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// IsLocaleSupported проверяет, поддерживается ли язык.
func (c *Config) IsLocaleSupported(locale string) bool {
	for _, l := range c.SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}
