package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"rmasync/internal/logger"
)

// Mode selects the Run my Accounts environment.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// Activity log levels.
const (
	ActivityLevelError    = "error"
	ActivityLevelComplete = "complete"
)

const (
	sandboxBaseURL    = "https://service.int.runmyaccounts.com/api/latest/clients/"
	productionBaseURL = "https://service.runmyaccounts.com/api/latest/clients/"
)

// ErrInvalidConfig is returned when a configuration value is malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// PaymentAccounts are the accounting codes booked for one payment method.
type PaymentAccounts struct {
	ReceivableAccount string `yaml:"receivable_account"`
	PaymentAccount    string `yaml:"payment_account"`
}

// RentalConfig configures the rental booking line filter.
type RentalConfig struct {
	Article             string `yaml:"article"`
	CancellationArticle string `yaml:"cancellation_article"`
	TaxEnabled          bool   `yaml:"tax_enabled"`
}

type accountingFile struct {
	PaymentMethods    map[string]PaymentAccounts `yaml:"payment_methods"`
	Rental            *RentalConfig              `yaml:"rental"`
	AnonymizeAccounts []string                   `yaml:"anonymize_accounts"`
}

// Config is built once at start-up and passed by pointer to every component.
// It is never modified after Load returns.
type Config struct {
	// Run my Accounts connection
	Mode            Mode
	TestMandant     string
	TestAPIKey      string
	LiveMandant     string
	LiveAPIKey      string
	BaseURLOverride string
	Active          bool

	// Invoices
	InvoicePrefix      string
	InvoiceDigits      int
	PaymentPeriodDays  int
	InvoiceDescription string
	FallbackSKU        string
	ShippingSKU        string
	ShippingText       string
	PaymentMethods     map[string]PaymentAccounts

	// Customers
	CustomerPrefix      string
	GuestCustomerPrefix string
	CreateCustomer      bool
	CreateGuestCustomer bool
	GuestCatchAll       string

	// Activity log and alerting
	ActivityLevel string
	AlertEmail    bool
	AlertEmailTo  string

	// Rental bookings
	Rental RentalConfig

	// Project bookings report
	BookingsStart        time.Time
	AnonymizeAccounts    []string
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Infrastructure
	AccountingFile string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	PlanCacheTTL   time.Duration
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string

	// Process logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment and the optional accounting file.
func Load() (*Config, error) {
	const op = "Load"

	config := &Config{
		Mode:                 Mode(strings.ToLower(getEnv("RMA_MODE", string(ModeTest)))),
		TestMandant:          getEnv("RMA_TEST_MANDANT", ""),
		TestAPIKey:           getEnv("RMA_TEST_API_KEY", ""),
		LiveMandant:          getEnv("RMA_LIVE_MANDANT", ""),
		LiveAPIKey:           getEnv("RMA_LIVE_API_KEY", ""),
		BaseURLOverride:      getEnv("RMA_BASE_URL", ""),
		InvoicePrefix:        getEnv("RMA_INVOICE_PREFIX", ""),
		InvoiceDescription:   getEnv("RMA_INVOICE_DESCRIPTION", ""),
		FallbackSKU:          getEnv("RMA_FALLBACK_SKU", ""),
		ShippingSKU:          getEnv("RMA_SHIPPING_SKU", ""),
		ShippingText:         getEnv("RMA_SHIPPING_TEXT", ""),
		CustomerPrefix:       getEnv("RMA_CUSTOMER_PREFIX", ""),
		GuestCustomerPrefix:  getEnv("RMA_GUEST_CUSTOMER_PREFIX", ""),
		GuestCatchAll:        getEnv("RMA_GUEST_CATCH_ALL", ""),
		ActivityLevel:        strings.ToLower(getEnv("RMA_LOG_LEVEL", ActivityLevelError)),
		AlertEmailTo:         getEnv("RMA_LOG_EMAIL_TO", ""),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Project bookings"),
		AccountingFile:       getEnv("RMA_ACCOUNTING_FILE", ""),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
		AnonymizeAccounts:    []string{"2005"},
	}

	var err error
	if config.InvoiceDigits, err = getEnvInt("RMA_INVOICE_DIGITS", 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.PaymentPeriodDays, err = getEnvInt("RMA_PAYMENT_PERIOD", 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.Active, err = getEnvBool("RMA_ACTIVE", true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.AlertEmail, err = getEnvBool("RMA_LOG_EMAIL", false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.CreateCustomer, err = getEnvBool("RMA_CREATE_CUSTOMER", false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.CreateGuestCustomer, err = getEnvBool("RMA_CREATE_GUEST_CUSTOMER", false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if config.PlanCacheTTL, err = time.ParseDuration(getEnv("PLAN_CACHE_TTL", "15m")); err != nil {
		return nil, fmt.Errorf("%s: PLAN_CACHE_TTL: %w: %v", op, ErrInvalidConfig, err)
	}
	if config.BookingsStart, err = time.Parse("2006-01-02", getEnv("BOOKINGS_START", "2022-01-01")); err != nil {
		return nil, fmt.Errorf("%s: BOOKINGS_START: %w: %v", op, ErrInvalidConfig, err)
	}

	if config.AccountingFile != "" {
		if err := config.loadAccountingFile(config.AccountingFile); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) loadAccountingFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read accounting file: %w", err)
	}

	var file accountingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse accounting file %s: %w: %v", path, ErrInvalidConfig, err)
	}

	c.PaymentMethods = file.PaymentMethods
	if file.Rental != nil {
		c.Rental = *file.Rental
	}
	if len(file.AnonymizeAccounts) > 0 {
		c.AnonymizeAccounts = file.AnonymizeAccounts
	}
	return nil
}

func (c *Config) validate() error {
	if c.Mode != ModeTest && c.Mode != ModeLive {
		return fmt.Errorf("%w: RMA_MODE must be test or live, got %q", ErrInvalidConfig, c.Mode)
	}
	if c.ActivityLevel != ActivityLevelError && c.ActivityLevel != ActivityLevelComplete {
		return fmt.Errorf("%w: RMA_LOG_LEVEL must be error or complete, got %q", ErrInvalidConfig, c.ActivityLevel)
	}
	if c.InvoiceDigits < 0 {
		return fmt.Errorf("%w: RMA_INVOICE_DIGITS must not be negative", ErrInvalidConfig)
	}
	if c.PaymentPeriodDays < 0 {
		return fmt.Errorf("%w: RMA_PAYMENT_PERIOD must not be negative", ErrInvalidConfig)
	}
	if c.AlertEmail && c.AlertEmailTo == "" {
		return fmt.Errorf("%w: RMA_LOG_EMAIL_TO is required when RMA_LOG_EMAIL is enabled", ErrInvalidConfig)
	}
	return nil
}

// Credentials returns the mandant and API key of the active mode.
func (c *Config) Credentials() (mandant, apiKey string) {
	if c.Mode == ModeLive {
		return c.LiveMandant, c.LiveAPIKey
	}
	return c.TestMandant, c.TestAPIKey
}

// BaseURL returns the API base of the active mode, always ending in a slash.
func (c *Config) BaseURL() string {
	if c.BaseURLOverride != "" {
		return strings.TrimRight(c.BaseURLOverride, "/") + "/"
	}
	if c.Mode == ModeLive {
		return productionBaseURL
	}
	return sandboxBaseURL
}

// ModeLabel is the mode as shown in activity log entries.
func (c *Config) ModeLabel() string {
	if c.Mode == ModeLive {
		return "Live"
	}
	return "Test"
}

// AccountsFor returns the accounting codes mapped to a payment method.
func (c *Config) AccountsFor(paymentMethod string) PaymentAccounts {
	return c.PaymentMethods[paymentMethod]
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %q is not a number", key, ErrInvalidConfig, value)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "":
		return defaultValue, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: %w: %q is not a boolean", key, ErrInvalidConfig, value)
}
