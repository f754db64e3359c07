package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env       string // DEV (local; default), TEST, QA, PROD
		Build     string
		Debug     bool
		TestMode  bool
		AppName   string
		SecretKey string

		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration

		DefaultFromEmail mail.Address
		ContactEmail     mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Billing  BillingConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	BillingConfig struct {
		Currency         string
		FeeDueDays       int
		ReminderDays     int
		ReminderSchedule string // cron spec
	}
)

func (sc ServerConfig) Address() string {
	return net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the configuration from the environment.
// Variables are prefixed with the current ENV, ie: DEV_SECRET_KEY, PROD_DB_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("app_name", "AQRAM")
	v.SetDefault("secret_key", "k2#b9w!q7-z5@rx8m)c4v^p(n1&j6t$e3y+h0u=s*df_g")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	v.SetDefault("default_from_email", "AQRAM Admissions <noreply@aqram.com>")
	v.SetDefault("contact_email", "AQRAM Admissions <admissions@aqram.com>")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8000)
	v.SetDefault("server_debug_host", "0.0.0.0:4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("server_jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server_jwt_refresh_expiration_delta", 30*24*time.Hour)

	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "aqram")
	v.SetDefault("db_user", "aqram")
	v.SetDefault("db_password", "aqram")
	v.SetDefault("db_admin_user", "postgres")
	v.SetDefault("db_admin_password", "postgres")
	v.SetDefault("db_disable_tls", true)

	v.SetDefault("billing_currency", "USD")
	v.SetDefault("billing_fee_due_days", 30)
	v.SetDefault("billing_reminder_days", 7)
	v.SetDefault("billing_reminder_schedule", "0 8 * * *")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("test_mode"),
		AppName:                   v.GetString("app_name"),
		SecretKey:                 v.GetString("secret_key"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		DefaultFromEmail:          parseAddress(v.GetString("default_from_email")),
		ContactEmail:              parseAddress(v.GetString("contact_email")),
		SendgridAPIKey:            v.GetString("sendgrid_api_key"),
		RollbarToken:              v.GetString("rollbar_token"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Port:                      v.GetInt("server_port"),
			DebugHost:                 v.GetString("server_debug_host"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("server_jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwt_refresh_expiration_delta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetInt("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			DisableTLS:    v.GetBool("db_disable_tls"),
		},
		Billing: BillingConfig{
			Currency:         v.GetString("billing_currency"),
			FeeDueDays:       v.GetInt("billing_fee_due_days"),
			ReminderDays:     v.GetInt("billing_reminder_days"),
			ReminderSchedule: v.GetString("billing_reminder_schedule"),
		},
	}
}

// NewTestConfig returns the configuration used by test suites.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.Debug = false
	conf.TestMode = true
	conf.Database.Engine = "memory"
	return conf
}

func parseAddress(s string) mail.Address {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		log.Fatalf("config.mail.ParseAddress(%s): %v", s, err)
	}
	return *addr
}
