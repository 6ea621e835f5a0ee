// Package config loads the YAML-configured server settings: PRUDP
// transport parameters, the ticket/access keys, database connection
// parameters, and the out-of-band admin HTTP plane.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rdv2go/rdv2go/internal/constants"
)

// Config holds all configuration for the rendezvous server (spec.md §4.3,
// §4.6, §6 "Out-of-band admin RPC plane").
type Config struct {
	// PRUDP transport
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	SessionTimeout time.Duration `yaml:"session_timeout"`
	Compress       bool          `yaml:"compress"`

	// Ticket engine (§4.6)
	TicketKey          string `yaml:"ticket_key"`
	AccessKey          string `yaml:"access_key"`
	PasswordIterations int    `yaml:"password_iterations"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Admin/API plane (§6 "Out-of-band admin RPC plane")
	AdminBindAddress string `yaml:"admin_bind_address"`
	AdminBearerToken string `yaml:"admin_bearer_token"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool parameters (optional, defaults from pgxpool apply if not set)
	MaxConns          int32  `yaml:"max_conns"`
	MinConns          int32  `yaml:"min_conns"`
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"`
	HealthCheckPeriod string `yaml:"health_check_period"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if d.MaxConnIdleTime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_idle_time=%s", d.MaxConnIdleTime))
	}
	if d.HealthCheckPeriod != "" {
		params = append(params, fmt.Sprintf("pool_health_check_period=%s", d.HealthCheckPeriod))
	}

	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// Default returns a Config with sensible defaults for local development.
// TicketKey and AccessKey are intentionally weak placeholders — real
// deployments must override them.
func Default() Config {
	return Config{
		BindAddress:        "0.0.0.0",
		Port:               21000,
		SessionTimeout:     constants.SessionTimeout,
		Compress:           false,
		TicketKey:          "change-me-ticket-key",
		AccessKey:          "change-me-access-key",
		PasswordIterations: constants.DefaultPasswordIterations,
		AdminBindAddress:   "127.0.0.1:8090",
		LogLevel:           "info",
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "rdv2go",
			Password: "rdv2go",
			DBName:  "rdv2go",
			SSLMode: "disable",
		},
	}
}

// Load loads the server config from a YAML file, starting from Default
// and overlaying whatever the file specifies. If the file doesn't
// exist, defaults are returned unmodified.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
