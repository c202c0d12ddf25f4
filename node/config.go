package node

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

// Default values of the configuration
const (
	DefaultNTAddress                = ":1735"
	DefaultAPIPort                  = 6666
	DefaultAdminRPCPort             = 6667
	DefaultPersistIntervalInMillis  = 1000
	DefaultClientIdleTimeoutMillis  = 5000
	DefaultAPITimeoutInMillis       = 2000
	DefaultRPCTimeoutInMillis       = 1000
	DefaultMaxConnectionRetries     = 3
	DefaultProcedureTimeoutInMillis = 2000
	DefaultLogLevel                 = "info"
)

// Config represents the configuration passed to the
// NetworkTables server like its name, address and API ports
type Config struct {
	ServerName string `json:"server_name" yaml:"server_name"`
	NTAddress  string `json:"nt_address" yaml:"nt_address"`

	APIPort      uint32 `json:"api_port" yaml:"api_port"`
	AdminRPCPort uint32 `json:"admin_rpc_port" yaml:"admin_rpc_port"`

	PersistFilePath         string `json:"persist_file_path" yaml:"persist_file_path"`
	PersistIntervalInMillis int64  `json:"persist_interval_in_millis" yaml:"persist_interval_in_millis"`

	ClientIdleTimeoutInMillis int64 `json:"client_idle_timeout_in_millis" yaml:"client_idle_timeout_in_millis"`
	MaxClients                int   `json:"max_clients" yaml:"max_clients"`

	APITimeoutInMillis       int64   `json:"api_timeout_in_millis" yaml:"api_timeout_in_millis"`
	APIRateLimit             float64 `json:"api_rate_limit" yaml:"api_rate_limit"`
	APIRateBurst             int     `json:"api_rate_burst" yaml:"api_rate_burst"`
	APIJWTSecret             string  `json:"api_jwt_secret" yaml:"api_jwt_secret"`
	ProcedureTimeoutInMillis int64   `json:"procedure_timeout_in_millis" yaml:"procedure_timeout_in_millis"`

	LogFilePath string `json:"log_file_path" yaml:"log_file_path"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
}

// NewDefaultConfig returns the configuration used when nothing
// else is specified
func NewDefaultConfig() *Config {
	return &Config{
		ServerName:                "networktables",
		NTAddress:                 DefaultNTAddress,
		APIPort:                   DefaultAPIPort,
		AdminRPCPort:              DefaultAdminRPCPort,
		PersistIntervalInMillis:   DefaultPersistIntervalInMillis,
		ClientIdleTimeoutInMillis: DefaultClientIdleTimeoutMillis,
		APITimeoutInMillis:        DefaultAPITimeoutInMillis,
		ProcedureTimeoutInMillis:  DefaultProcedureTimeoutInMillis,
		LogLevel:                  DefaultLogLevel,
	}
}

// ConfigValidationError describes one invalid field
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate goes through the configuration and returns a list of
// validation errors found or an empty list otherwise
func Validate(config *Config) []error {
	errs := []error{}
	invalid := func(field, reason string) {
		errs = append(errs, &ConfigValidationError{Field: field, Reason: reason})
	}
	if config.ServerName == "" {
		invalid("server_name", "must not be empty")
	}
	if _, _, splitErr := net.SplitHostPort(config.NTAddress); splitErr != nil {
		invalid("nt_address", splitErr.Error())
	}
	if config.APIPort > 0xFFFF {
		invalid("api_port", "must be at most 65535")
	}
	if config.AdminRPCPort > 0xFFFF {
		invalid("admin_rpc_port", "must be at most 65535")
	}
	if config.APIPort != 0 && config.APIPort == config.AdminRPCPort {
		invalid("admin_rpc_port", "must differ from api_port")
	}
	if config.PersistIntervalInMillis < 0 {
		invalid("persist_interval_in_millis", "must not be negative")
	}
	if config.ClientIdleTimeoutInMillis < 0 {
		invalid("client_idle_timeout_in_millis", "must not be negative")
	}
	if config.MaxClients < 0 {
		invalid("max_clients", "must not be negative")
	}
	if config.APITimeoutInMillis < 0 {
		invalid("api_timeout_in_millis", "must not be negative")
	}
	if config.ProcedureTimeoutInMillis < 0 {
		invalid("procedure_timeout_in_millis", "must not be negative")
	}
	if config.APIRateLimit < 0 {
		invalid("api_rate_limit", "must not be negative")
	}
	if config.APIRateBurst < 0 {
		invalid("api_rate_burst", "must not be negative")
	}
	if config.LogLevel != "" {
		if _, levelErr := logrus.ParseLevel(config.LogLevel); levelErr != nil {
			invalid("log_level", levelErr.Error())
		}
	}
	return errs
}
