// Package config has the configuration of the server
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment is the deployment environment the server runs in.
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short and the long names of an environment.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
	}
}

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Default upstream locations of the SÚKL open data and REST service.
const (
	DefaultOpenDataURL = "https://opendata.sukl.cz/soubory/SOD20251223/DLP20251223.zip"
	DefaultPharmacyURL = "https://opendata.sukl.cz/soubory/SOD20251223/LEKARNY20251223.zip"
	DefaultAPIURL      = "https://prehledy.sukl.cz/prehledy/v1"
)

// Config holds all application configuration
type Config struct {
	Env               Environment `yaml:"env"`
	LogLevel          string      `yaml:"log_level"`
	LogDir            string      `yaml:"log_dir"`
	LogRetentionWeeks int         `yaml:"log_retention_weeks"` // Number of weeks to keep log files
	MaxLogFileSize    int64       `yaml:"max_log_file_size"`   // Maximum log file size in bytes

	Transport      string `yaml:"transport"`
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	MaxRequestBody int64  `yaml:"max_request_body"` // Maximum request body size in bytes
	MaxHeaderSize  int64  `yaml:"max_header_size"`  // Maximum header size in bytes
	ToolRateLimit  int    `yaml:"tool_rate_limit"`  // tools/call per second and tool

	OpenDataURL     string        `yaml:"opendata_url"`
	PharmacyURL     string        `yaml:"pharmacy_url"`
	CacheDir        string        `yaml:"cache_dir"`
	DataDir         string        `yaml:"data_dir"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	MaxArchiveSize  uint64        `yaml:"max_archive_size"`
	RefreshTimes    string        `yaml:"refresh_times"` // "HH:MM" separated by ';'

	APIURL        string        `yaml:"api_url"`
	APITimeout    time.Duration `yaml:"api_timeout"`
	APIRetries    int           `yaml:"api_retries"`
	APICacheTTL   time.Duration `yaml:"api_cache_ttl"`
	APICacheSize  int           `yaml:"api_cache_size"`
	APIRateLimit  int           `yaml:"api_rate_limit"`
	APIRateWindow time.Duration `yaml:"api_rate_window"`
}

func defaults() *Config {
	return &Config{
		Env:               EnvDevelopment,
		LogDir:            "logs",
		LogRetentionWeeks: 4,         // 4 weeks default
		MaxLogFileSize:    104857600, // 100MB default
		Transport:         TransportStdio,
		Host:              "127.0.0.1",
		Port:              "8000",
		MaxRequestBody:    1048576, // 1MB default
		MaxHeaderSize:     1048576, // 1MB default
		ToolRateLimit:     50,
		OpenDataURL:       DefaultOpenDataURL,
		PharmacyURL:       DefaultPharmacyURL,
		CacheDir:          "/tmp/sukl_dlp_cache",
		DataDir:           "/tmp/sukl_dlp_data",
		DownloadTimeout:   120 * time.Second,
		MaxArchiveSize:    5 << 30, // 5 GiB
		RefreshTimes:      "06:00",
		APIURL:            DefaultAPIURL,
		APITimeout:        30 * time.Second,
		APIRetries:        3,
		APICacheTTL:       300 * time.Second,
		APICacheSize:      1000,
		APIRateLimit:      60,
		APIRateWindow:     60 * time.Second,
	}
}

// Load builds the configuration from the defaults, the optional YAML file
// named by SUKL_CONFIG_FILE and the environment, in that order, and validates it
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("SUKL_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	env, err := ParseEnvironment(getEnvWithDefault("ENV", cfg.Env.String()))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}
	cfg.Env = env

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogDir = getEnvWithDefault("LOG_DIR", cfg.LogDir)
	cfg.LogRetentionWeeks = getIntEnvWithDefault("LOG_RETENTION_WEEKS", cfg.LogRetentionWeeks)
	cfg.MaxLogFileSize = getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", cfg.MaxLogFileSize)

	cfg.Transport = strings.ToLower(getEnvWithDefault("MCP_TRANSPORT", cfg.Transport))
	cfg.Host = getEnvWithDefault("MCP_HOST", cfg.Host)
	cfg.Port = getEnvWithDefault("MCP_PORT", cfg.Port)
	cfg.MaxRequestBody = getInt64EnvWithDefault("MAX_REQUEST_BODY", cfg.MaxRequestBody)
	cfg.MaxHeaderSize = getInt64EnvWithDefault("MAX_HEADER_SIZE", cfg.MaxHeaderSize)
	cfg.ToolRateLimit = getIntEnvWithDefault("TOOL_RATE_LIMIT", cfg.ToolRateLimit)

	cfg.OpenDataURL = getEnvWithDefault("SUKL_OPENDATA_URL", cfg.OpenDataURL)
	cfg.PharmacyURL = getEnvWithDefault("SUKL_PHARMACY_URL", cfg.PharmacyURL)
	cfg.CacheDir = getEnvWithDefault("SUKL_CACHE_DIR", cfg.CacheDir)
	cfg.DataDir = getEnvWithDefault("SUKL_DATA_DIR", cfg.DataDir)
	cfg.DownloadTimeout = getSecondsEnvWithDefault("SUKL_DOWNLOAD_TIMEOUT", cfg.DownloadTimeout)
	cfg.MaxArchiveSize = uint64(getInt64EnvWithDefault("SUKL_MAX_ARCHIVE_SIZE", int64(cfg.MaxArchiveSize)))
	cfg.RefreshTimes = getEnvWithDefault("SUKL_REFRESH_TIMES", cfg.RefreshTimes)

	cfg.APIURL = getEnvWithDefault("SUKL_API_URL", cfg.APIURL)
	cfg.APITimeout = getSecondsEnvWithDefault("SUKL_API_TIMEOUT", cfg.APITimeout)
	cfg.APIRetries = getIntEnvWithDefault("SUKL_API_RETRIES", cfg.APIRetries)
	cfg.APICacheTTL = getSecondsEnvWithDefault("SUKL_API_CACHE_TTL", cfg.APICacheTTL)
	cfg.APICacheSize = getIntEnvWithDefault("SUKL_API_CACHE_SIZE", cfg.APICacheSize)
	cfg.APIRateLimit = getIntEnvWithDefault("SUKL_API_RATE_LIMIT", cfg.APIRateLimit)
	cfg.APIRateWindow = getSecondsEnvWithDefault("SUKL_API_RATE_WINDOW", cfg.APIRateWindow)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Addr returns the listen address of the HTTP transport
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// RefreshSchedule returns the refresh times in the form gocron expects
func (c *Config) RefreshSchedule() string {
	times := splitTimes(c.RefreshTimes)
	return strings.Join(times, ";")
}

// Validate checks the configuration again, e.g. after a command-line override
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	// Validate LOG_LEVEL
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Validate LOG_RETENTION_WEEKS
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	// Validate MAX_LOG_FILE_SIZE
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateTransport(cfg.Transport); err != nil {
		return fmt.Errorf("invalid MCP_TRANSPORT: %w", err)
	}

	// The listener settings only matter for the HTTP transport
	if cfg.Transport == TransportHTTP {
		if err := validatePort(cfg.Port); err != nil {
			return fmt.Errorf("invalid MCP_PORT: %w", err)
		}
		if err := validateAddress(cfg.Host); err != nil {
			return fmt.Errorf("invalid MCP_HOST: %w", err)
		}
	}

	// Validate MAX_REQUEST_BODY
	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	// Validate MAX_HEADER_SIZE
	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validatePositive(cfg.ToolRateLimit, "TOOL_RATE_LIMIT"); err != nil {
		return fmt.Errorf("invalid TOOL_RATE_LIMIT: %w", err)
	}

	if err := validateURL(cfg.OpenDataURL, "SUKL_OPENDATA_URL"); err != nil {
		return fmt.Errorf("invalid SUKL_OPENDATA_URL: %w", err)
	}
	if err := validateURL(cfg.PharmacyURL, "SUKL_PHARMACY_URL"); err != nil {
		return fmt.Errorf("invalid SUKL_PHARMACY_URL: %w", err)
	}
	if err := validateURL(cfg.APIURL, "SUKL_API_URL"); err != nil {
		return fmt.Errorf("invalid SUKL_API_URL: %w", err)
	}

	if cfg.CacheDir == "" || cfg.DataDir == "" {
		return fmt.Errorf("SUKL_CACHE_DIR and SUKL_DATA_DIR cannot be empty")
	}

	if cfg.MaxArchiveSize == 0 {
		return fmt.Errorf("invalid SUKL_MAX_ARCHIVE_SIZE: must be positive")
	}

	if err := validateRefreshTimes(cfg.RefreshTimes); err != nil {
		return fmt.Errorf("invalid SUKL_REFRESH_TIMES: %w", err)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"SUKL_DOWNLOAD_TIMEOUT", cfg.DownloadTimeout},
		{"SUKL_API_TIMEOUT", cfg.APITimeout},
		{"SUKL_API_CACHE_TTL", cfg.APICacheTTL},
		{"SUKL_API_RATE_WINDOW", cfg.APIRateWindow},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("invalid %s: must be positive, got: %s", d.name, d.value)
		}
	}

	if err := validatePositive(cfg.APIRetries, "SUKL_API_RETRIES"); err != nil {
		return fmt.Errorf("invalid SUKL_API_RETRIES: %w", err)
	}
	if err := validatePositive(cfg.APIRateLimit, "SUKL_API_RATE_LIMIT"); err != nil {
		return fmt.Errorf("invalid SUKL_API_RATE_LIMIT: %w", err)
	}
	if err := validatePositive(cfg.APICacheSize, "SUKL_API_CACHE_SIZE"); err != nil {
		return fmt.Errorf("invalid SUKL_API_CACHE_SIZE: %w", err)
	}

	return nil
}

// validatePort validates the MCP_PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the MCP_HOST environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	// Check for localhost/loopback addresses first
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// 0.0.0.0 binds every interface of a container
	if ip.IsUnspecified() {
		return nil
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable.
// An empty level keeps the default of the environment.
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return nil
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

func validateTransport(transport string) error {
	switch transport {
	case TransportStdio, TransportHTTP:
		return nil
	default:
		return fmt.Errorf("transport must be %q or %q, got: %s", TransportStdio, TransportHTTP, transport)
	}
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

func validatePositive(value int, configName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, value)
	}
	return nil
}

// validateURL requires an absolute http(s) URL
func validateURL(raw, configName string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", configName, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got: %s", configName, raw)
	}
	return nil
}

// validateRefreshTimes checks a ';' separated list of HH:MM times
func validateRefreshTimes(raw string) error {
	times := splitTimes(raw)
	if len(times) == 0 {
		return fmt.Errorf("at least one refresh time is required")
	}
	for _, t := range times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("refresh time %q must use the HH:MM format", t)
		}
	}
	return nil
}

func splitTimes(raw string) []string {
	var times []string
	for _, t := range strings.Split(raw, ";") {
		if t = strings.TrimSpace(t); t != "" {
			times = append(times, t)
		}
	}
	return times
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getSecondsEnvWithDefault reads a duration given in seconds ("120", "0.5")
// or in Go notation ("2m")
func getSecondsEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MCP_TRANSPORT",
		"MCP_HOST",
		"MCP_PORT",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"TOOL_RATE_LIMIT",
		"SUKL_CONFIG_FILE",
		"SUKL_OPENDATA_URL",
		"SUKL_PHARMACY_URL",
		"SUKL_CACHE_DIR",
		"SUKL_DATA_DIR",
		"SUKL_DOWNLOAD_TIMEOUT",
		"SUKL_MAX_ARCHIVE_SIZE",
		"SUKL_REFRESH_TIMES",
		"SUKL_API_URL",
		"SUKL_API_TIMEOUT",
		"SUKL_API_RETRIES",
		"SUKL_API_CACHE_TTL",
		"SUKL_API_CACHE_SIZE",
		"SUKL_API_RATE_LIMIT",
		"SUKL_API_RATE_WINDOW",
	}
}
