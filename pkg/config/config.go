// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Environment variables consulted when the corresponding option is unset.
const (
	EnvHost     = "EMAIL_HOST"
	EnvPort     = "EMAIL_PORT"
	EnvUser     = "EMAIL_USER"
	EnvPassword = "EMAIL_PASSWORD"
)

const (
	DefaultHost    = "smtp.gmail.com"
	DefaultPort    = 587
	DefaultSubject = "Task Completed"

	DefaultMaxRetries       = 3
	DefaultInitialBackoffMs = 500
	DefaultMaxBackoffMs     = 30000
	DefaultBackoffJitter    = 0.2
)

// ErrConfiguration is wrapped by every configuration resolution failure so
// callers can detect the whole class with errors.Is.
var ErrConfiguration = errors.New("invalid notification configuration")

// Options is the caller-supplied configuration surface. Zero values mean
// "unset" and fall back to environment variables and defaults during Resolve.
// MaxRetries is a pointer because an explicit zero is meaningful (exactly one
// send attempt, no retry).
type Options struct {
	Recipients []string `yaml:"recipients"`
	Subject    string   `yaml:"subject"`
	AttachLogs bool     `yaml:"attachLogs"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`

	Async      bool `yaml:"async"`
	MaxRetries *int `yaml:"maxRetries"`

	InitialBackoffMs int     `yaml:"initialBackoffMs"`
	MaxBackoffMs     int     `yaml:"maxBackoffMs"`
	BackoffJitter    float64 `yaml:"backoffJitter"`
}

// Config is the fully resolved, validated configuration. It is built once per
// dispatch and treated as immutable afterwards; environment variables are read
// only inside Resolve.
type Config struct {
	Recipients []string
	Subject    string
	AttachLogs bool

	Host     string
	Port     int
	Username string
	Password string

	SenderAddress      string
	SenderName         string
	InsecureSkipVerify bool

	Async      bool
	MaxRetries int

	InitialBackoffMs int
	MaxBackoffMs     int
	BackoffJitter    float64
}

// Resolve applies precedence (explicit option, environment variable, default)
// and validates the result. Resolution is deferred to dispatch time by the
// notifier, so a broken configuration surfaces as a delivery failure rather
// than preventing the wrapped task from running.
func Resolve(opts Options) (Config, error) {
	cfg := Config{
		Recipients:         opts.Recipients,
		Subject:            opts.Subject,
		AttachLogs:         opts.AttachLogs,
		Host:               opts.Host,
		Port:               opts.Port,
		Username:           opts.Username,
		Password:           opts.Password,
		SenderAddress:      opts.SenderAddress,
		SenderName:         opts.SenderName,
		InsecureSkipVerify: opts.InsecureSkipVerify,
		Async:              opts.Async,
		InitialBackoffMs:   opts.InitialBackoffMs,
		MaxBackoffMs:       opts.MaxBackoffMs,
		BackoffJitter:      opts.BackoffJitter,
	}

	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Host == "" {
		cfg.Host = getenvDefault(EnvHost, DefaultHost)
	}
	if cfg.Port == 0 {
		port, err := envPort()
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv(EnvUser)
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv(EnvPassword)
	}
	if cfg.SenderAddress == "" {
		cfg.SenderAddress = cfg.Username
	}

	if opts.MaxRetries != nil {
		cfg.MaxRetries = *opts.MaxRetries
	} else {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialBackoffMs <= 0 {
		cfg.InitialBackoffMs = DefaultInitialBackoffMs
	}
	if cfg.MaxBackoffMs <= 0 {
		cfg.MaxBackoffMs = DefaultMaxBackoffMs
	}
	if cfg.BackoffJitter <= 0 {
		cfg.BackoffJitter = DefaultBackoffJitter
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if len(cfg.Recipients) == 0 {
		return fmt.Errorf("%w: no recipients configured", ErrConfiguration)
	}
	for _, addr := range cfg.Recipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: recipient %q is not a valid address: %v", ErrConfiguration, addr, err)
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfiguration, cfg.Port)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return fmt.Errorf("%w: email credentials not provided (set %s/%s or pass them explicitly)",
			ErrConfiguration, EnvUser, EnvPassword)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("%w: maxRetries must not be negative", ErrConfiguration)
	}
	return nil
}

// LoadFile reads an Options document from a YAML file. The result still goes
// through Resolve, so partial files are fine.
func LoadFile(path string) (Options, error) {
	var opts Options

	content, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("%w: trying to open notification options file %s: %v", ErrConfiguration, path, err)
	}
	if err := yaml.Unmarshal(content, &opts); err != nil {
		return opts, fmt.Errorf("%w: error unmarshaling YAML %s: %v", ErrConfiguration, path, err)
	}
	return opts, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envPort() (int, error) {
	raw := os.Getenv(EnvPort)
	if raw == "" {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrConfiguration, EnvPort, raw)
	}
	return port, nil
}
