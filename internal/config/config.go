package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Confirmation modes for unattended invocations.
const (
	ConfirmModePolicy = "policy"
	ConfirmModeAllow  = "allow"
	ConfirmModeDeny   = "deny"
)

// Secrets modes for encrypted parameters.
const (
	SecretsModeNone     = "none"
	SecretsModeKMS      = "kms"
	SecretsModeEnvelope = "envelope"
)

type Config struct {
	AWSConfig            *aws.Config
	AppLogLevel          slog.Level
	AppCallEnabled       bool
	AppPinpointEndpoint  string
	AppConfirmMode       string
	AppConfirmPolicyPath string
	AppSecretsMode       string
	AppSecretsKmsKeyId   string
	DebugMode            bool
	DebugDataPath        string
}

// New reads the APP_* environment and loads the AWS config. optFns are
// passed to config.LoadDefaultConfig, so callers can pin a region, profile
// or credentials.
func New(optFns ...func(*config.LoadOptions) error) (*Config, error) {
	awscfg, err := config.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	cfg := Config{
		DebugMode:            os.Getenv("APP_DEBUG_MODE") == "true",
		DebugDataPath:        os.Getenv("APP_DEBUG_DATA_PATH"),
		AWSConfig:            &awscfg,
		AppLogLevel:          slog.LevelInfo,
		AppCallEnabled:       os.Getenv("APP_CALL_ENABLED") != "false",
		AppPinpointEndpoint:  os.Getenv("APP_PINPOINT_ENDPOINT_URL"),
		AppConfirmMode:       strings.ToLower(strings.TrimSpace(os.Getenv("APP_CONFIRM_MODE"))),
		AppConfirmPolicyPath: os.Getenv("APP_CONFIRM_POLICY_PATH"),
		AppSecretsMode:       strings.ToLower(strings.TrimSpace(os.Getenv("APP_SECRETS_MODE"))),
		AppSecretsKmsKeyId:   os.Getenv("APP_SECRETS_KMS_KEY_ID"),
	}

	// disable remote calls if debug mode by default
	if cfg.DebugMode && os.Getenv("APP_CALL_ENABLED") != "true" {
		cfg.AppCallEnabled = false
	}

	if levelStr := os.Getenv("APP_LOG_LEVEL"); levelStr != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelStr)); err == nil {
			cfg.AppLogLevel = level
		}
	}

	if cfg.AppConfirmMode == "" {
		cfg.AppConfirmMode = ConfirmModeDeny
	}

	if cfg.AppSecretsMode == "" {
		cfg.AppSecretsMode = SecretsModeNone
	}

	// deprecated
	if cfg.AppPinpointEndpoint == "" && os.Getenv("PINPOINT_ENDPOINT_URL") != "" {
		cfg.AppPinpointEndpoint = os.Getenv("PINPOINT_ENDPOINT_URL")
		slog.Warn("deprecated env var used", "old", "PINPOINT_ENDPOINT_URL", "new", "APP_PINPOINT_ENDPOINT_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and valid
func (c *Config) Validate() error {
	switch c.AppConfirmMode {
	case ConfirmModePolicy:
		if c.AppConfirmPolicyPath == "" {
			return errors.New("APP_CONFIRM_POLICY_PATH is required when APP_CONFIRM_MODE is policy")
		}
	case ConfirmModeAllow, ConfirmModeDeny:
	default:
		return errors.New("invalid APP_CONFIRM_MODE: " + c.AppConfirmMode + " (must be 'policy', 'allow' or 'deny')")
	}

	switch c.AppSecretsMode {
	case SecretsModeNone:
	case SecretsModeKMS:
	case SecretsModeEnvelope:
		if c.AppSecretsKmsKeyId == "" {
			return errors.New("APP_SECRETS_KMS_KEY_ID is required when APP_SECRETS_MODE is envelope")
		}
	default:
		return errors.New("invalid APP_SECRETS_MODE: " + c.AppSecretsMode + " (must be 'none', 'kms' or 'envelope')")
	}

	return nil
}
