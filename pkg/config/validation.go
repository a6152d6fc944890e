package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/filebridge-dev/filebridge/internal/bytesize"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Declarative constraints live in struct tags via go-playground/validator;
// rules that cannot be expressed in tags are checked here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// stdout carries the length-prefixed protocol stream; one log line
	// there corrupts the host's framing.
	if strings.EqualFold(cfg.Logging.Output, "stdout") {
		return fmt.Errorf("logging.output: stdout is reserved for the protocol stream, use stderr or a file path")
	}

	if len(cfg.Sandbox.AllowedRoots) == 0 {
		return fmt.Errorf("sandbox.allowed_roots: at least one allowed root must be configured")
	}
	seen := make(map[string]bool)
	for i, root := range cfg.Sandbox.AllowedRoots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("sandbox.allowed_roots[%d]: %q is not an absolute path", i, root)
		}
		clean := filepath.Clean(root)
		if seen[clean] {
			return fmt.Errorf("sandbox.allowed_roots[%d]: duplicate root %q", i, root)
		}
		seen[clean] = true
	}

	if cfg.Read.MaxChunkSize == 0 {
		return fmt.Errorf("read.max_chunk_size: must be greater than zero")
	}
	if cfg.Read.MaxChunkSize > 64*bytesize.MiB {
		return fmt.Errorf("read.max_chunk_size: %s exceeds the 64Mi ceiling", cfg.Read.MaxChunkSize)
	}

	if cfg.Transport.MaxMessageSize < bytesize.KiB {
		return fmt.Errorf("transport.max_message_size: %s is below the 1Ki floor", cfg.Transport.MaxMessageSize)
	}
	if cfg.Transport.RequireAck && cfg.Transport.AckTimeout <= 0 {
		return fmt.Errorf("transport.ack_timeout: must be greater than zero when require_ack is set")
	}

	if cfg.Metrics.Enabled && cfg.API.Enabled && cfg.Metrics.Port == cfg.API.Port {
		return fmt.Errorf("api.port: collides with metrics.port (%d)", cfg.Metrics.Port)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
