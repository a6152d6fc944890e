package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sampleConfigTemplate is the commented starter config written by the
// init command. %ROOTS% is replaced with the default allow-list.
const sampleConfigTemplate = `# filebridge configuration
#
# Environment variables override file values with the FILEBRIDGE_ prefix,
# e.g. FILEBRIDGE_LOGGING_LEVEL=DEBUG.

logging:
  level: INFO
  format: text
  # stdout is reserved for the protocol stream; use stderr or a file path.
  output: stderr

sandbox:
  # Directory prefixes under which the host may read files.
  # Every entry must be an absolute path.
  allowed_roots:
%ROOTS%
  # Reload allowed_roots when this file changes.
  watch_config: false

read:
  # Largest data payload per response frame.
  max_chunk_size: 8Mi

transport:
  # Upper bound on inbound message envelopes.
  max_message_size: 1Mi
  # Wait for a host acknowledgment between chunks of a large read.
  require_ack: true
  ack_timeout: 30s

metrics:
  enabled: false
  # port: 9090

api:
  enabled: false
  # port: 8991

telemetry:
  enabled: false
  # endpoint: localhost:4317

shutdown_timeout: 10s
`

// InitFile writes a commented sample configuration to path, or to the
// default location when path is empty. It refuses to overwrite an
// existing file unless force is set.
func InitFile(path string, force bool, roots []string) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	var rootLines strings.Builder
	for _, root := range roots {
		fmt.Fprintf(&rootLines, "    - %s\n", root)
	}

	content := strings.Replace(sampleConfigTemplate, "%ROOTS%\n", rootLines.String(), 1)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
