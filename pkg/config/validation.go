package config

import (
	"fmt"
	"strings"
)

// validate checks the configuration for inconsistencies before startup.
func validate(cfg *Config) error {
	if err := validatePort("server.port", cfg.Server.Port); err != nil {
		return err
	}

	if cfg.Server.RequireAuth && cfg.Server.Passphrase == "" {
		return fmt.Errorf("server.require_auth is set but server.passphrase is empty")
	}

	if cfg.Client.TimeoutMS <= 0 {
		return fmt.Errorf("client.timeout_ms must be positive, got %d", cfg.Client.TimeoutMS)
	}
	if cfg.Client.Retries < 0 {
		return fmt.Errorf("client.retries must not be negative, got %d", cfg.Client.Retries)
	}
	if cfg.Client.ServerAddr != "" && !strings.Contains(cfg.Client.ServerAddr, ":") {
		return fmt.Errorf("client.server_addr %q is missing a port", cfg.Client.ServerAddr)
	}

	if cfg.Web.Enabled {
		if err := validatePort("web.port", cfg.Web.Port); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		if err := validatePort("metrics.port", cfg.Metrics.Port); err != nil {
			return err
		}
		if cfg.Metrics.Path == "" || !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path %q must start with /", cfg.Metrics.Path)
		}
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("logging.level %q is not a known level", cfg.Logging.Level)
	}

	return nil
}

// validatePort ensures a port number is usable. Port 0 is allowed so tests
// can bind ephemeral ports.
func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s %d is out of range", name, port)
	}
	return nil
}
