package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var knownBackends = map[string]bool{
	"auto":  true,
	"apt":   true,
	"pkcon": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous values are clamped to safe defaults; other validation errors are
// logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	// Interval 0 means periodic checks are disabled.
	if c.IntervalHours < 0 {
		errs = append(errs, fmt.Errorf("interval_hours %d is negative, clamping to 0 (disabled)", c.IntervalHours))
		c.IntervalHours = 0
	} else if c.IntervalHours > 24*7 {
		errs = append(errs, fmt.Errorf("interval_hours %d exceeds maximum %d, clamping", c.IntervalHours, 24*7))
		c.IntervalHours = 24 * 7
	}

	if c.NetworkPollSeconds < 5 {
		errs = append(errs, fmt.Errorf("network_poll_seconds %d is below minimum 5, clamping", c.NetworkPollSeconds))
		c.NetworkPollSeconds = 5
	} else if c.NetworkPollSeconds > 3600 {
		errs = append(errs, fmt.Errorf("network_poll_seconds %d exceeds maximum 3600, clamping", c.NetworkPollSeconds))
		c.NetworkPollSeconds = 3600
	}

	if c.Backend != "" && !knownBackends[strings.ToLower(c.Backend)] {
		errs = append(errs, fmt.Errorf("unknown backend %q (use auto, apt, pkcon)", c.Backend))
	}

	for _, arch := range c.ExcludeArchs {
		if strings.TrimSpace(arch) == "" {
			errs = append(errs, fmt.Errorf("exclude_archs contains an empty entry"))
			break
		}
	}

	if c.InstallerPath == "" {
		errs = append(errs, fmt.Errorf("installer_path is empty, restoring default"))
		c.InstallerPath = Default().InstallerPath
	}

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is empty, restoring default"))
		c.SocketPath = Default().SocketPath
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
