// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/tomtom215/playwarden/internal/logging"
	"github.com/tomtom215/playwarden/internal/validation"
)

// Validate checks field bounds and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := validateChannel("control", c.Control); err != nil {
		return err
	}
	if err := validateChannel("telemetry", c.Telemetry); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func validateChannel(name string, ch ChannelConfig) error {
	if !ch.Enabled {
		return nil
	}
	if ch.URL == "" {
		return fmt.Errorf("%s.url is required when %s is enabled", name, name)
	}
	u, err := url.Parse(ch.URL)
	if err != nil {
		return fmt.Errorf("%s.url is invalid: %w", name, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s.url must use ws or wss, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s.url has no host", name)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
		return fmt.Errorf("api.listen %q is not host:port: %w", c.API.Listen, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

// PlayerBaseURL is the player's HTTP control interface root.
func (c *Config) PlayerBaseURL() string {
	return "http://" + net.JoinHostPort(c.Player.Host, fmt.Sprint(c.Player.Port))
}
