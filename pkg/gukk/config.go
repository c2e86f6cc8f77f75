package gukk

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gukk/pkg/common"
)

// Configured registers the portal flags and returns a Config that is filled
// in once lflag.Configure is called.
func Configured() *Config {
	cfg := &Config{}
	username := lflag.RequiredString("gukk-username", "Username (email) for the GUK Krasnodar portal")
	password := lflag.RequiredString("gukk-password", "Password for the GUK Krasnodar portal")
	timeout := lflag.Duration("gukk-timeout", DefaultTimeout, "Total timeout for a single portal request")
	userAgent := lflag.String("gukk-user-agent", common.DefaultUserAgent, "User-Agent sent to the portal")
	baseURL := lflag.String("gukk-base-url", DefaultBaseURL, "URL of the GUK Krasnodar portal")

	lflag.Do(func() {
		cfg.Username = *username
		cfg.Password = *password
		cfg.Timeout = *timeout
		cfg.UserAgent = *userAgent
		cfg.BaseURL = *baseURL
		if err := cfg.Validate(); err != nil {
			panic(fmt.Sprintf("gukk config validation failed: %v", err))
		}
	})

	return cfg
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to parse base url (%s): %w", c.BaseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base url must be http or https: %s", c.BaseURL)
		}
	}
	return nil
}
