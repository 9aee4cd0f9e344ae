package config

import (
	"fmt"
	"strings"
)

//simple range over values to validate needed variables

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("%w: bucket is required (--bucket gs://bucket/prefix)", ErrInvalid)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1", ErrInvalid)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be >= 1", ErrInvalid)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("%w: page_size must be >= 1", ErrInvalid)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be >= 1", ErrInvalid)
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("%w: base_delay and max_delay must not be negative", ErrInvalid)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max_delay (%s) must be >= base_delay (%s)", ErrInvalid, c.MaxDelay, c.BaseDelay)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be > 0", ErrInvalid)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("%w: run_timeout must not be negative", ErrInvalid)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalid)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log_format must be console or json, got %q", ErrInvalid, c.LogFormat)
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return fmt.Errorf("%w: s3.access_key and s3.secret_key must be set together", ErrInvalid)
	}

	for i, r := range c.Rules {
		if r.Name == "" {
			return fmt.Errorf("%w: rules[%d].name is required", ErrInvalid, i)
		}
	}
	for i, n := range c.Notifications {
		if n.Type == "" {
			return fmt.Errorf("%w: notifications[%d].type is required (webhook or email)", ErrInvalid, i)
		}
	}
	return nil
}
