// internal/escalation/config.go
package escalation

import (
	"time"

	"clarity-agent/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	// FromEmail is the verified SES sender identity.
	FromEmail string
	// OnCallEmail receives every crisis alert.
	OnCallEmail string
	// TopicARN is the SNS topic fanned out to the on-call rotation.
	TopicARN  string
	AWSRegion string
	Timeout   time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		AWSRegion: "us-east-1",
		Timeout:   10 * time.Second,
	}
}

func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.EmailEnabled = cfg.Notifications.Email.Enabled
	c.FromEmail = cfg.Notifications.Email.FromEmail
	c.OnCallEmail = cfg.Notifications.Email.OnCall
	c.SMSEnabled = cfg.Notifications.SMS.Enabled
	c.TopicARN = cfg.Notifications.SMS.TopicARN
	if cfg.Notifications.AWS.Region != "" {
		c.AWSRegion = cfg.Notifications.AWS.Region
	}
	return c
}
