// internal/workers/matching/notify-matched-donors/config.go
package notifydonors

import (
	"time"

	"lifelink-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	Enabled      bool
	StrongOnly   bool
	MessageTitle string
	CountryCode  string
	SenderID     string
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		Enabled:      true,
		MessageTitle: "LifeLink",
		CountryCode:  "+91",
	}
}

// ConfigFrom enables SMS only when both the notification switch and the
// SNS integration are on.
func ConfigFrom(app *config.Config) *Config {
	cfg := DefaultConfig()
	if app == nil {
		return cfg
	}
	if wc, ok := app.Workers[TaskType]; ok && wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	sms := app.Notifications.SMS
	cfg.Enabled = sms.Enabled && app.Integrations.AWS.SNS.Enabled
	cfg.StrongOnly = sms.StrongOnly
	if sms.MessageTitle != "" {
		cfg.MessageTitle = sms.MessageTitle
	}
	if sms.CountryCode != "" {
		cfg.CountryCode = sms.CountryCode
	}
	cfg.SenderID = app.Integrations.AWS.SNS.DefaultSMSSenderID
	return cfg
}
