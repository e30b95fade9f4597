// Package config loads the reconciler settings from the process environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/arn"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/env"
)

const defaultCallTimeout = 50 * time.Second

type Config struct {
	AWSRegion string

	// AlarmActions are notified when an alarm enters the ALARM state.
	AlarmActions []string
	// OKActions are notified when an alarm returns to OK.
	OKActions []string
	// RejectedActions holds entries of either list that are not ARNs. They
	// are left out of every alarm.
	RejectedActions []string

	CallTimeout    time.Duration
	LogLevel       slog.Level
	TracingEnabled bool
	VerifyChannels bool
}

func Load() (*Config, error) {
	cfg := &Config{}

	region, err := env.GetRequired("AWS_REGION", env.ParseNonEmptyString)
	if err != nil {
		return nil, err
	}

	cfg.AWSRegion = region

	alarmActions, err := env.GetOptional("ALARM_ACTIONS", nil, env.ParseList)
	if err != nil {
		return nil, err
	}

	okActions, err := env.GetOptional("OK_ACTIONS", nil, env.ParseList)
	if err != nil {
		return nil, err
	}

	var rejected []string
	cfg.AlarmActions, rejected = splitActions(alarmActions)
	cfg.RejectedActions = append(cfg.RejectedActions, rejected...)
	cfg.OKActions, rejected = splitActions(okActions)
	cfg.RejectedActions = append(cfg.RejectedActions, rejected...)

	cfg.CallTimeout, err = env.GetOptional("ALARM_CALL_TIMEOUT", defaultCallTimeout, parseTimeout)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel, err = env.GetOptional("LOG_LEVEL", slog.LevelInfo, parseLogLevel)
	if err != nil {
		return nil, err
	}

	cfg.TracingEnabled = env.Get("TRACING_ENABLED", true, env.ParseBool)
	cfg.VerifyChannels = env.Get("VERIFY_CHANNELS", false, env.ParseBool)

	return cfg, nil
}

// Channels returns every configured notification target, alarm actions first.
func (c *Config) Channels() []string {
	channels := make([]string, 0, len(c.AlarmActions)+len(c.OKActions))
	channels = append(channels, c.AlarmActions...)
	return append(channels, c.OKActions...)
}

// splitActions separates ARNs from entries CloudWatch would reject.
func splitActions(actions []string) (valid, rejected []string) {
	for _, action := range actions {
		if arn.IsARN(action) {
			valid = append(valid, action)
		} else {
			rejected = append(rejected, action)
		}
	}
	return valid, rejected
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := env.ParseDuration(s)
	if err != nil {
		return 0, err
	}

	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive: %s", d)
	}

	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
