package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/nupidentity/httpclient"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/resilience"
)

const defaultSyncTimeout = 10 * time.Second

// SyncOptions configures startup registration.
type SyncOptions struct {
	// APIKey authenticates the registration call.
	APIKey string `mapstructure:"api_key" env:"SYSTEM_API_KEY"`

	// Timeout is the hard deadline for registration including retries. Defaults to 10s.
	Timeout time.Duration `mapstructure:"timeout" env:"SYNC_TIMEOUT"`

	// FailOnSyncError makes a failed registration fatal. By default startup continues.
	FailOnSyncError bool `mapstructure:"fail_on_sync_error" env:"FAIL_ON_SYNC_ERROR"`

	// Retry configures retries within the deadline. Nil uses resilience defaults
	// and only retries transport failures, 429 and 5xx.
	Retry *resilience.RetryConfig `mapstructure:"retry"`
}

// SyncOnStartup registers manifest with the provider under a hard deadline.
// On failure it logs a warning and returns nil unless FailOnSyncError is set.
func SyncOnStartup(ctx context.Context, client *Client, manifest SystemManifest, opts SyncOptions) (*SystemRegistrationResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.RetryIf = syncRetryable
	if opts.Retry != nil {
		retryCfg = *opts.Retry
		if retryCfg.RetryIf == nil {
			retryCfg.RetryIf = syncRetryable
		}
	}

	log := client.log.WithComponent("startup-sync")
	retryCfg.OnRetry = func(err error, delay time.Duration) {
		log.WithError(err).Warn("system registration failed, retrying", logger.Fields("delay", delay.String()))
	}

	result, err := resilience.Retry(ctx, retryCfg, func(ctx context.Context) (*SystemRegistrationResult, error) {
		return client.RegisterSystem(ctx, manifest, opts.APIKey)
	})
	if err != nil {
		if opts.FailOnSyncError {
			return nil, fmt.Errorf("startup sync: %w", err)
		}
		log.WithError(err).Warn("system registration skipped, continuing startup",
			logger.Fields(logger.FieldSystemID, manifest.System.ID))
		return nil, nil
	}
	return result, nil
}

// syncRetryable retries provider outages but not client errors such as a bad API key.
func syncRetryable(err error) bool {
	if errors.Is(err, ErrInvalidConfig) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return httpclient.IsRetryable(err)
}
