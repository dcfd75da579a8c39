// Package resilience retries calls to the identity provider with exponential
// backoff (cenkalti/backoff). Errors classified as non-retryable, such as
// an AppError with Retryable=false, stop the loop immediately.
package resilience
