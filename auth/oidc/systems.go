package oidc

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/nupidentity/httpclient"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/observability"
	"github.com/kbukum/nupidentity/validation"
)

// SystemAPIKeyHeader carries the system API key on registration.
const SystemAPIKeyHeader = "X-System-API-Key"

// RegisterSystem registers the manifest's system and functions with the provider.
func (c *Client) RegisterSystem(ctx context.Context, manifest SystemManifest, apiKey string) (*SystemRegistrationResult, error) {
	if err := validation.Struct(manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrInvalidConfig, err)
	}
	result, err := systemCall[SystemRegistrationResult](c, ctx, "register", manifest.System.ID, func(ctx context.Context) (*httpclient.TypedResponse[SystemRegistrationResult], error) {
		return httpclient.Post[SystemRegistrationResult](c.http, ctx, "/api/systems/register", manifest,
			httpclient.WithRequestAuth(httpclient.APIKeyAuthHeader(apiKey, SystemAPIKeyHeader)))
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("system registered", logger.Fields(
		logger.FieldSystemID, result.SystemID,
		"functions_created", result.FunctionsCreated,
		"functions_updated", result.FunctionsUpdated,
		"functions_removed", result.FunctionsRemoved,
	))
	return result, nil
}

// SyncFunctions replaces the function list of an already registered system.
func (c *Client) SyncFunctions(ctx context.Context, systemID string, manifest SystemManifest, accessToken string) (*SystemRegistrationResult, error) {
	if err := validation.Struct(manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrInvalidConfig, err)
	}
	path := "/api/systems/" + url.PathEscape(systemID) + "/sync-functions"
	return systemCall[SystemRegistrationResult](c, ctx, "sync_functions", systemID, func(ctx context.Context) (*httpclient.TypedResponse[SystemRegistrationResult], error) {
		return httpclient.Post[SystemRegistrationResult](c.http, ctx, path, manifest,
			httpclient.WithRequestAuth(httpclient.BearerAuth(accessToken)))
	})
}

// UserPermissions fetches a user's permissions within a system.
func (c *Client) UserPermissions(ctx context.Context, userID, systemID, accessToken string) (*UserSystemPermissions, error) {
	path := "/api/validate/users/" + url.PathEscape(userID) + "/systems/" + url.PathEscape(systemID) + "/permissions"
	return systemCall[UserSystemPermissions](c, ctx, "user_permissions", systemID, func(ctx context.Context) (*httpclient.TypedResponse[UserSystemPermissions], error) {
		return httpclient.Get[UserSystemPermissions](c.http, ctx, path,
			httpclient.WithRequestAuth(httpclient.BearerAuth(accessToken)))
	})
}

func systemCall[T any](c *Client, ctx context.Context, op, systemID string, call func(context.Context) (*httpclient.TypedResponse[T], error)) (*T, error) {
	ctx, span := c.startSpan(ctx, observability.SpanSystemRequest)
	span.SetAttributes(
		attribute.String(observability.AttrOperation, op),
		attribute.String(observability.AttrSystemID, systemID),
	)
	start := time.Now()
	resp, err := call(ctx)
	c.metrics.RecordProviderCall(ctx, op, err, time.Since(start))
	if err != nil {
		err = requestError(ErrSystemRequest, op, err)
		observability.EndSpan(span, err)
		return nil, err
	}
	observability.EndSpan(span, nil)
	data := resp.Data
	return &data, nil
}
