// Package errors provides the error taxonomy of the identity SDK.
// AppError carries a machine-readable code, an HTTP status mapping and
// retryable detection; the auth middleware renders it as a flat JSON body.
package errors
