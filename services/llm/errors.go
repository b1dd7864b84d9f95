// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable provider-failure category. Callers decide retry
// behavior from the code, never from the underlying provider message.
type ErrorCode string

const (
	CodeQuotaExceeded ErrorCode = "PROVIDER_QUOTA_EXCEEDED"
	CodeAuthFailed    ErrorCode = "PROVIDER_AUTH_FAILED"
	CodeRateLimited   ErrorCode = "PROVIDER_RATE_LIMITED"
	CodeEmptyResponse ErrorCode = "PROVIDER_EMPTY_RESPONSE"
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
)

// ProviderError wraps a backend failure with its category.
type ProviderError struct {
	Code ErrorCode
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err under the given category.
func NewProviderError(code ErrorCode, err error) *ProviderError {
	return &ProviderError{Code: code, Err: err}
}

// CodeOf extracts the category from err, or CodeProviderError when the
// error did not originate from a backend client.
func CodeOf(err error) ErrorCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeProviderError
}
