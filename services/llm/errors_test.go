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
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestMapOpenAIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			"auth failure",
			&openai.APIError{HTTPStatusCode: http.StatusUnauthorized},
			CodeAuthFailed,
		},
		{
			"forbidden",
			&openai.APIError{HTTPStatusCode: http.StatusForbidden},
			CodeAuthFailed,
		},
		{
			"quota exhausted",
			&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Type: "insufficient_quota"},
			CodeQuotaExceeded,
		},
		{
			"rate limited",
			&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Type: "requests"},
			CodeRateLimited,
		},
		{
			"server error",
			&openai.APIError{HTTPStatusCode: http.StatusInternalServerError},
			CodeProviderError,
		},
		{
			"plain error",
			errors.New("connection refused"),
			CodeProviderError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapOpenAIError(tt.err)
			if CodeOf(got) != tt.want {
				t.Errorf("CodeOf = %q, want %q", CodeOf(got), tt.want)
			}
		})
	}
}

func TestMapAnthropicStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"type":"authentication_error"}}`, CodeAuthFailed},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error"}}`, CodeRateLimited},
		{"billing", http.StatusTooManyRequests, `{"error":{"message":"billing issue"}}`, CodeQuotaExceeded},
		{"generic", http.StatusBadGateway, `{}`, CodeProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapAnthropicStatus(tt.status, []byte(tt.body))
			if CodeOf(got) != tt.want {
				t.Errorf("CodeOf = %q, want %q", CodeOf(got), tt.want)
			}
		})
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	wrapped := fmt.Errorf("call failed: %w", NewProviderError(CodeRateLimited, inner))

	if !errors.Is(wrapped, inner) {
		t.Error("expected Is to reach the inner error through the wrap chain")
	}
	if CodeOf(wrapped) != CodeRateLimited {
		t.Errorf("CodeOf through wrap chain = %q", CodeOf(wrapped))
	}
}
