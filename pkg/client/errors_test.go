package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Sternrassler/catalog-feed/pkg/breaker"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{302, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.expected)
			}
		})
	}
}

func TestCountsAsOutage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"server error", &Error{Kind: KindNetwork, Class: ErrorClassServer}, true},
		{"transport error", &Error{Kind: KindNetwork, Class: ErrorClassTransport}, true},
		{"client error", &Error{Kind: KindNetwork, Class: ErrorClassClient}, false},
		{"parse error", &Error{Kind: KindParse, Class: ErrorClassBody}, false},
		{"wrapped server error", fmt.Errorf("fetch: %w", &Error{Class: ErrorClassServer}), true},
		{"unknown error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countsAsOutage(tt.err); got != tt.expected {
				t.Errorf("countsAsOutage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "status without cause",
			err:      &Error{Kind: KindNetwork, StatusCode: 503, Message: "503 Service Unavailable"},
			expected: "catalog network error (status 503): 503 Service Unavailable",
		},
		{
			name:     "cause without status",
			err:      &Error{Kind: KindNetwork, Message: "request failed", Err: errors.New("connection refused")},
			expected: "catalog network error: request failed: connection refused",
		},
		{
			name:     "parse error",
			err:      &Error{Kind: KindParse, StatusCode: 200, Message: "malformed list response", Err: errors.New("unexpected EOF")},
			expected: "catalog parse error (status 200): malformed list response: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	network := &Error{Kind: KindNetwork, Class: ErrorClassCircuitOpen, Err: breaker.ErrOpen}
	parse := &Error{Kind: KindParse}

	if !errors.Is(network, ErrNetwork) || errors.Is(network, ErrParse) {
		t.Error("network error matched wrong sentinel")
	}
	if !errors.Is(network, breaker.ErrOpen) {
		t.Error("Unwrap lost the cause")
	}
	if !errors.Is(parse, ErrParse) || errors.Is(parse, ErrNetwork) {
		t.Error("parse error matched wrong sentinel")
	}
}

func TestCountsAsOutage_Canceled(t *testing.T) {
	err := &Error{Kind: KindNetwork, Class: ErrorClassTransport, Err: context.Canceled}
	if countsAsOutage(err) {
		t.Error("cancelled request counted against the breaker")
	}
}
