package management

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

// timeoutError mimics a net.Error reporting a timeout
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{
			name:      "timeout",
			err:       &url.Error{Op: "Get", URL: "http://10.0.0.5", Err: &net.OpError{Op: "dial", Net: "tcp", Err: &timeoutError{}}},
			wantType:  ErrTypeTimeout,
			retryable: true,
		},
		{
			name:      "context deadline",
			err:       &url.Error{Op: "Get", URL: "http://10.0.0.5", Err: context.DeadlineExceeded},
			wantType:  ErrTypeTimeout,
			retryable: true,
		},
		{
			name:     "canceled",
			err:      &url.Error{Op: "Get", URL: "http://10.0.0.5", Err: context.Canceled},
			wantType: ErrTypeCanceled,
		},
		{
			name:      "connection refused",
			err:       &url.Error{Op: "Get", URL: "http://10.0.0.5", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}},
			wantType:  ErrTypeConnectionRefused,
			retryable: true,
		},
		{
			name:     "dns",
			err:      &net.DNSError{Err: "no such host", Name: "scope.local", IsNotFound: true},
			wantType: ErrTypeDNS,
		},
		{
			name:      "generic",
			err:       errors.New("something broke"),
			wantType:  ErrTypeNetwork,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devErr := ClassifyNetworkError(tt.err)
			if devErr == nil {
				t.Fatal("ClassifyNetworkError() = nil")
			}
			if devErr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", devErr.Type, tt.wantType)
			}
			if devErr.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", devErr.Retryable, tt.retryable)
			}
			if !errors.Is(devErr, tt.err) && devErr.Err == nil {
				t.Error("classified error should keep its cause")
			}
		})
	}
}

func TestClassifyNetworkError_Nil(t *testing.T) {
	if ClassifyNetworkError(nil) != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestDeviceError_Error(t *testing.T) {
	err := NewNetworkError("GET /management/apiversions failed", context.DeadlineExceeded)
	if !strings.Contains(err.Error(), "Timeout") || !strings.Contains(err.Error(), "apiversions") {
		t.Errorf("Error() = %q", err.Error())
	}

	remote := NewRemoteError(0x400, "Property not implemented")
	if !strings.Contains(remote.Error(), "0x400") {
		t.Errorf("Error() = %q, want error number", remote.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewHTTPError(503, "unavailable")) {
		t.Error("5xx should be retryable")
	}
	if IsRetryable(NewHTTPError(404, "missing")) {
		t.Error("4xx should not be retryable")
	}
	if IsRetryable(NewParseError("bad", nil)) {
		t.Error("parse errors should not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("unknown errors should not be retryable")
	}
}

func TestShortMessage_PlainError(t *testing.T) {
	if got := ShortMessage(errors.New("plain failure")); got != "plain failure" {
		t.Errorf("ShortMessage() = %q", got)
	}
}
