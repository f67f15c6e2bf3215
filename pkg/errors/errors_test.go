// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, and utility functions

package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/dotup-sh/dotup/pkg/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "download_error",
			code:    errors.ErrDownload,
			message: "archive fetch failed",
			wantStr: "[DOWNLOAD] archive fetch failed",
		},
		{
			name:    "platform_error",
			code:    errors.ErrPlatformUnknown,
			message: "cannot determine platform",
			wantStr: "[PLATFORM_UNKNOWN] cannot determine platform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)

			if err.Code != tt.code {
				t.Errorf("New() code = %v, want %v", err.Code, tt.code)
			}

			if err.Message != tt.message {
				t.Errorf("New() message = %q, want %q", err.Message, tt.message)
			}

			if got := err.Error(); got != tt.wantStr {
				t.Errorf("Error() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := errors.Wrap(inner, errors.ErrDownload, "snapshot fetch")

	if !stderrors.Is(err, inner) {
		t.Error("Wrap() should preserve the wrapped error for errors.Is")
	}

	want := "[DOWNLOAD] snapshot fetch: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if errors.Wrap(nil, errors.ErrDownload, "noop") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestIsErrorCode(t *testing.T) {
	err := errors.Newf(errors.ErrEntryPointMissing, "no entry point for %s", "wsl")

	if !errors.IsErrorCode(err, errors.ErrEntryPointMissing) {
		t.Error("IsErrorCode() should match the error's code")
	}
	if errors.IsErrorCode(err, errors.ErrDownload) {
		t.Error("IsErrorCode() should not match a different code")
	}

	wrapped := errors.Wrap(err, errors.ErrInternal, "outer")
	if errors.GetErrorCode(wrapped) != errors.ErrInternal {
		t.Error("GetErrorCode() should return the outermost code")
	}

	if errors.GetErrorCode(stderrors.New("plain")) != errors.ErrUnknown {
		t.Error("GetErrorCode() on a plain error should return ErrUnknown")
	}
}

func TestWithDetail(t *testing.T) {
	err := errors.New(errors.ErrSwap, "staging swap failed").
		WithDetail("staging", "/tmp/dotfiles.staging-abc")

	if err.Details["staging"] != "/tmp/dotfiles.staging-abc" {
		t.Error("WithDetail() should record the detail")
	}
}
