package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSyncError_Error(t *testing.T) {
	tests := []struct {
		name      string
		op        Operation
		component string
		code      ErrorCode
		err       error
		want      string
	}{
		{
			name:      "with component and code",
			op:        OpSync,
			component: "store",
			code:      ErrCodeStorageFailure,
			err:       fmt.Errorf("failed to connect"),
			want:      "sync operation failed in store component [STORAGE_FAILURE]: failed to connect",
		},
		{
			name:      "with component no code",
			op:        OpSync,
			component: "store",
			err:       fmt.Errorf("failed to connect"),
			want:      "sync operation failed in store component: failed to connect",
		},
		{
			name: "without component with code",
			op:   OpFetch,
			code: ErrCodeNetworkFailure,
			err:  fmt.Errorf("network error"),
			want: "fetch operation failed [NETWORK_FAILURE]: network error",
		},
		{
			name: "without component or code",
			op:   OpResolve,
			err:  fmt.Errorf("boom"),
			want: "resolve operation failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &SyncError{
				Op:        tt.op,
				Component: tt.component,
				Err:       tt.err,
				Code:      tt.code,
			}

			if got := e.Error(); got != tt.want {
				t.Errorf("SyncError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewFetchError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	syncErr := NewFetchError(cause)

	if syncErr.Kind != KindFetch {
		t.Errorf("NewFetchError() Kind = %v, want %v", syncErr.Kind, KindFetch)
	}
	if syncErr.Component != "remote" {
		t.Errorf("NewFetchError() Component = %v, want remote", syncErr.Component)
	}
	if !errors.Is(syncErr, cause) {
		t.Error("NewFetchError() does not unwrap to its cause")
	}
	if !syncErr.Retryable {
		t.Error("NewFetchError() created non-retryable error")
	}
}

func TestNewNotFoundError(t *testing.T) {
	syncErr := NewNotFoundError(OpResolve, "A")
	if syncErr.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", syncErr.Kind, KindNotFound)
	}
	if syncErr.Metadata["id"] != "A" {
		t.Errorf("Metadata id = %v, want A", syncErr.Metadata["id"])
	}
	if syncErr.Retryable {
		t.Error("not found errors must not be retryable")
	}
}

func TestNewValidationError(t *testing.T) {
	cause := fmt.Errorf("text is required")
	syncErr := NewValidationError(OpAdd, cause)

	if syncErr.Code != ErrCodeValidationFailure {
		t.Errorf("NewValidationError() Code = %v, want %v", syncErr.Code, ErrCodeValidationFailure)
	}
	if syncErr.Kind != KindValidation {
		t.Errorf("NewValidationError() Kind = %v, want %v", syncErr.Kind, KindValidation)
	}
	if syncErr.Retryable {
		t.Error("NewValidationError() created retryable error when it shouldn't")
	}
}

func TestE(t *testing.T) {
	cause := fmt.Errorf("decode failed")
	err := E(Op("bulk.Import"), Component("bulk"), KindImportFormat, cause, "not an array")

	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected *SyncError, got %T", err)
	}
	if syncErr.Op != "bulk.Import" {
		t.Errorf("Op = %s, want bulk.Import", syncErr.Op)
	}
	if syncErr.Component != "bulk" {
		t.Errorf("Component = %s, want bulk", syncErr.Component)
	}
	if syncErr.Kind != KindImportFormat {
		t.Errorf("Kind = %s, want %s", syncErr.Kind, KindImportFormat)
	}
	if syncErr.Metadata["detail"] != "not an array" {
		t.Errorf("detail = %v", syncErr.Metadata["detail"])
	}
	if !errors.Is(err, cause) {
		t.Error("E() result does not unwrap to cause")
	}
}

func TestE_InheritsKindFromNested(t *testing.T) {
	inner := NewFetchError(fmt.Errorf("timeout"))
	outer := E(OpSync, Component("synckit"), inner)

	if got := KindOf(outer); got != KindFetch {
		t.Errorf("KindOf() = %v, want %v", got, KindFetch)
	}
	if !IsRetryable(outer) {
		t.Error("outer error should inherit retryable flag")
	}
}

func TestIsKind(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", NewNotFoundError(OpResolve, "x"))
	if !IsKind(wrapped, KindNotFound) {
		t.Error("IsKind should see through fmt wrapping")
	}
	if IsKind(fmt.Errorf("plain"), KindNotFound) {
		t.Error("plain error must not match a kind")
	}
	if IsKind(nil, KindNotFound) {
		t.Error("nil must not match a kind")
	}
}

func TestWrapOpComponentKind(t *testing.T) {
	if WrapOpComponentKind(nil, "sqlite.Get", "storage/sqlite", KindStorage) != nil {
		t.Fatal("expected nil for nil error")
	}

	cause := fmt.Errorf("database connection failed")
	err := WrapOpComponentKind(cause, "sqlite.Get", "storage/sqlite", KindStorage)

	syncErr, ok := err.(*SyncError)
	if !ok {
		t.Fatalf("Expected *SyncError, got %T", err)
	}
	if syncErr.Op != "sqlite.Get" {
		t.Errorf("Expected Op sqlite.Get, got %s", syncErr.Op)
	}
	if syncErr.Component != "storage/sqlite" {
		t.Errorf("Expected Component storage/sqlite, got %s", syncErr.Component)
	}
	if syncErr.Kind != KindStorage {
		t.Errorf("Expected Kind %s, got %s", KindStorage, syncErr.Kind)
	}
	if syncErr.Err != cause {
		t.Errorf("Expected underlying error %v, got %v", cause, syncErr.Err)
	}
}
