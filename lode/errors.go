package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) rather than matching messages.
var (
	// ErrPermissionDenied indicates a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound indicates the target path does not exist (ENOENT, 404).
	ErrNotFound = errors.New("not found")
	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")
	// ErrAuth indicates missing or rejected credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied indicates valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")
	// ErrNetwork indicates a network-level failure.
	ErrNetwork = errors.New("network error")
	// ErrStorage is the kind of every failure no rule recognizes.
	ErrStorage = errors.New("storage error")
)

// StorageError is a classified storage failure. The underlying error stays
// in the chain for errors.As.
type StorageError struct {
	// Kind is the classification sentinel.
	Kind error
	// Op is the failed operation: "init", "write" or "read".
	Op string
	// Path is the storage path involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the classification sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// WrapWriteError classifies a write failure. Returns nil for nil.
func WrapWriteError(err error, path string) error {
	return wrap(err, "write", path)
}

// WrapReadError classifies a read failure. Returns nil for nil.
func WrapReadError(err error, path string) error {
	return wrap(err, "read", path)
}

// WrapInitError classifies a client initialization failure.
// Returns nil for nil.
func WrapInitError(err error, dataset string) error {
	return wrap(err, "init", dataset)
}

func wrap(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var already *StorageError
	if errors.As(err, &already) {
		return err
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// classifyRules map message fragments to kinds. Order matters: the first
// matching rule wins.
var classifyRules = []struct {
	kind      error
	fragments []string
}{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey", "nosuchbucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, []string{"nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "no such host", "dial tcp"}},
}

func classifyError(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, f := range rule.fragments {
			if strings.Contains(msg, f) {
				return rule.kind
			}
		}
	}
	return ErrStorage
}
