package scan

import (
	"errors"

	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/scanapi"
)

var (
	// ErrInvalidDomain is identity.ErrInvalidDomain so either can be matched.
	ErrInvalidDomain = identity.ErrInvalidDomain

	ErrScanStart     = errors.New("scan start failed")
	ErrScanTimeout   = errors.New("scan timed out")
	ErrScanFailed    = errors.New("scan failed")
	ErrScanTransport = errors.New("scan service unreachable")
	ErrScanCanceled  = errors.New("scan canceled")
	ErrClosed        = errors.New("coordinator closed")
	ErrNoSession     = errors.New("unknown scan session")
)

// User-facing messages placed in State.ErrorMessage.
const (
	MsgInvalidDomain = "Cannot extract domain from email address."
	MsgScanFailed    = "Scan failed. Please try again."
	MsgScanTimeout   = "Scan timed out. Please try again."
	MsgStartFallback = "Failed to start scan."
)

// startErrorMessage prefers the service's own message.
func startErrorMessage(err error) string {
	var apiErr *scanapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return MsgStartFallback
}

func transportErrorMessage(err error) string {
	var apiErr *scanapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
