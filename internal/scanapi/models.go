package scanapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/secboard/internal/webclient"
)

// Remote scan states. Anything other than completed or failed counts as
// still running.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type startScanRequest struct {
	Domain string `json:"domain"`
}

type startScanResponse struct {
	ScanID string `json:"scanId"`
}

// ScanStatus is the body of GET /status/{scanId}.
type ScanStatus struct {
	ScanID string `json:"scanId,omitempty"`
	Status string `json:"status"`
}

func (s *ScanStatus) Completed() bool { return s.Status == StatusCompleted }
func (s *ScanStatus) Failed() bool    { return s.Status == StatusFailed }

// LatestScan is the body of GET /latest/{domain}.
type LatestScan struct {
	ScanID    string `json:"scanId"`
	Timestamp string `json:"timestamp,omitempty"`
}

// APIError is a non-2xx answer from the scan service.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func newAPIError(op string, resp *webclient.Response) *APIError {
	e := &APIError{Op: op, StatusCode: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(resp.Body, &body) == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
	}
	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(resp.StatusCode))
	}
	return e
}
