package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/raysh454/secboard/internal/scanapi"
)

// SampleReport is a small report touching the modules tests care about.
const SampleReport = `{
  "groupedResults": {
    "dnsSecurity": {
      "example.com": {"findings": [{"controlId":"DNS-1","controlName":"DNSSEC","severity":"Medium","observation":"zone is unsigned"}]}
    },
    "quantumSecurity": {
      "*.example.com": {"error": "handshake timeout"},
      "example.com": {"findings": [], "quantumExposure": {"isQuantumVulnerable": true, "severityScore": 6.5}}
    }
  },
  "spfSecurity": {
    "example.com": {"findings": [], "rawSPFRecord": "v=spf1 include:_spf.example.com ~all"}
  }
}`

// FakeScanAPI is a scripted remote scan service.
//
// Each scan answers "pending" PendingPolls times and then "completed". When
// FailAtPoll is n > 0 the n-th poll answers "failed" instead. AlwaysPending
// never completes.
type FakeScanAPI struct {
	mu sync.Mutex

	PendingPolls  int
	FailAtPoll    int
	AlwaysPending bool

	StartErr  error
	StatusErr error
	ReportErr error
	LatestErr error

	// ReportBody is served for every scan; SampleReport when empty.
	ReportBody json.RawMessage

	// LatestByDomain answers Latest; domains not present have no prior scan.
	LatestByDomain map[string]*scanapi.LatestScan

	// StartGate, when set, blocks StartScan until it is closed or ctx ends.
	StartGate chan struct{}

	started []string
	polls   map[string]int
	calls   map[string]int
}

func (f *FakeScanAPI) StartScan(ctx context.Context, domain string) (string, error) {
	if f.StartGate != nil {
		select {
		case <-f.StartGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("start")
	if f.StartErr != nil {
		return "", f.StartErr
	}
	f.started = append(f.started, domain)
	return fmt.Sprintf("scan-%d", len(f.started)), nil
}

func (f *FakeScanAPI) Status(ctx context.Context, scanID string) (*scanapi.ScanStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("status")
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[scanID]++
	n := f.polls[scanID]

	status := scanapi.StatusPending
	switch {
	case f.FailAtPoll > 0 && n == f.FailAtPoll:
		status = scanapi.StatusFailed
	case f.AlwaysPending:
	case n > f.PendingPolls:
		status = scanapi.StatusCompleted
	}
	return &scanapi.ScanStatus{ScanID: scanID, Status: status}, nil
}

func (f *FakeScanAPI) Report(ctx context.Context, scanID string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("report")
	if f.ReportErr != nil {
		return nil, f.ReportErr
	}
	if len(f.ReportBody) > 0 {
		return f.ReportBody, nil
	}
	return json.RawMessage(SampleReport), nil
}

func (f *FakeScanAPI) Latest(ctx context.Context, domain string) (*scanapi.LatestScan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("latest")
	if f.LatestErr != nil {
		return nil, f.LatestErr
	}
	return f.LatestByDomain[domain], nil
}

// Calls returns how many times op ("start", "status", "report", "latest")
// was invoked.
func (f *FakeScanAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Polls returns how many status polls scanID received.
func (f *FakeScanAPI) Polls(scanID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[scanID]
}

// Started returns the domains scans were started for, in order.
func (f *FakeScanAPI) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func (f *FakeScanAPI) count(op string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}
