package demoserver

// Config holds configuration for the demo server.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// Scenario is the initial behaviour of the scan endpoints.
	Scenario Scenario
}

// Scenario scripts how scans started on the demo server progress.
type Scenario struct {
	// PendingPolls is how many status polls answer "pending" before a scan
	// completes.
	PendingPolls int `json:"pending_polls"`

	// FailAtPoll, when > 0, makes that poll answer "failed".
	FailAtPoll int `json:"fail_at_poll"`

	// NeverComplete keeps every scan pending.
	NeverComplete bool `json:"never_complete"`

	// LatestEnabled makes /latest/{domain} report the newest completed scan.
	LatestEnabled bool `json:"latest_enabled"`

	// StartError, when set, rejects new scans with this message.
	StartError string `json:"start_error,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port: 9999,
		Scenario: Scenario{
			PendingPolls:  3,
			LatestEnabled: true,
		},
	}
}
