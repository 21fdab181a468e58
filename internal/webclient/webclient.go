package webclient

import "context"

// WebClient executes outbound HTTP requests for the scan API adapter.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}
