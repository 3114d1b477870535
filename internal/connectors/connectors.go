package connectors

import "context"

// Connector is a long-running inbound source. Start blocks until ctx is done
// or the connection fails for good.
type Connector interface {
	Name() string
	Start(ctx context.Context) error
}
