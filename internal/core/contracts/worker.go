package contracts

import "context"

type AsyncWorker interface {
	// Run subscribes to the worker's stream and blocks until ctx is done
	Run(ctx context.Context) error
	// ProcessMessage handles one stream entry.
	// Persists the payload, acks the entry, then deletes it from the stream
	ProcessMessage(ctx context.Context, msgID string, rawData []byte) error
}
