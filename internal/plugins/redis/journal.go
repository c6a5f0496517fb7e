package redis

import (
	"context"
	"encoding/json"

	"parley/internal/core/contracts"
	"parley/internal/core/domain"
)

// CallJournal publishes call lifecycle records to a stream for the call
// worker.
type CallJournal struct {
	queue  contracts.MessageQueue
	stream string
}

var _ contracts.CallJournal = (*CallJournal)(nil)

func NewCallJournal(queue contracts.MessageQueue, stream string) *CallJournal {
	return &CallJournal{queue: queue, stream: stream}
}

func (j *CallJournal) Record(ctx context.Context, rec domain.CallRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.queue.PublishToStream(ctx, j.stream, raw)
}
