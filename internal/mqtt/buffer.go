package mqtt

import "github.com/rs/zerolog/log"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox queues messages published while the broker is unreachable, oldest
// first. Once full, each push evicts the oldest message.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type outbox struct {
	msgs    []bufferedMsg
	limit   int
	dropped int // evicted since the last drain
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{msgs: make([]bufferedMsg, 0, limit), limit: limit}
}

func (o *outbox) push(msg bufferedMsg) {
	if len(o.msgs) == o.limit {
		if o.dropped == 0 {
			log.Warn().Int("limit", o.limit).Msg("mqtt outbox full, dropping oldest")
		}
		o.msgs = append(o.msgs[:0], o.msgs[1:]...)
		o.dropped++
	}
	o.msgs = append(o.msgs, msg)
}

// drain empties the outbox and returns its messages, oldest first, with the
// number evicted since the previous drain.
func (o *outbox) drain() ([]bufferedMsg, int) {
	dropped := o.dropped
	o.dropped = 0
	if len(o.msgs) == 0 {
		return nil, dropped
	}
	out := o.msgs
	o.msgs = make([]bufferedMsg, 0, o.limit)
	return out, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
