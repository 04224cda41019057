package router

import (
	"encoding/json"
	"fmt"

	"github.com/mantlenetworkio/ethbridge/bridge-router/db"
	"github.com/mantlenetworkio/ethbridge/bridge-router/types"
)

// MaxEventsPerQuery bounds the number of events returned by one query.
const MaxEventsPerQuery = 1000

func eventKey(seq uint64) []byte {
	return db.Key(db.PrefixEvent, db.U64(seq))
}

// appendEvents assigns sequence numbers to the events and stores them.
// Sequence numbers start at 1 and have no gaps.
func appendEvents(kv db.KV, events []types.Event) error {
	if len(events) == 0 {
		return nil
	}
	seq, err := db.GetU64(kv, eventSeqKey)
	if err != nil {
		return err
	}
	for i := range events {
		seq++
		events[i].Seq = seq
		data, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", events[i].Kind, err)
		}
		if err := kv.Set(eventKey(seq), data); err != nil {
			return err
		}
	}
	return db.SetU64(kv, eventSeqKey, seq)
}

// readEvents returns up to limit events starting at sequence number from.
func readEvents(r db.Reader, from uint64, limit int) ([]types.Event, error) {
	if limit <= 0 || limit > MaxEventsPerQuery {
		limit = MaxEventsPerQuery
	}
	last, err := db.GetU64(r, eventSeqKey)
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	out := make([]types.Event, 0)
	for seq := from; seq <= last && len(out) < limit; seq++ {
		data, ok, err := r.Get(eventKey(seq))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: event %d missing", types.ErrRegistry, seq)
		}
		var ev types.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: bad event %d: %w", types.ErrRegistry, seq, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
