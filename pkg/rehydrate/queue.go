package rehydrate

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/vango-dev/flight/pkg/protocol"
)

// Record is one key/value pair on the data channel.
type Record = protocol.Record

// GlobalName is the client global inline scripts push records onto.
const GlobalName = "__flight_data"

// Queue collects records for one response. It is safe for concurrent use
// by the components of one render.
type Queue struct {
	mu      sync.Mutex
	written map[string]struct{}
	pending []Record
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{written: make(map[string]struct{})}
}

// Write enqueues r unless a record with the same key was already written in
// this response. It reports whether r was enqueued.
func (q *Queue) Write(r Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.written[r.Key]; ok {
		return false
	}
	q.written[r.Key] = struct{}{}
	q.pending = append(q.pending, r)
	return true
}

// Push marshals value and writes it under key.
func (q *Queue) Push(key string, value any) (bool, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("rehydrate: marshal %q: %w", key, err)
	}
	return q.Write(Record{Key: key, Value: b}), nil
}

// Written reports whether key has been written in this response.
func (q *Queue) Written(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.written[key]
	return ok
}

// Pending returns the number of records not yet flushed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush returns the pending records in write order and clears them.
// Their keys stay written.
func (q *Queue) Flush() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Script flushes the queue into an inline script for an HTML response, or
// returns "" when nothing is pending. Values are JSON with <, > and &
// escaped, so the payload cannot close the script element.
func (q *Queue) Script() string {
	records := q.Flush()
	if len(records) == 0 {
		return ""
	}
	payload, err := json.Marshal(records)
	if err != nil {
		// Values were validated by Push or the stream decoder; a raw
		// Write with invalid JSON lands here.
		logger.Error("dropping unencodable rehydration records", "error", err)
		return ""
	}
	var b strings.Builder
	b.WriteString("<script>(self.")
	b.WriteString(GlobalName)
	b.WriteString(" ||= []).push(...")
	b.Write(payload)
	b.WriteString(")</script>")
	return b.String()
}
