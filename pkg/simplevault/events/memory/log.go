// Package memory is an in-process durable log with per-group offsets. It
// stands in for Kafka in tests and single-node deployments; records live only
// as long as the process.
package memory

import (
	"context"
	"sync"

	"github.com/tendant/simple-vault/pkg/simplevault"
)

// Handler processes one record. An error stops consumption without
// advancing the group's offset.
type Handler func(ctx context.Context, record simplevault.DurableRecord) error

// Log implements simplevault.DurableLog
type Log struct {
	mu      sync.Mutex
	records [][]byte
	offsets map[string]int
	// appended is closed and replaced on every append to wake consumers
	appended chan struct{}
}

// New creates an empty log
func New() *Log {
	return &Log{
		offsets:  make(map[string]int),
		appended: make(chan struct{}),
	}
}

// Publish appends the event's durable record
func (l *Log) Publish(ctx context.Context, event simplevault.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := simplevault.NewDurableRecord(event).Marshal()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, data)
	close(l.appended)
	l.appended = make(chan struct{})
	return nil
}

// Consume delivers records to handler from group's committed offset, then
// waits for new ones until ctx is done. The offset advances only after the
// handler returns nil, so a failed record is delivered again on the next call.
func (l *Log) Consume(ctx context.Context, group string, handler Handler) error {
	for {
		data, offset, wait := l.next(group)
		if data == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-wait:
				continue
			}
		}

		record, err := simplevault.UnmarshalDurableRecord(data)
		if err == nil {
			err = handler(ctx, record)
		}
		if err != nil {
			return err
		}
		l.commit(group, offset+1)
	}
}

// Len returns the number of records appended so far
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Offset returns the next offset group will read
func (l *Log) Offset(group string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offsets[group]
}

func (l *Log) next(group string) ([]byte, int, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset := l.offsets[group]
	if offset < len(l.records) {
		return l.records[offset], offset, nil
	}
	return nil, offset, l.appended
}

func (l *Log) commit(group string, offset int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if offset > l.offsets[group] {
		l.offsets[group] = offset
	}
}
