package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vault/pkg/simplevault"
	"github.com/tendant/simple-vault/pkg/simplevault/events/memory"
)

func renamed(name string) simplevault.Event {
	file := &simplevault.FileWithVersions{File: simplevault.File{ID: uuid.New(), Name: name}}
	return simplevault.NewFileUpdated(uuid.New(), time.Now(), nil, file, "before.txt")
}

func TestLog_IndependentGroupsCatchUp(t *testing.T) {
	log := memory.New()
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, log.Publish(ctx, renamed(name)))
	}

	for _, group := range []string{"audit", "analytics"} {
		consumeCtx, cancel := context.WithCancel(ctx)
		var names []string
		var err error
		done := make(chan struct{})
		go func() {
			defer close(done)
			err = log.Consume(consumeCtx, group, func(_ context.Context, rec simplevault.DurableRecord) error {
				names = append(names, rec.Metadata["fileName"].(string))
				if len(names) == 3 {
					cancel()
				}
				return nil
			})
		}()
		<-done
		cancel()

		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names, group)
		assert.Equal(t, 3, log.Offset(group))
	}
}

func TestLog_FailedRecordIsRedelivered(t *testing.T) {
	log := memory.New()
	ctx := context.Background()
	require.NoError(t, log.Publish(ctx, renamed("a.txt")))
	require.NoError(t, log.Publish(ctx, renamed("b.txt")))

	sinkDown := errors.New("sink down")
	attempts := map[string]int{}
	handler := func(_ context.Context, rec simplevault.DurableRecord) error {
		name := rec.Metadata["fileName"].(string)
		attempts[name]++
		if name == "b.txt" && attempts[name] == 1 {
			return sinkDown
		}
		return nil
	}

	err := log.Consume(ctx, "audit", handler)
	assert.ErrorIs(t, err, sinkDown)
	assert.Equal(t, 1, log.Offset("audit"))

	consumeCtx, cancel := context.WithCancel(ctx)
	go func() {
		for log.Offset("audit") < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	require.NoError(t, log.Consume(consumeCtx, "audit", handler))
	assert.Equal(t, map[string]int{"a.txt": 1, "b.txt": 2}, attempts)
}

func TestLog_ConsumerWakesOnAppend(t *testing.T) {
	log := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []uuid.UUID
	go func() {
		_ = log.Consume(ctx, "live", func(_ context.Context, rec simplevault.DurableRecord) error {
			mu.Lock()
			got = append(got, rec.FileID)
			mu.Unlock()
			return nil
		})
	}()

	event := renamed("late.txt")
	require.NoError(t, log.Publish(ctx, event))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == event.Subject()
	}, time.Second, 5*time.Millisecond)
}
