package utils

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/testutils"
)

func TestOpsQueue_RunsInOrder(t *testing.T) {
	oq := NewOpsQueue(logger.GetLogger(), "test", 64)
	oq.Start()

	var lock sync.Mutex
	var seen []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, oq.Enqueue(func() {
			lock.Lock()
			seen = append(seen, i)
			lock.Unlock()
		}))
	}
	require.True(t, oq.Do(func() {}))

	lock.Lock()
	defer lock.Unlock()
	require.Len(t, seen, 50)
	for i, v := range seen {
		require.Equal(t, i, v)
	}
}

func TestOpsQueue_Stop(t *testing.T) {
	oq := NewOpsQueue(logger.GetLogger(), "test", 4)
	oq.Start()

	ran := false
	require.True(t, oq.Enqueue(func() { ran = true }))
	oq.Stop()
	oq.Stop()
	<-oq.Done()
	require.True(t, ran)

	require.False(t, oq.Enqueue(func() {}))
	require.False(t, oq.Do(func() {}))
}

func TestOpsQueue_Full(t *testing.T) {
	oq := NewOpsQueue(logger.GetLogger(), "test", 1)

	var lock sync.Mutex
	var seen []int
	op := func(i int) func() {
		return func() {
			lock.Lock()
			seen = append(seen, i)
			lock.Unlock()
		}
	}

	require.True(t, oq.Enqueue(op(1)))
	require.False(t, oq.Enqueue(op(2)))
	require.True(t, oq.EnqueueReliable(op(3)))
	// parked operations are not overtaken
	require.False(t, oq.Enqueue(op(4)))
	require.True(t, oq.EnqueueReliable(op(5)))

	oq.Start()
	testutils.WithTimeout(t, func() string {
		lock.Lock()
		defer lock.Unlock()
		if len(seen) != 3 {
			return fmt.Sprintf("ran %d operations", len(seen))
		}
		return ""
	})

	// drained, the queue accepts again
	require.True(t, oq.Do(op(6)))
	oq.Stop()
	<-oq.Done()

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []int{1, 3, 5, 6}, seen)
}

func TestOpsQueue_StopDrainsParked(t *testing.T) {
	oq := NewOpsQueue(logger.GetLogger(), "test", 1)

	var seen []int
	require.True(t, oq.Enqueue(func() { seen = append(seen, 1) }))
	require.True(t, oq.EnqueueReliable(func() { seen = append(seen, 2) }))
	oq.Start()
	oq.Stop()
	<-oq.Done()
	require.Equal(t, []int{1, 2}, seen)
	require.False(t, oq.EnqueueReliable(func() {}))
}

func TestOpsQueue_StopWithoutStart(t *testing.T) {
	oq := NewOpsQueue(logger.GetLogger(), "test", 4)
	oq.Stop()
	<-oq.Done()
}

func TestNewGuid(t *testing.T) {
	a := NewGuid(IdentityPrefix)
	b := NewGuid(IdentityPrefix)
	require.NotEqual(t, a, b)
	require.Regexp(t, "^user-[0-9A-Za-z]{6,}$", a)
}
