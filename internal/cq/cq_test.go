package cq_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spud93/rma/internal/cq"
)

func TestChanCQPostAndRead(t *testing.T) {
	c := cq.NewChanCQ(2)
	require.NoError(t, c.Post(cq.Event{Flags: cq.EventWrite, Len: 10}))
	require.NoError(t, c.Post(cq.Event{Flags: cq.EventRead, Len: 20}))

	ev1 := c.Read()
	require.Equal(t, cq.EventWrite, ev1.Flags)
	require.Equal(t, uint64(10), ev1.Len)

	ev2, ok := c.TryRead()
	require.True(t, ok)
	require.Equal(t, cq.EventRead, ev2.Flags)

	_, ok = c.TryRead()
	require.False(t, ok)
}

func TestChanCQPostReturnsErrCQFullWhenSaturated(t *testing.T) {
	c := cq.NewChanCQ(1)
	require.NoError(t, c.Post(cq.Event{}))
	err := c.Post(cq.Event{})
	require.Error(t, err)
	require.True(t, errors.Is(err, cq.ErrCQFull))
}

func TestNoOpCounterDoesNotPanic(t *testing.T) {
	var c cq.NoOpCounter
	c.Inc()
	c.Inc()
}
