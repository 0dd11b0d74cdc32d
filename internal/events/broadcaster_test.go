package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FansOut(t *testing.T) {
	b := NewBroadcaster[int](4)
	first := b.Subscribe()
	second := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	b.Publish(7)

	require.Equal(t, 7, <-first)
	require.Equal(t, 7, <-second)
}

func TestBroadcaster_DropsForSlowReader(t *testing.T) {
	b := NewBroadcaster[int](1)
	ch := b.Subscribe()

	b.Publish(1)
	b.Publish(2)

	require.Equal(t, 1, <-ch)
	require.Empty(t, ch)
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster[string](0)
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, b.Subscribers())

	b.Publish("ignored")
}
