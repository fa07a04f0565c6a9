package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_FanOut(t *testing.T) {
	n := NewNotifier()

	first, second := 0, 0
	unsubFirst := n.Subscribe(func() { first++ })
	n.Subscribe(func() { second++ })

	n.Notify()
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)

	unsubFirst()
	n.Notify()
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	// Unsubscribing twice is harmless.
	unsubFirst()
	n.Notify()
	assert.Equal(t, 3, second)
}

func TestNotifier_SubscribeDuringDispatch(t *testing.T) {
	n := NewNotifier()

	lateCalls := 0
	n.Subscribe(func() {
		n.Subscribe(func() { lateCalls++ })
	})

	n.Notify()
	assert.Zero(t, lateCalls)

	n.Notify()
	assert.Equal(t, 1, lateCalls)
}

func TestNotifier_NoSubscribers(t *testing.T) {
	n := NewNotifier()
	n.Notify()
}
