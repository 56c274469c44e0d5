package events_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/undercroft/undercroft/internal/events"
)

type testListener struct {
	id       string
	priority int
	handler  func(events.Event) error
}

func (l *testListener) ID() string                       { return l.id }
func (l *testListener) Priority() int                    { return l.priority }
func (l *testListener) HandleEvent(e events.Event) error { return l.handler(e) }

func TestBus_PriorityOrder(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	var executionOrder []string

	low := &testListener{
		id:       "low",
		priority: 300,
		handler: func(e events.Event) error {
			executionOrder = append(executionOrder, "low")
			return nil
		},
	}
	high := &testListener{
		id:       "high",
		priority: 100,
		handler: func(e events.Event) error {
			executionOrder = append(executionOrder, "high")
			return nil
		},
	}
	medium := &testListener{
		id:       "medium",
		priority: 200,
		handler: func(e events.Event) error {
			executionOrder = append(executionOrder, "medium")
			return nil
		},
	}

	bus.Subscribe(events.EventTypeDamageDealt, low)
	bus.Subscribe(events.EventTypeDamageDealt, high)
	bus.Subscribe(events.EventTypeDamageDealt, medium)

	bus.Emit(&events.RewardEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypeDamageDealt},
	})

	assert.Equal(t, []string{"high", "medium", "low"}, executionOrder)
}

func TestBus_ListenerErrorDoesNotStopPropagation(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	var secondRan bool

	bus.Subscribe(events.EventTypeMonsterDied, &testListener{
		id:       "failing",
		priority: 100,
		handler: func(e events.Event) error {
			return errors.New("handler broke")
		},
	})
	bus.Subscribe(events.EventTypeMonsterDied, &testListener{
		id:       "second",
		priority: 200,
		handler: func(e events.Event) error {
			secondRan = true
			return nil
		},
	})

	bus.Emit(&events.RewardEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypeMonsterDied},
	})

	assert.True(t, secondRan)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	var calls int
	bus.Subscribe(events.EventTypePlayerJoined, &testListener{
		id:       "counter",
		priority: 100,
		handler: func(e events.Event) error {
			calls++
			return nil
		},
	})

	bus.Emit(&events.PlayerJoinedEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypePlayerJoined},
	})
	bus.Unsubscribe(events.EventTypePlayerJoined, "counter")
	bus.Emit(&events.PlayerJoinedEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypePlayerJoined},
	})

	assert.Equal(t, 1, calls)
}

func TestBus_EmitAsync(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	var mu sync.Mutex
	var got []string

	bus.Subscribe(events.EventTypeDamageDealt, &testListener{
		id:       "collector",
		priority: 100,
		handler: func(e events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, e.GetGameID())
			return nil
		},
	})

	for i := 0; i < 5; i++ {
		bus.EmitAsync(&events.RewardEvent{
			BaseEvent: events.BaseEvent{
				Type:   events.EventTypeDamageDealt,
				GameID: fmt.Sprintf("game-%d", i),
			},
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, time.Second, 5*time.Millisecond)

	// The single dispatcher preserves enqueue order
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"game-0", "game-1", "game-2", "game-3", "game-4"}, got)
}

func TestBus_HistoryBounded(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	for i := 0; i < 300; i++ {
		bus.Emit(&events.PlayerJoinedEvent{
			BaseEvent: events.BaseEvent{
				Type:   events.EventTypePlayerJoined,
				GameID: fmt.Sprintf("g%d", i),
			},
		})
	}

	history := bus.History()
	require.Len(t, history, 256)
	assert.Equal(t, "g44", history[0].GetGameID(), "oldest retained event")
	assert.Equal(t, "g299", history[len(history)-1].GetGameID(), "newest event")
}
