package core

import (
	"time"

	"github.com/rowanvale/forest/pkg/models"
)

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability
// package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// CompletionEvent is published after a block completion commits, carrying
// everything the strategy evolution needs to react asynchronously.
type CompletionEvent struct {
	ProjectID     string
	PathName      string
	Block         *models.ScheduleBlock
	Task          *models.Task
	Opportunities []string
	At            time.Time
}

// CompletionBus is the explicit, typed coupling between the completion
// handler and whatever consumes completion events (strategy evolution, the
// dashboard). Publishing never blocks: when no consumer keeps up the oldest
// buffered event is dropped.
type CompletionBus struct {
	ch chan CompletionEvent
}

// NewCompletionBus creates a bus with the given buffer size.
func NewCompletionBus(buffer int) *CompletionBus {
	if buffer <= 0 {
		buffer = 16
	}
	return &CompletionBus{ch: make(chan CompletionEvent, buffer)}
}

// Publish enqueues an event, evicting the oldest buffered event if full.
func (b *CompletionBus) Publish(event CompletionEvent) {
	for {
		select {
		case b.ch <- event:
			return
		default:
			select {
			case <-b.ch:
			default:
			}
		}
	}
}

// Events returns the receive side of the bus.
func (b *CompletionBus) Events() <-chan CompletionEvent {
	return b.ch
}
