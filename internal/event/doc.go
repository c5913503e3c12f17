// Package event provides a pub-sub event bus that the engine uses to
// announce graph mutations and analysis results.
//
// Subscribers such as the CLI watcher or an embedding application learn
// what changed without the engine knowing who is listening.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Graph mutations:
//   - [TaskAddedEvent], [TaskUpdatedEvent], [TaskDeletedEvent], [TaskMovedEvent]
//   - [ResourceChangedEvent]
//   - [CalendarChangedEvent]
//
// Scheduling:
//   - [SchedulePropagatedEvent]: the ids whose dates moved after a mutation
//
// Analysis:
//   - [CriticalPathEvent]
//   - [ForecastEvent]
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on the
// publishing goroutine. A panicking handler is recovered and logged, and the
// remaining handlers still run.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeSchedulePropagated, func(e event.Event) {
//	    p := e.(event.SchedulePropagatedEvent)
//	    fmt.Println("moved:", p.ChangedIDs)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
package event
