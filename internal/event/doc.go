// Package event provides a scoped pub-sub bus for lateral communication
// between active components.
//
// Components may only subscribe or emit once they are active; the lifecycle
// controller never publishes on this bus (orchestration signals go to the
// diagnostics package instead).
//
// # Main Types
//
//   - [Bus]: synchronous, goroutine-safe dispatcher
//   - [Message]: one published event (type, payload, target, source)
//   - [Handler]: func(Message)
//   - [Unsubscribe]: idempotent removal function returned by Subscribe
//
// # Scoping
//
// A message with an empty Target reaches every subscriber of its type. A
// message with a Target reaches only subscriptions registered with
// [InScope] equal to that target.
//
// # Ownership
//
// Subscriptions registered with [OwnedBy] are counted per owner, which lets
// the lifecycle controller report handlers that a component forgot to remove
// in Deactivate.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	unsub := bus.Subscribe("unit.selected", func(m event.Message) {
//	    panel.Show(m.Payload.(UnitID))
//	}, event.InScope("stat-panel"), event.OwnedBy("stat-panel"))
//	defer unsub()
//
//	bus.Emit("unit.selected", UnitID(7), "stat-panel", "map-viewer")
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action", e.g. "unit.selected",
// "drawer.opened", "turn.ended".
package event
