// Package component defines the contract every orchestrated UI unit
// implements and the states it moves through.
//
// # Phases
//
// A [Component] is driven through four phases by the lifecycle controller:
//
//   - LocalInit: set up the owned display subtree, return new children
//   - SetupDependencies: resolve peers through the injected [Lookup]
//   - Activate: begin emitting and subscribing on the event bus
//   - Deactivate: release subscriptions and owned resources (idempotent)
//
// # States
//
// Components move forward through [StateConstructed], [StateLocallyInitialized],
// [StateDependenciesReady], [StateActive] and [StateDeactivated]. [StateFailed]
// is terminal and excludes the component from later phases.
//
// # Peer Lookup
//
// Components never receive peers as phase parameters. A component that
// implements [Binder] receives a tree-scoped [Lookup] when it is discovered.
// During SetupDependencies it may only assume peers have completed LocalInit;
// [Lookup.Await] waits for a peer to reach a later state explicitly.
//
// Embed [Base] for identifier handling, lookup binding and idempotent release
// of bus subscriptions.
package component
