// Package lifecycle builds a tree of components and drives it through the
// four lifecycle phases.
//
// # Phases
//
// Run discovers the tree breadth first: LocalInit runs on every node of the
// current frontier concurrently, the children they return become the next
// frontier, and discovery repeats until a frontier yields no children. Only
// then does SetupDependencies run, followed by Activate. Shutdown runs
// Deactivate deepest level first.
//
// # Barriers
//
// Every phase call of a barrier is started together and the controller waits
// for all of them to settle. A call that exceeds Options.PhaseTimeout fails
// its component with a TimeoutError and is abandoned; its late result is
// ignored. With ScopeTree (the default) phases 2 and 3 run the whole tree
// behind a single barrier, so components can await peers at any depth. With
// ScopeLevel they run one depth at a time and an Await on a deeper component
// fails immediately with a DependencyUnresolvedError.
//
// The guarantees are:
//   - a node's LocalInit completes before its children's LocalInit starts
//   - every LocalInit completes before any SetupDependencies starts
//   - every SetupDependencies completes before any Activate starts
//   - every child's Deactivate completes before its parent's starts
//
// Order among siblings and cousins within a barrier is unspecified.
//
// # Failure policy
//
// Phase failures are recorded against the component and never escape the
// barrier. A LocalInit failure drops the component's subtree. Later failures
// exclude only the component itself. Unless Options.ContinueOnError is set,
// the first barrier that records a failure aborts the run and everything
// already initialized is torn down.
//
// # Basic Usage
//
//	ctrl := lifecycle.New(lifecycle.DefaultOptions(), registry.New(), emitter, logger)
//	result, err := ctrl.Run(ctx, []component.Component{page})
//	if err != nil {
//	    return err // duplicate identifier or canceled
//	}
//	for _, f := range result.Failed {
//	    logger.Warn("component failed", "id", f.ComponentID, "error", f.Err)
//	}
//	defer ctrl.Shutdown(context.Background())
package lifecycle
