// Package watch keeps a running browser extension in sync with its sources.
//
// A [Source] watches one or more roots recursively with fsnotify and turns
// raw notifications into [ChangeEvent]s. [Normalize] renders each event as a
// short "kind:path" reason. The [Scheduler] collects reasons into a
// deduplicated set and, once the quiet period passes without new events,
// hands the whole set to the [Orchestrator] in a single trigger.
//
// The Orchestrator runs at most one build-then-reload cycle at a time.
// Triggers that arrive while a cycle is running are merged into a single
// follow-up cycle that starts as soon as the current one finishes. Cycle
// failures are reported on the console and never stop the watch loop.
package watch
