// Package workflow holds the Temporal workflow that runs a durable practice
// session.
//
// PracticeWorkflow creates and starts a session, waits for the essay to
// arrive by signal, and has it assessed. The session survives CLI crashes
// and worker restarts; the CLI can reattach through the session query.
//
// Workflows here must stay deterministic. Clock reads, ids, and all I/O go
// through workflow APIs or activities.
package workflow
