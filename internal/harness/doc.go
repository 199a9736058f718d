// Package harness runs recording scenarios end to end: a puzzle, a policy
// and a sequence of observed batches are fed through a recorder session
// backed by in-memory storage, and the final record and replay are checked
// against assertions and golden snapshots.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	policy:
//	  flush_threshold: 30
//	  resume_after_solve: false
//	  event_log_level: full
//	puzzle:
//	  title: Mini
//	  rows: ["..#", "..."]   # "." open, "#" block, letters pre-filled
//	  labels: { "1": [0, 0] }
//	  clues:
//	    Across:
//	      - { label: "1", text: "Greeting" }
//	steps:
//	  - at: 1000
//	    batch:
//	      - { kind: start }
//	      - { kind: update, x: 0, y: 0, fill: H }
//	  - close: true
//	assertions:
//	  - type: status
//	    status: stopped
//	  - type: rejected
//	    step: 1
//	    reason: stopped
//
// # Steps
//
//   - at + batch: offer the batch observed at that instant
//   - flush: write the record now and wait for the outcome
//   - close: tear the session down
//   - reopen: close, then open a new session over the same storage
//   - reset: delete the stored record and start over
//
// # Deterministic Testing
//
// Every scenario runs on a fake clock advanced to each step's at value and
// a fixed recording ID, so snapshots are identical across runs.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
