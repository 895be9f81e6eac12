// Package status turns fleet snapshots into the operator dashboard.
//
// ComputeStatus maps one agent view to a label by fixed precedence. The
// Aggregator fingerprints every snapshot it is handed and only redraws
// when the fingerprint moves, so the many internal events that change
// nothing visible do not repaint the screen.
package status
