package synckit

import "time"

// MetricsCollector provides hooks for collecting sync operation metrics
type MetricsCollector interface {
	// RecordSyncDuration records how long an operation took
	RecordSyncDuration(operation string, duration time.Duration)

	// RecordSyncRecords records how many records a merge inserted and overwrote
	RecordSyncRecords(inserted, updated int)

	// RecordSyncErrors records operation errors by type
	RecordSyncErrors(operation string, errorType string)

	// RecordConflicts records the number of conflicts a merge detected
	RecordConflicts(detected int)

	// RecordResolutions records manually resolved conflicts by choice
	RecordResolutions(choice string, resolved int)

	// RecordSkipped records a sync attempt dropped by the reentrancy guard
	RecordSkipped(trigger string)
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordSyncDuration(operation string, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordSyncRecords(inserted, updated int)                     {}
func (n *NoOpMetricsCollector) RecordSyncErrors(operation string, errorType string)         {}
func (n *NoOpMetricsCollector) RecordConflicts(detected int)                                {}
func (n *NoOpMetricsCollector) RecordResolutions(choice string, resolved int)               {}
func (n *NoOpMetricsCollector) RecordSkipped(trigger string)                                {}
