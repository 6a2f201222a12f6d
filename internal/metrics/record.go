package metrics

import (
	"strconv"
	"time"
)

// Все методы допускают nil-получатель: компоненты работают и без метрик.

// RecordTransaction records a finished sync transaction
func (r *Registry) RecordTransaction(entityType, source, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.TransactionsTotal.WithLabelValues(entityType, source, outcome).Inc()
	r.TransactionDuration.WithLabelValues(entityType).Observe(duration.Seconds())
}

// RecordConflict records a detected conflict
func (r *Registry) RecordConflict(entityType string) {
	if r == nil {
		return
	}
	r.ConflictsDetectedTotal.WithLabelValues(entityType).Inc()
}

// RecordResolution records a successful conflict resolution
func (r *Registry) RecordResolution(strategy string) {
	if r == nil {
		return
	}
	r.ResolutionsTotal.WithLabelValues(strategy).Inc()
}

// RecordQueueResult records the outcome of processing one queue item
func (r *Registry) RecordQueueResult(result string) {
	if r == nil {
		return
	}
	r.QueueProcessedTotal.WithLabelValues(result).Inc()
}

// RecordQueueSweep records maintenance actions on queue items
func (r *Registry) RecordQueueSweep(action string, count int64) {
	if r == nil || count <= 0 {
		return
	}
	r.QueueSweptTotal.WithLabelValues(action).Add(float64(count))
}

// SetQueueItems updates the queue size gauge for a status
func (r *Registry) SetQueueItems(status string, count int) {
	if r == nil {
		return
	}
	r.QueueItems.WithLabelValues(status).Set(float64(count))
}

// RecordFullSync records a full sync run
func (r *Registry) RecordFullSync(result string, duration time.Duration) {
	if r == nil {
		return
	}
	r.FullSyncRunsTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		r.FullSyncDuration.Observe(duration.Seconds())
	}
}

// RecordEntities records per-kind entity counts of a full sync run
func (r *Registry) RecordEntities(entityType string, succeeded, failed, skipped int) {
	if r == nil {
		return
	}
	r.EntitiesSyncedTotal.WithLabelValues(entityType, "succeeded").Add(float64(succeeded))
	r.EntitiesSyncedTotal.WithLabelValues(entityType, "failed").Add(float64(failed))
	r.EntitiesSyncedTotal.WithLabelValues(entityType, "skipped").Add(float64(skipped))
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
