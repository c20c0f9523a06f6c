package iocore

import "github.com/zoobzio/metricz"

// Metric keys, grouped by the subsystem that owns them: ".total" counters
// for monotonically increasing events, plain names for gauges.
const (
	MetricTasksExecuted    = metricz.Key("runqueue.tasks_executed.total")
	MetricRunQueueDepth     = metricz.Key("runqueue.depth")
	MetricTimersDispatched  = metricz.Key("waitqueue.timers_dispatched.total")
	MetricTimersScheduled   = metricz.Key("waitqueue.timers_scheduled.total")
	MetricWaitQueueDepth    = metricz.Key("waitqueue.depth")
	MetricMailboxRaises     = metricz.Key("mailbox.raises.total")
	MetricMailboxTakes      = metricz.Key("mailbox.takes.total")
	MetricFdEventsObserved  = metricz.Key("ioqueue.fd_events_observed.total")
	MetricIterateCycles     = metricz.Key("ioqueue.iterate_cycles.total")
)

// newRunQueueMetrics builds the Registry used by a RunQueue.
func newRunQueueMetrics() *metricz.Registry {
	m := metricz.New()
	m.Counter(MetricTasksExecuted)
	m.Gauge(MetricRunQueueDepth)
	return m
}

// newWaitQueueMetrics builds the Registry used by a WaitQueue.
func newWaitQueueMetrics() *metricz.Registry {
	m := metricz.New()
	m.Counter(MetricTimersDispatched)
	m.Counter(MetricTimersScheduled)
	m.Gauge(MetricWaitQueueDepth)
	return m
}

// newMailboxMetrics builds the Registry used by a Mailbox.
func newMailboxMetrics() *metricz.Registry {
	m := metricz.New()
	m.Counter(MetricMailboxRaises)
	m.Counter(MetricMailboxTakes)
	return m
}

// newIOQueueMetrics builds the Registry used by an IOQueue.
func newIOQueueMetrics() *metricz.Registry {
	m := metricz.New()
	m.Counter(MetricFdEventsObserved)
	m.Counter(MetricIterateCycles)
	return m
}
