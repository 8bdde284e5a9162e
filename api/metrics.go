package api

import (
	"sync"
	"sync/atomic"
	"time"
)

// RequestTrace tracks timing for a single request
type RequestTrace struct {
	RequestID     string        `json:"requestId"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	Status        int           `json:"status"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	TotalDuration time.Duration `json:"totalDuration"`
	Error         string        `json:"error,omitempty"`
}

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MinTime     time.Duration `json:"minTime"`
	MaxTime     time.Duration `json:"maxTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// RelayMetrics counts collaboration traffic. Updated lock-free from the hub's
// run loop so forwarding never waits on a metrics mutex.
type RelayMetrics struct {
	SessionsOpened   atomic.Int64
	SessionsClosed   atomic.Int64
	ClientsConnected atomic.Int64
	FramesForwarded  atomic.Int64
	ChatMessages     atomic.Int64
}

// MetricsCollector collects and aggregates request metrics.
// Metrics collection is designed to NEVER block production requests: traces
// are queued through a buffered channel and dropped silently when it is full.
type MetricsCollector struct {
	mu           sync.RWMutex
	traces       []RequestTrace
	maxTraces    int
	routeMetrics map[string]*RouteMetrics
	relay        RelayMetrics

	traceChan chan RequestTrace
	stopChan  chan struct{}
}

var globalMetrics *MetricsCollector

// InitMetrics initializes the global metrics collector
func InitMetrics(maxTraces int) {
	globalMetrics = &MetricsCollector{
		maxTraces:    maxTraces,
		routeMetrics: make(map[string]*RouteMetrics),
		traceChan:    make(chan RequestTrace, 1000),
		stopChan:     make(chan struct{}),
	}
	go globalMetrics.processTraces()
}

// GetMetrics returns the global metrics collector
func GetMetrics() *MetricsCollector {
	if globalMetrics == nil {
		InitMetrics(1000)
	}
	return globalMetrics
}

// RecordTrace queues a trace for async processing; a full queue drops the trace
func (mc *MetricsCollector) RecordTrace(trace RequestTrace) {
	select {
	case mc.traceChan <- trace:
	default:
	}
}

// Relay returns the relay traffic counters
func (mc *MetricsCollector) Relay() *RelayMetrics {
	return &mc.relay
}

func (mc *MetricsCollector) processTraces() {
	for {
		select {
		case trace := <-mc.traceChan:
			mc.processTrace(trace)
		case <-mc.stopChan:
			return
		}
	}
}

func (mc *MetricsCollector) processTrace(trace RequestTrace) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.traces = append(mc.traces, trace)
	if len(mc.traces) > mc.maxTraces {
		mc.traces = mc.traces[len(mc.traces)-mc.maxTraces:]
	}

	key := trace.Method + " " + trace.Path
	rm, ok := mc.routeMetrics[key]
	if !ok {
		rm = &RouteMetrics{
			Method:  trace.Method,
			Path:    trace.Path,
			MinTime: trace.TotalDuration,
		}
		mc.routeMetrics[key] = rm
	}

	rm.Count++
	rm.TotalTime += trace.TotalDuration
	rm.AvgTime = rm.TotalTime / time.Duration(rm.Count)
	if trace.TotalDuration < rm.MinTime {
		rm.MinTime = trace.TotalDuration
	}
	if trace.TotalDuration > rm.MaxTime {
		rm.MaxTime = trace.TotalDuration
	}
	rm.LastRequest = trace.EndTime
	if trace.Status >= 400 {
		rm.ErrorCount++
	}
}

// GetRouteMetrics returns a copy of the per-route aggregates
func (mc *MetricsCollector) GetRouteMetrics() map[string]*RouteMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make(map[string]*RouteMetrics, len(mc.routeMetrics))
	for k, v := range mc.routeMetrics {
		copied := *v
		result[k] = &copied
	}
	return result
}

// GetSummary returns overall request and relay statistics
func (mc *MetricsCollector) GetSummary() map[string]interface{} {
	mc.mu.RLock()
	var totalRequests, totalErrors int64
	for _, rm := range mc.routeMetrics {
		totalRequests += rm.Count
		totalErrors += rm.ErrorCount
	}
	mc.mu.RUnlock()

	return map[string]interface{}{
		"totalRequests":    totalRequests,
		"totalErrors":      totalErrors,
		"sessionsOpened":   mc.relay.SessionsOpened.Load(),
		"sessionsClosed":   mc.relay.SessionsClosed.Load(),
		"clientsConnected": mc.relay.ClientsConnected.Load(),
		"framesForwarded":  mc.relay.FramesForwarded.Load(),
		"chatMessages":     mc.relay.ChatMessages.Load(),
	}
}

// GetTraces returns up to limit of the most recent traces
func (mc *MetricsCollector) GetTraces(limit int) []RequestTrace {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if limit <= 0 || limit > len(mc.traces) {
		limit = len(mc.traces)
	}
	result := make([]RequestTrace, limit)
	copy(result, mc.traces[len(mc.traces)-limit:])
	return result
}
