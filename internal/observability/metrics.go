package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	requestLatency map[string]time.Duration
	remoteCount    map[string]int64
	errorCount     map[string]int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests       map[string]int64 `json:"requests"`
	RequestLatency map[string]string `json:"requestLatency"`
	RemoteCalls    map[string]int64 `json:"remoteCalls"`
	Errors         map[string]int64 `json:"errors"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		requestLatency: make(map[string]time.Duration),
		remoteCount:    make(map[string]int64),
		errorCount:     make(map[string]int64),
	}
}

// RecordRequest increments counters for gateway requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordRemoteCall counts a call to the remote API. status 0 means no response arrived.
func (m *Metrics) RecordRemoteCall(endpoint, method string, status int) {
	if m == nil {
		return
	}
	key := pathKey(endpoint, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteCount[key]++
}

// RecordError increments session error counters by kind.
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[kind]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:       map[string]int64{},
		RequestLatency: map[string]string{},
		RemoteCalls:    map[string]int64{},
		Errors:         map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		snap.RequestLatency[k] = (m.requestLatency[k] / time.Duration(v)).String()
	}
	for k, v := range m.remoteCount {
		snap.RemoteCalls[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
