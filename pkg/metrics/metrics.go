/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"runtime"
	"sync"

	"github.com/kidneykidney/inventory-with-better-ui--sub001/pkg/subscription"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "livefeed"
)

var (
	once     sync.Once
	registry *prometheus.Registry

	ConnectionState           GaugeVec
	ConnectAttemptsTotal      Counter
	ConnectFailuresTotal      Counter
	ReconnectsScheduledTotal  Counter
	ReconnectDelaySeconds     Histogram
	RetryBudgetExhaustedTotal Counter
	ManualDisconnectsTotal    Counter

	MessagesReceivedTotal Counter
	MessagesSentTotal     Counter
	DecodeErrorsTotal     Counter
	SendWhileClosedTotal  Counter

	Up          Gauge
	Goroutines  GaugeFunc
	MemoryBytes GaugeVec
)

// initMetrics initializes all metric variables.
// This must be called after SetEnabled() to ensure proper noop behavior when disabled.
func initMetrics() {
	ConnectionState = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current stream subscription state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	ConnectAttemptsTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connect_attempts_total",
		Help:      "Total number of stream connection attempts",
	})

	ConnectFailuresTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connect_failures_total",
		Help:      "Total number of stream connection attempts that failed before opening",
	})

	ReconnectsScheduledTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_scheduled_total",
		Help:      "Total number of reconnects scheduled after a connection closed",
	})

	ReconnectDelaySeconds = newHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconnect_delay_seconds",
		Help:      "Backoff delay applied before each reconnect",
		Buckets:   []float64{1, 2, 4, 8, 16, 30, 60},
	})

	RetryBudgetExhaustedTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_budget_exhausted_total",
		Help:      "Total number of times the subscription gave up reconnecting",
	})

	ManualDisconnectsTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "manual_disconnects_total",
		Help:      "Total number of caller initiated disconnects",
	})

	MessagesReceivedTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Total number of stream messages decoded successfully",
	})

	MessagesSentTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Total number of messages written to the stream",
	})

	DecodeErrorsTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Total number of stream messages that failed to decode",
	})

	SendWhileClosedTotal = newCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "send_while_closed_total",
		Help:      "Total number of sends dropped because the stream was not open",
	})

	Up = newGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "up",
		Help:      "Whether the live feed process is up (1 = up)",
	})

	Goroutines = newGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
		func() float64 { return float64(runtime.NumGoroutine()) },
	)

	MemoryBytes = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_bytes",
			Help:      "Memory usage in bytes",
		},
		[]string{"type"},
	)
}

func register(c any) {
	if !Enabled || c == nil {
		return
	}
	// Already registered or other error - ignore
	switch v := c.(type) {
	case *gaugeVecWrapper:
		_ = registry.Register(v.GaugeVec)
	case prometheus.Collector:
		_ = registry.Register(v)
	}
}

func initRegistry() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	register(ConnectionState)
	register(ConnectAttemptsTotal)
	register(ConnectFailuresTotal)
	register(ReconnectsScheduledTotal)
	register(ReconnectDelaySeconds)
	register(RetryBudgetExhaustedTotal)
	register(ManualDisconnectsTotal)
	register(MessagesReceivedTotal)
	register(MessagesSentTotal)
	register(DecodeErrorsTotal)
	register(SendWhileClosedTotal)
	register(Up)
	register(Goroutines)
	register(MemoryBytes)

	Up.Set(1)
}

// Init initializes the metrics registry with all collectors.
// This must be called after SetEnabled() has been called.
func Init() *prometheus.Registry {
	once.Do(func() {
		initMetrics()

		if !Enabled {
			registry = prometheus.NewRegistry()
			return
		}
		initRegistry()
	})

	return registry
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return Init()
	}
	return registry
}

// RecordStreamEvent updates the counters matching a subscription event.
// It is meant to be registered with subscription.WithObserver.
func RecordStreamEvent(e subscription.Event) {
	if !Enabled || registry == nil {
		return
	}

	switch e.Type {
	case subscription.EventConnectAttempt:
		ConnectAttemptsTotal.Inc()
	case subscription.EventConnectFailed:
		ConnectFailuresTotal.Inc()
	case subscription.EventReconnectScheduled:
		ReconnectsScheduledTotal.Inc()
		ReconnectDelaySeconds.Observe(e.Delay.Seconds())
	case subscription.EventRetryBudgetExhausted:
		RetryBudgetExhaustedTotal.Inc()
	case subscription.EventManualDisconnect:
		ManualDisconnectsTotal.Inc()
	case subscription.EventMessageReceived:
		MessagesReceivedTotal.Inc()
	case subscription.EventMessageSent:
		MessagesSentTotal.Inc()
	case subscription.EventDecodeError:
		DecodeErrorsTotal.Inc()
	case subscription.EventSendWhileClosed:
		SendWhileClosedTotal.Inc()
	}
	RecordState(e.State)
}

// RecordState marks state as the active connection state
func RecordState(state subscription.State) {
	if !Enabled || registry == nil {
		return
	}
	for _, s := range subscription.States() {
		value := 0.0
		if s == state {
			value = 1
		}
		ConnectionState.WithLabelValues(s.String()).Set(value)
	}
}

// UpdateMemoryMetrics updates memory-related metrics
func UpdateMemoryMetrics() {
	if !Enabled || registry == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryBytes.WithLabelValues("heap_alloc").Set(float64(m.HeapAlloc))
	MemoryBytes.WithLabelValues("heap_sys").Set(float64(m.HeapSys))
	MemoryBytes.WithLabelValues("stack").Set(float64(m.StackInuse))
}
