// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Averager tracks a running average, backed by a prometheus count/sum pair
// when registration succeeds. rope.Core uses one to track mean submitted
// string payload size.
type Averager interface {
	Observe(value float64)
	Read() float64
}

type averager struct {
	mu    sync.RWMutex
	sum   float64
	count float64

	promCount prometheus.Counter
	promSum   prometheus.Gauge
}

// NewAverager returns a new Averager registered under name against reg. If
// registration fails (e.g. a duplicate name), the returned Averager still
// tracks its running average locally, it just isn't exported to prometheus.
func NewAverager(name, help string, reg prometheus.Registerer) Averager {
	count := prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_count",
		Help: "Total # of observations of " + help,
	})
	sum := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_sum",
		Help: "Sum of " + help,
	})
	a := &averager{}
	if reg != nil && reg.Register(count) == nil && reg.Register(sum) == nil {
		a.promCount = count
		a.promSum = sum
	}
	return a
}

func (a *averager) Observe(value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sum += value
	a.count++

	if a.promCount != nil {
		a.promCount.Inc()
	}
	if a.promSum != nil {
		a.promSum.Add(value)
	}
}

func (a *averager) Read() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

// Counter tracks a monotonically increasing count.
type Counter interface {
	Inc()
	Add(delta int64)
	Read() int64
}

type counter struct {
	mu    sync.RWMutex
	value int64
}

// NewCounter returns a new, unregistered Counter.
func NewCounter() Counter {
	return &counter{}
}

func (c *counter) Inc() {
	c.Add(1)
}

func (c *counter) Add(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
}

func (c *counter) Read() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Gauge tracks a value that can move up or down. rope.Core uses one to
// publish the last round number it has decided.
type Gauge interface {
	Set(value float64)
	Add(delta float64)
	Read() float64
}

type gauge struct {
	mu    sync.RWMutex
	value float64
}

// NewGauge returns a new, unregistered Gauge.
func NewGauge() Gauge {
	return &gauge{}
}

func (g *gauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
}

func (g *gauge) Add(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value += delta
}

func (g *gauge) Read() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Registry is the set of metrics constructors rope.Core actually calls:
// named counters, gauges, and averagers, each registered against the
// prometheus.Registerer the registry was built with.
type Registry interface {
	NewCounter(name string) Counter
	NewGauge(name, help string) Gauge
	NewAverager(name, help string) Averager
}

type registry struct {
	preg prometheus.Registerer
}

// NewRegistry returns a Registry that registers every counter, gauge, and
// averager it creates against reg. Pass prometheus.NewRegistry() for an
// isolated instance, or nil to skip prometheus export entirely.
func NewRegistry(reg prometheus.Registerer) Registry {
	return &registry{preg: reg}
}

func (r *registry) NewCounter(name string) Counter {
	c := NewCounter()
	if r.preg != nil {
		pc := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: name})
		if r.preg.Register(pc) == nil {
			return &promCounter{Counter: c, prom: pc}
		}
	}
	return c
}

func (r *registry) NewGauge(name, help string) Gauge {
	g := NewGauge()
	if r.preg != nil {
		pg := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		if r.preg.Register(pg) == nil {
			return &promGauge{Gauge: g, prom: pg}
		}
	}
	return g
}

func (r *registry) NewAverager(name, help string) Averager {
	return NewAverager(name, help, r.preg)
}

// promCounter mirrors writes into both the local counter and its exported
// prometheus collector.
type promCounter struct {
	Counter
	prom prometheus.Counter
}

func (p *promCounter) Inc() {
	p.Counter.Inc()
	p.prom.Inc()
}

func (p *promCounter) Add(delta int64) {
	p.Counter.Add(delta)
	p.prom.Add(float64(delta))
}

// promGauge mirrors writes into both the local gauge and its exported
// prometheus collector.
type promGauge struct {
	Gauge
	prom prometheus.Gauge
}

func (p *promGauge) Set(value float64) {
	p.Gauge.Set(value)
	p.prom.Set(value)
}

func (p *promGauge) Add(delta float64) {
	p.Gauge.Add(delta)
	p.prom.Add(delta)
}
