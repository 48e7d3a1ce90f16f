// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ratelimit enforces per-identity submission limits using a token
// bucket per node, defaulting to config.StringRateLimit tokens per second.
package ratelimit

import (
	"sync"
	"time"

	"github.com/cockroachdb/tokenbucket"
	"github.com/luxfi/ids"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/errs"
	"github.com/luxfi/rope/utils"
)

// Limiter holds one token bucket per identity, created lazily on first use.
type Limiter struct {
	mu       sync.Mutex
	rate     tokenbucket.Rate
	burst    tokenbucket.Burst
	buckets  map[ids.NodeID]*tokenbucket.TokenBucket
	rejected utils.AtomicInt
}

// New returns a Limiter allowing ratePerSecond submissions/sec per identity,
// with burst capacity equal to one second's worth of tokens.
func New(ratePerSecond float64) *Limiter {
	return &Limiter{
		rate:    tokenbucket.Rate(ratePerSecond),
		burst:   tokenbucket.Burst(ratePerSecond),
		buckets: make(map[ids.NodeID]*tokenbucket.TokenBucket),
	}
}

// Rejected returns the total number of submissions denied across every
// identity since the Limiter was created.
func (l *Limiter) Rejected() int64 {
	return l.rejected.Get()
}

// Default returns a Limiter configured at config.StringRateLimit.
func Default() *Limiter {
	return New(config.StringRateLimit)
}

func (l *Limiter) bucketFor(id ids.NodeID) *tokenbucket.TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	tb, ok := l.buckets[id]
	if !ok {
		tb = &tokenbucket.TokenBucket{}
		tb.Init(l.rate, l.burst)
		l.buckets[id] = tb
	}
	return tb
}

// Allow reports whether id may submit one string now, consuming a token if
// so.
func (l *Limiter) Allow(id ids.NodeID) bool {
	ok, _ := l.bucketFor(id).TryToFulfill(1)
	if !ok {
		l.rejected.Inc()
	}
	return ok
}

// Check is like Allow but returns a RateLimitExceeded error describing the
// retry delay instead of a bare bool.
func (l *Limiter) Check(id ids.NodeID) error {
	ok, retryAfter := l.bucketFor(id).TryToFulfill(1)
	if ok {
		return nil
	}
	l.rejected.Inc()
	return errs.Newf(errs.RateLimitExceeded, "identity %s exceeded submission rate, retry after %s", id, retryAfter.Truncate(time.Millisecond))
}
