// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rope

import "github.com/luxfi/ids"

// EventKind tags the notifications delivered via Core.Subscribe.
type EventKind uint8

const (
	StringCreated EventKind = iota
	TestimonyReceived
	ConsensusReached
	AnchorEmitted
	OesEpochChanged
	SecurityAlert
)

func (k EventKind) String() string {
	switch k {
	case StringCreated:
		return "StringCreated"
	case TestimonyReceived:
		return "TestimonyReceived"
	case ConsensusReached:
		return "ConsensusReached"
	case AnchorEmitted:
		return "AnchorEmitted"
	case OesEpochChanged:
		return "OesEpochChanged"
	case SecurityAlert:
		return "SecurityAlert"
	default:
		return "Unknown"
	}
}

// Event is a single notification delivered to Subscribe callers.
type Event struct {
	Kind     EventKind
	StringID ids.ID
	AnchorID ids.ID
	Round    uint64
	Epoch    uint64
	Message  string
}

// subscriber is one Subscribe call's delivery channel and interest filter.
type subscriber struct {
	ch     chan Event
	filter map[EventKind]bool // nil/empty means "all kinds"
}

func (s *subscriber) interested(k EventKind) bool {
	if len(s.filter) == 0 {
		return true
	}
	return s.filter[k]
}

// emit delivers ev to every interested subscriber without blocking; a
// subscriber whose channel is full misses the notification rather than
// stalling the core.
func (c *Core) emit(ev Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, sub := range c.subs {
		if !sub.interested(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel of events matching kinds (all kinds if none
// given) and an unsubscribe function the caller must eventually invoke.
func (c *Core) Subscribe(kinds ...EventKind) (<-chan Event, func()) {
	filter := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		filter[k] = true
	}
	sub := &subscriber{ch: make(chan Event, 64), filter: filter}

	c.subMu.Lock()
	c.subs = append(c.subs, sub)
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s == sub {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}
	return sub.ch, cancel
}
