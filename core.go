// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rope

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/rope/anchor"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/config"
	rlog "github.com/luxfi/rope/log"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/errs"
	"github.com/luxfi/rope/erasure"
	"github.com/luxfi/rope/gossip"
	"github.com/luxfi/rope/lattice"
	"github.com/luxfi/rope/metrics"
	"github.com/luxfi/rope/oes"
	"github.com/luxfi/rope/quorum"
	"github.com/luxfi/rope/ratelimit"
	"github.com/luxfi/rope/storage"
	"github.com/luxfi/rope/testimony"
	"github.com/luxfi/rope/voting"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	persistStringPrefix = []byte("str/")
	persistAnchorPrefix = []byte("anc/")
)

// Core is the top-level facade wiring every subsystem: the content-
// addressed lattice, its Reed-Solomon complements, the gossip-event DAG,
// virtual voting, anchor emission, the OES ratchet, and the Controlled
// Erasure Protocol.
type Core struct {
	identity IdentityProvider
	peers    PeerChannel
	wall     Clock
	logger   log.Logger
	params   config.Parameters

	lattice *lattice.Store
	dag     *gossip.DAG
	voting  *voting.Engine
	anchors *anchor.Chain
	oes     *oes.Ratchet
	cep     *testimony.CEP
	limiter *ratelimit.Limiter
	lamport *clock.Manager
	persist storage.Store
	health  *rlog.Counting

	compMu      sync.RWMutex
	complements map[ids.ID]*erasure.Complement

	roundMu       sync.Mutex
	nextRound     uint64
	lastEmittedID ids.ID

	subMu sync.RWMutex
	subs  []*subscriber

	promMetrics *metrics.Metrics

	anchorsEmitted       metrics.Counter
	roundsDecided        metrics.Counter
	testimoniesCollected metrics.Counter
	erasuresCompleted    metrics.Counter
	avgPayloadBytes      metrics.Averager
	currentRound         metrics.Gauge
}

// New wires a Core over the given identity, peer transport, and wall
// clock. reg is used to register prometheus metrics; pass prometheus.NewRegistry()
// for an isolated instance. persist is the durable write-through store for
// accepted strings and anchors; pass nil to fall back to an in-memory
// storage.MemStore (suitable for tests and single-process demos).
func New(identity IdentityProvider, peers PeerChannel, wall Clock, params config.Parameters, reg prometheus.Registerer, persist storage.Store) (*Core, error) {
	health := rlog.NewCountingLogger()
	logger := log.Logger(health)

	validators := identity.Validators()
	dag := gossip.NewDAG()
	store := lattice.NewStore()
	reg2 := metrics.NewRegistry(reg)

	if persist == nil {
		persist = storage.NewMemStore()
	}

	c := &Core{
		identity:             identity,
		peers:                peers,
		wall:                 wall,
		logger:               logger,
		params:               params,
		lattice:              store,
		dag:                  dag,
		voting:               voting.NewEngine(dag, validators),
		anchors:              anchor.NewChain(store),
		oes:                  oes.New([32]byte{}),
		cep:                  testimony.NewCEP(store, validators),
		limiter:              ratelimit.New(float64(params.StringRateLimit)),
		lamport:              clock.NewManager(identity.NodeID()),
		persist:              persist,
		health:               health,
		complements:          make(map[ids.ID]*erasure.Complement),
		nextRound:            0,
		promMetrics:          metrics.NewMetrics(reg),
		anchorsEmitted:       reg2.NewCounter("anchors_emitted"),
		roundsDecided:        reg2.NewCounter("rounds_decided"),
		testimoniesCollected: reg2.NewCounter("testimonies_collected"),
		erasuresCompleted:    reg2.NewCounter("erasure_completed"),
		avgPayloadBytes:      reg2.NewAverager("string_payload_bytes", "submitted string payload size in bytes"),
		currentRound:         reg2.NewGauge("current_round", "last round number this node has decided"),
	}
	return c, nil
}

// Close releases the underlying persistence store, including a
// storage.Store that the caller passed to New.
func (c *Core) Close() error {
	return c.persist.Close()
}

// SubmitString builds, signs, inserts, and gossips a new string. It
// enforces the configured Parameters.StringRateLimit per identity and config.MaxStringSize
// per payload (via lattice.Builder).
func (c *Core) SubmitString(ctx context.Context, payload []byte, parents []ids.ID, mutability lattice.Mutability) (ids.ID, error) {
	nodeID := c.identity.NodeID()
	if err := c.limiter.Check(nodeID); err != nil {
		return ids.Empty, err
	}

	pub, sk := c.identity.KeyPair()
	reading := c.lamport.Tick()

	s, err := lattice.NewBuilder(payload).
		WithParents(parents...).
		WithReplication(c.params.ReplicationFactor).
		WithMutability(mutability).
		Build(reading, pub, sk)
	if err != nil {
		return ids.Empty, err
	}

	id, err := c.lattice.Insert(s, nodeID)
	if err != nil {
		return ids.Empty, err
	}
	if err := c.persist.Put(append(append([]byte{}, persistStringPrefix...), id[:]...), payload); err != nil {
		c.logger.Warn("string persistence failed", "id", id, "error", err)
	}
	c.avgPayloadBytes.Observe(float64(len(payload)))

	comp, err := erasure.Generate(id, payload, c.params.ReplicationFactor, sk, c.wall.Now())
	if err != nil {
		return ids.Empty, err
	}
	c.compMu.Lock()
	c.complements[id] = comp
	c.compMu.Unlock()

	ev := &gossip.Event{
		Creator:     nodeID,
		SelfParent:  c.selfHead(),
		OtherParent: c.pickOtherParent(nodeID),
		Strings:     []ids.ID{id},
		Timestamp:   reading,
	}
	c.acceptAndAdvance(ctx, ev)

	c.emit(Event{Kind: StringCreated, StringID: id})
	return id, nil
}

func (c *Core) selfHead() ids.ID {
	head, ok := c.dag.Head(c.identity.NodeID())
	if !ok {
		return ids.Empty
	}
	return head
}

// pickOtherParent deterministically selects another validator's current
// head to cross-link, preferring the lexicographically smallest NodeID
// with a known head. Returns the zero id if no other head is known yet.
func (c *Core) pickOtherParent(self ids.NodeID) ids.ID {
	members := c.identity.Validators().Members()
	sort.Slice(members, func(i, j int) bool { return bytes.Compare(members[i][:], members[j][:]) < 0 })
	for _, m := range members {
		if m == self {
			continue
		}
		if head, ok := c.dag.Head(m); ok {
			return head
		}
	}
	return ids.Empty
}

// acceptAndAdvance submits ev to the gossip DAG, broadcasts it, assigns
// rounds to every newly-accepted event, and advances round decisions.
func (c *Core) acceptAndAdvance(ctx context.Context, ev *gossip.Event) {
	accepted := c.dag.Add(ev)
	if len(accepted) == 0 {
		return
	}
	if err := c.peers.Broadcast(ctx, accepted); err != nil {
		c.logger.Warn("broadcast failed", "error", err)
	}
	for _, a := range accepted {
		c.voting.AssignRound(a.ID)
	}
	c.advanceRounds()
}

// ReceiveRemote pulls one batch of remote gossip events and folds them
// into the local DAG and voting state.
func (c *Core) ReceiveRemote(ctx context.Context) error {
	batch, err := c.peers.Recv(ctx)
	if err != nil {
		return err
	}
	for _, ev := range batch {
		accepted := c.dag.Add(ev)
		for _, a := range accepted {
			c.voting.AssignRound(a.ID)
		}
	}
	c.advanceRounds()
	return nil
}

// Run drives ReceiveRemote in a loop until ctx is cancelled.
func (c *Core) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := c.ReceiveRemote(ctx); err != nil {
			c.logger.Debug("receive loop paused", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
}

// advanceRounds processes every round from nextRound onward that has
// become fully decided, emitting an anchor for each and evolving OES at
// epoch boundaries. Rounds are processed strictly in order.
func (c *Core) advanceRounds() {
	c.roundMu.Lock()
	defer c.roundMu.Unlock()

	for c.voting.RoundDecided(c.nextRound) {
		r := c.nextRound
		famous := c.voting.FamousWitnesses(r)
		c.roundsDecided.Inc()

		seenTimes := voting.BuildSeenTimes(c.dag, famous)
		seed := voting.RoundSeed(famous)
		ordered := voting.Order(seenTimes, seed)

		orderedIDs := make([]ids.ID, len(ordered))
		for i, o := range ordered {
			orderedIDs[i] = o.StringID
		}

		pub, sk := c.identity.KeyPair()
		reading := c.lamport.Tick()
		a, err := c.anchors.Emit(r+1, orderedIDs, famous, reading, pub, sk)
		if err != nil {
			c.logger.Error("anchor emission failed", "round", r, "error", err)
			c.nextRound = r + 1
			continue
		}
		c.anchorsEmitted.Inc()
		c.lastEmittedID = a.StringID
		anchorKey := append(append([]byte{}, persistAnchorPrefix...), a.StringID[:]...)
		if err := c.persist.Put(anchorKey, orderedIDsToBytes(orderedIDs)); err != nil {
			c.logger.Warn("anchor persistence failed", "anchor", a.StringID, "error", err)
		}

		c.emit(Event{Kind: ConsensusReached, Round: r, AnchorID: a.StringID})
		c.emit(Event{Kind: AnchorEmitted, Round: r, AnchorID: a.StringID})

		if a.Round%config.OESEvolutionInterval == 0 {
			c.oes.Evolve(a.StringID)
			c.emit(Event{Kind: OesEpochChanged, Epoch: c.oes.CurrentEpoch(), AnchorID: a.StringID})
		}

		c.currentRound.Set(float64(r))
		c.nextRound = r + 1
	}
}

// orderedIDsToBytes concatenates a round's consensus-ordered string ids into
// a flat buffer for persistence, newest-last as decided by voting.Order.
func orderedIDsToBytes(ordered []ids.ID) []byte {
	var zero ids.ID
	buf := make([]byte, 0, len(ordered)*len(zero))
	for _, id := range ordered {
		buf = append(buf, id[:]...)
	}
	return buf
}

// GetString returns the string stored under id.
func (c *Core) GetString(id ids.ID) (*lattice.String, error) {
	return c.lattice.Get(id)
}

// GetComplement returns the Reed-Solomon complement generated for id at
// submission time.
func (c *Core) GetComplement(id ids.ID) (*erasure.Complement, error) {
	c.compMu.RLock()
	defer c.compMu.RUnlock()
	comp, ok := c.complements[id]
	if !ok {
		return nil, errs.New(errs.ComplementNotFound, id, "no complement recorded for string")
	}
	return comp, nil
}

// Regenerate reconstructs id's payload from a possibly-damaged buffer
// using its recorded complement. Erased strings are refused with
// RegenerationBlocked.
func (c *Core) Regenerate(id ids.ID, damaged []byte, shardPresent []bool) ([]byte, error) {
	if c.lattice.IsErased(id) {
		return nil, errs.New(errs.RegenerationBlocked, id, "string has been erased")
	}
	comp, err := c.GetComplement(id)
	if err != nil {
		return nil, err
	}
	return erasure.Regenerate(comp, damaged, shardPresent)
}

// RequestErasure begins the Controlled Erasure Protocol for id.
func (c *Core) RequestErasure(id ids.ID, reason testimony.ErasureReason) error {
	return c.cep.RequestErasure(id, reason)
}

// SubmitTestimony records a validator's signed attestation. Erasure
// testimonies are forwarded to the CEP tally; other kinds are only
// checked and surfaced via Subscribe.
func (c *Core) SubmitTestimony(t *testimony.Testimony, pub *envelope.PublicKey) error {
	if err := testimony.Verify(t, pub, c.oes); err != nil {
		return err
	}
	c.testimoniesCollected.Inc()
	c.emit(Event{Kind: TestimonyReceived, StringID: t.TargetID})

	if t.Type != testimony.Erasure {
		return nil
	}
	if err := c.cep.SubmitTestimony(t); err != nil {
		return err
	}
	if c.lattice.IsErased(t.TargetID) {
		c.erasuresCompleted.Inc()
		c.compMu.Lock()
		delete(c.complements, t.TargetID)
		c.compMu.Unlock()
		if err := c.persist.Delete(append(append([]byte{}, persistStringPrefix...), t.TargetID[:]...)); err != nil {
			c.logger.Warn("erased payload removal failed", "id", t.TargetID, "error", err)
		}
	}
	return nil
}

// FinalityStatus reports id's finality standing with respect to the
// anchor chain.
func (c *Core) FinalityStatus(id ids.ID) anchor.Status {
	return c.anchors.FinalityStatus(id)
}

// Validators returns the active validator set, a thin pass-through to the
// configured IdentityProvider for callers building peer adapters.
func (c *Core) Validators() *quorum.Set {
	return c.identity.Validators()
}

// LastAnchor returns the StringId of the most recently emitted anchor, or
// the zero id if none has been emitted yet.
func (c *Core) LastAnchor() ids.ID {
	c.roundMu.Lock()
	defer c.roundMu.Unlock()
	return c.lastEmittedID
}

// Metrics returns the prometheus registration handle used by this Core,
// for callers wiring an HTTP /metrics endpoint.
func (c *Core) Metrics() *metrics.Metrics {
	return c.promMetrics
}

// AveragePayloadBytes returns the running mean size of submitted string
// payloads in bytes, or 0 if none have been submitted yet.
func (c *Core) AveragePayloadBytes() float64 {
	return c.avgPayloadBytes.Read()
}

// CurrentRound returns the last round number this node has decided.
func (c *Core) CurrentRound() float64 {
	return c.currentRound.Read()
}

// WarnCount returns the number of warn-level events this node has logged
// since construction.
func (c *Core) WarnCount() int64 {
	return c.health.WarnCount()
}

// ErrorCount returns the number of error/critical-level events this node
// has logged since construction.
func (c *Core) ErrorCount() int64 {
	return c.health.ErrorCount()
}
