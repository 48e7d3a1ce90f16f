// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package voting implements virtual voting: round assignment, seeing and
// strong-seeing, witness election, coin-free famous-witness decision, and
// the three-step total ordering rule. This is the largest single
// subsystem of the core (§2 budgets it at ~25%).
package voting

import (
	"bytes"
	"sort"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/hash"
	"github.com/luxfi/rope/gossip"
	"github.com/luxfi/rope/quorum"
)

// vote is one round r+1 (or r+2) witness's polarity on a round-r witness.
type vote struct {
	voter   ids.NodeID
	yes     bool
	decided bool
}

// Engine evaluates the gossip-event DAG produced by package gossip and
// derives rounds, witnesses, famousness, and total order.
type Engine struct {
	dag        *gossip.DAG
	validators *quorum.Set

	roundOf   map[ids.ID]uint64
	witnesses map[uint64]map[ids.NodeID]ids.ID // round -> creator -> first event id
	famous    map[ids.ID]*bool                 // witness event id -> decided famousness
	votes     map[ids.ID]map[uint64]map[ids.NodeID]vote
}

// NewEngine returns a voting engine over dag, evaluated against the given
// validator set.
func NewEngine(dag *gossip.DAG, validators *quorum.Set) *Engine {
	return &Engine{
		dag:        dag,
		validators: validators,
		roundOf:    make(map[ids.ID]uint64),
		witnesses:  make(map[uint64]map[ids.NodeID]ids.ID),
		famous:     make(map[ids.ID]*bool),
		votes:      make(map[ids.ID]map[uint64]map[ids.NodeID]vote),
	}
}

// ancestors returns every event id reachable by following self_parent and
// other_parent edges from e, inclusive of e.
func (eng *Engine) ancestors(id ids.ID) map[ids.ID]struct{} {
	visited := map[ids.ID]struct{}{}
	queue := []ids.ID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}
		e, ok := eng.dag.Get(cur)
		if !ok {
			continue
		}
		if e.SelfParent != (ids.ID{}) {
			queue = append(queue, e.SelfParent)
		}
		if e.OtherParent != (ids.ID{}) {
			queue = append(queue, e.OtherParent)
		}
	}
	return visited
}

// Sees reports whether e sees e': e' is an ancestor of e, and no forked
// creator's equivocating path disqualifies the observation.
func (eng *Engine) Sees(e, target ids.ID) bool {
	ev, ok := eng.dag.Get(target)
	if ok && eng.dag.IsForked(ev.Creator) {
		return false
	}
	anc := eng.ancestors(e)
	_, ok = anc[target]
	return ok
}

// distinctCreatorsOnPath returns the set of creators with at least one
// event among the ancestors of e that are also descendants-or-equal of
// target, approximated here (for a reference implementation) as: the
// creators of every ancestor of e that is itself an ancestor-inclusive of
// some event which has target as an ancestor — i.e. every accepted event
// lying between target and e. Forked creators are excluded.
func (eng *Engine) distinctCreatorsOnPath(e, target ids.ID) map[ids.NodeID]struct{} {
	descendantsOfTarget := eng.ancestors(e)
	if _, ok := descendantsOfTarget[target]; !ok {
		return nil
	}
	creators := map[ids.NodeID]struct{}{}
	for candidate := range descendantsOfTarget {
		ev, ok := eng.dag.Get(candidate)
		if !ok || eng.dag.IsForked(ev.Creator) {
			continue
		}
		// candidate must itself have target as an ancestor (i.e. lie on
		// or after target), otherwise it is not "on a path from target".
		candAnc := eng.ancestors(candidate)
		if _, ok := candAnc[target]; ok {
			creators[ev.Creator] = struct{}{}
		}
	}
	return creators
}

// StronglySees reports whether e strongly sees target: at least t
// distinct, non-forked creators have events on paths from target to e.
func (eng *Engine) StronglySees(e, target ids.ID) bool {
	creators := eng.distinctCreatorsOnPath(e, target)
	return len(creators) >= eng.validators.Threshold()
}

// AssignRound computes and records the round of event id, per §4.7: 0 for
// a genesis event; otherwise max(round(self), round(other)), incremented
// if id strongly sees at least t distinct-creator witnesses of that
// round.
func (eng *Engine) AssignRound(id ids.ID) uint64 {
	if r, ok := eng.roundOf[id]; ok {
		return r
	}
	e, ok := eng.dag.Get(id)
	if !ok {
		return 0
	}

	var r uint64
	if e.SelfParent == (ids.ID{}) && e.OtherParent == (ids.ID{}) {
		r = 0
	} else {
		selfRound := uint64(0)
		if e.SelfParent != (ids.ID{}) {
			selfRound = eng.AssignRound(e.SelfParent)
		}
		otherRound := uint64(0)
		if e.OtherParent != (ids.ID{}) {
			otherRound = eng.AssignRound(e.OtherParent)
		}
		r = selfRound
		if otherRound > r {
			r = otherRound
		}

		strongCount := 0
		seenCreators := map[ids.NodeID]struct{}{}
		for _, witnessID := range eng.witnesses[r] {
			if eng.StronglySees(id, witnessID) {
				w, _ := eng.dag.Get(witnessID)
				if w != nil {
					if _, counted := seenCreators[w.Creator]; !counted {
						seenCreators[w.Creator] = struct{}{}
						strongCount++
					}
				}
			}
		}
		if strongCount >= eng.validators.Threshold() {
			r++
		}
	}

	eng.roundOf[id] = r
	e.Round = r
	eng.recordWitness(r, e)
	return r
}

// recordWitness registers e as the witness for its creator in round r if
// it is the first event by that creator in that round, i.e. its self-parent
// is absent or in an earlier round (ties between forked siblings broken by
// smallest event id, per §4.7).
func (eng *Engine) recordWitness(r uint64, e *gossip.Event) {
	if e.SelfParent != ids.Empty {
		if pr, ok := eng.roundOf[e.SelfParent]; ok && pr == r {
			return
		}
	}
	byCreator, ok := eng.witnesses[r]
	if !ok {
		byCreator = make(map[ids.NodeID]ids.ID)
		eng.witnesses[r] = byCreator
	}
	existing, ok := byCreator[e.Creator]
	if !ok || bytes.Compare(e.ID[:], existing[:]) < 0 {
		byCreator[e.Creator] = e.ID
	}
}

// Witnesses returns the set of witness event ids for round r.
func (eng *Engine) Witnesses(r uint64) []ids.ID {
	byCreator := eng.witnesses[r]
	out := make([]ids.ID, 0, len(byCreator))
	for _, id := range byCreator {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// DecideFamous runs the coin-free majority vote of §4.7 for witness W in
// round r, consulting witnesses in rounds r+1..r+config.RoundDecideLimit.
// Returns (decided, famous).
func (eng *Engine) DecideFamous(r uint64, w ids.ID) (decided bool, famous bool) {
	if f, ok := eng.famous[w]; ok {
		return true, *f
	}

	roundVotes, ok := eng.votes[w]
	if !ok {
		roundVotes = make(map[uint64]map[ids.NodeID]vote)
		eng.votes[w] = roundVotes
	}

	for delta := uint64(1); delta <= config.RoundDecideLimit; delta++ {
		voterRound := r + delta
		voterWitnesses := eng.Witnesses(voterRound)
		if len(voterWitnesses) == 0 {
			break
		}

		if delta == 1 {
			// Round r+1 witnesses vote directly on whether they see W.
			votes := make(map[ids.NodeID]vote)
			for _, wp := range voterWitnesses {
				wpEvent, _ := eng.dag.Get(wp)
				if wpEvent == nil {
					continue
				}
				votes[wpEvent.Creator] = vote{voter: wpEvent.Creator, yes: eng.Sees(wp, w), decided: true}
			}
			roundVotes[voterRound] = votes
			continue
		}

		prevRound := voterRound - 1
		prevVotes := roundVotes[prevRound]
		if prevVotes == nil {
			break
		}

		tally := make(map[ids.NodeID]vote)
		yesCount, noCount := 0, 0
		for _, wp := range voterWitnesses {
			wpEvent, _ := eng.dag.Get(wp)
			if wpEvent == nil {
				continue
			}
			yes, no := 0, 0
			for _, pv := range prevVotes {
				prevWitnessID := eng.witnesses[prevRound][pv.voter]
				if eng.StronglySees(wp, prevWitnessID) {
					if pv.yes {
						yes++
					} else {
						no++
					}
				}
			}
			polarity := yes >= no
			tally[wpEvent.Creator] = vote{voter: wpEvent.Creator, yes: polarity, decided: true}
			if polarity {
				yesCount++
			} else {
				noCount++
			}
		}
		roundVotes[voterRound] = tally

		t := eng.validators.Threshold()
		if yesCount >= t {
			v := true
			eng.famous[w] = &v
			return true, true
		}
		if noCount >= t {
			v := false
			eng.famous[w] = &v
			return true, false
		}
	}

	// Deterministic tie-break: majority of votes strongly seen across
	// every round evaluated, ties broken by lexicographic witness id
	// against the round's other witnesses.
	yesTotal, noTotal := 0, 0
	for _, rv := range roundVotes {
		for _, v := range rv {
			if v.yes {
				yesTotal++
			} else {
				noTotal++
			}
		}
	}
	result := yesTotal >= noTotal
	if yesTotal == noTotal {
		result = lexicographicTieBreak(w, eng.Witnesses(r))
	}
	eng.famous[w] = &result
	return true, result
}

// lexicographicTieBreak resolves an exact yes/no tie by comparing w
// against the lexicographically largest other witness in the same round:
// w is decided famous iff it is not smaller than that extreme. If w has
// no competing witnesses in its round, it is decided famous outright.
func lexicographicTieBreak(w ids.ID, roundWitnesses []ids.ID) bool {
	var extreme ids.ID
	found := false
	for _, id := range roundWitnesses {
		if id == w {
			continue
		}
		if !found || bytes.Compare(id[:], extreme[:]) > 0 {
			extreme = id
			found = true
		}
	}
	if !found {
		return true
	}
	return bytes.Compare(w[:], extreme[:]) >= 0
}

// RoundDecided reports whether every witness of round r has a decided
// famousness.
func (eng *Engine) RoundDecided(r uint64) bool {
	witnesses := eng.Witnesses(r)
	if len(witnesses) == 0 {
		return false
	}
	for _, w := range witnesses {
		if decided, _ := eng.DecideFamous(r, w); !decided {
			return false
		}
	}
	return true
}

// FamousWitnesses returns the witnesses of round r decided famous.
func (eng *Engine) FamousWitnesses(r uint64) []ids.ID {
	var out []ids.ID
	for _, w := range eng.Witnesses(r) {
		if decided, famous := eng.DecideFamous(r, w); decided && famous {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// RoundSeed derives the whitening seed for round r's tie-break, per §4.7:
// BLAKE3("rope/order" || concat(sorted famous witness ids)).
func RoundSeed(famousWitnesses []ids.ID) [hash.Size]byte {
	sorted := make([]ids.ID, len(famousWitnesses))
	copy(sorted, famousWitnesses)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	var buf []byte
	for _, id := range sorted {
		buf = append(buf, id[:]...)
	}
	return hash.Concat([]byte(config.DomainOrder), buf)
}

// StringSeenTime holds, for one string, the Lamport logical times of the
// famous witness events that themselves carry it; the witnesses' ancestors
// are not searched.
type StringSeenTime struct {
	StringID ids.ID
	Times    []uint64
}

// ConsensusTimestamp returns the median of Times, the consensus ordering
// key for a string within a decided round.
func (s StringSeenTime) ConsensusTimestamp() uint64 {
	if len(s.Times) == 0 {
		return 0
	}
	sorted := append([]uint64(nil), s.Times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}

// OrderedString is one string placed in the round's total order.
type OrderedString struct {
	StringID          ids.ID
	ConsensusTimestamp uint64
	WhitenedHash       [hash.Size]byte
}

// Order sorts strings within a finalised round per the three-step rule of
// §4.7: ascending consensus timestamp, then ascending whitened hash, then
// ascending StringId.
func Order(strings []StringSeenTime, seed [hash.Size]byte) []OrderedString {
	out := make([]OrderedString, len(strings))
	for i, s := range strings {
		out[i] = OrderedString{
			StringID:           s.StringID,
			ConsensusTimestamp: s.ConsensusTimestamp(),
			WhitenedHash:       hash.Concat(s.StringID[:], seed[:]),
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ConsensusTimestamp != b.ConsensusTimestamp {
			return a.ConsensusTimestamp < b.ConsensusTimestamp
		}
		if cmp := bytes.Compare(a.WhitenedHash[:], b.WhitenedHash[:]); cmp != 0 {
			return cmp < 0
		}
		return bytes.Compare(a.StringID[:], b.StringID[:]) < 0
	})
	return out
}

// firstSeenLamportTime is a helper callers use to build StringSeenTime
// inputs: the Lamport logical time stamped on the witness event itself when
// that event carries stringID. The witness's ancestors are not searched.
func firstSeenLamportTime(dag *gossip.DAG, witness ids.ID, stringID ids.ID) (uint64, bool) {
	e, ok := dag.Get(witness)
	if !ok {
		return 0, false
	}
	for _, sid := range e.Strings {
		if sid == stringID {
			return e.Timestamp.LogicalTime, true
		}
	}
	return 0, false
}

// BuildSeenTimes assembles StringSeenTime entries for every string carried
// by one of the round's famous witness events.
func BuildSeenTimes(dag *gossip.DAG, famousWitnesses []ids.ID) []StringSeenTime {
	byString := map[ids.ID][]uint64{}
	for _, w := range famousWitnesses {
		e, ok := dag.Get(w)
		if !ok {
			continue
		}
		for _, sid := range e.Strings {
			if t, ok := firstSeenLamportTime(dag, w, sid); ok {
				byString[sid] = append(byString[sid], t)
			}
		}
	}
	out := make([]StringSeenTime, 0, len(byString))
	for sid, times := range byString {
		out = append(out, StringSeenTime{StringID: sid, Times: times})
	}
	return out
}
