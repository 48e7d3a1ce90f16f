// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command ropenode runs a single rope node with an in-memory lattice, a
// freshly generated local identity, and a loopback peer channel — enough
// to submit strings and watch anchors emit without any network transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/gossip"
	"github.com/luxfi/rope/quorum"
	"github.com/luxfi/rope/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// localIdentity is a single freshly-generated node identity, its own sole
// validator in the set.
type localIdentity struct {
	node ids.NodeID
	pub  *envelope.PublicKey
	sk   *envelope.SecretKey
	set  *quorum.Set
}

func newLocalIdentity() (*localIdentity, error) {
	pub, sk, err := envelope.GenerateHybridKey()
	if err != nil {
		return nil, err
	}
	node := ids.GenerateTestNodeID()
	return &localIdentity{
		node: node,
		pub:  pub,
		sk:   sk,
		set:  quorum.NewSetUnchecked([]ids.NodeID{node}),
	}, nil
}

func (l *localIdentity) NodeID() ids.NodeID { return l.node }
func (l *localIdentity) KeyPair() (*envelope.PublicKey, *envelope.SecretKey) {
	return l.pub, l.sk
}
func (l *localIdentity) Validators() *quorum.Set { return l.set }

// loopbackChannel discards broadcasts and never yields remote events; a
// single-node deployment has no peers to gossip with.
type loopbackChannel struct{}

func (loopbackChannel) Broadcast(ctx context.Context, batch []*gossip.Event) error { return nil }
func (loopbackChannel) Recv(ctx context.Context) ([]*gossip.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func main() {
	preset := flag.String("preset", "local", "parameter preset: mainnet, testnet, local")
	flag.Parse()

	var params config.Parameters
	switch *preset {
	case "mainnet":
		params = config.Mainnet()
	case "testnet":
		params = config.Testnet()
	default:
		params = config.Local()
	}

	identity, err := newLocalIdentity()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ropenode: identity generation failed: %v\n", err)
		os.Exit(1)
	}

	core, err := rope.New(identity, loopbackChannel{}, rope.SystemClock(), params, prometheus.NewRegistry(), storage.NewMemStore())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ropenode: core init failed: %v\n", err)
		os.Exit(1)
	}
	defer core.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	events, unsubscribe := core.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range events {
			fmt.Printf("[%s] string=%s anchor=%s round=%d\n", ev.Kind, ev.StringID, ev.AnchorID, ev.Round)
		}
	}()

	go core.Run(ctx)

	fmt.Printf("ropenode: node %s running with preset %q (ctrl-c to stop)\n", identity.NodeID(), *preset)
	<-ctx.Done()
	fmt.Println("ropenode: shutting down")
}
