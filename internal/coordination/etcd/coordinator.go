// Package etcd implements coordination.Coordinator over etcd's
// concurrency primitives: sessions back both leader election and node
// liveness keys.
package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/ai-task-scheduler/engine/internal/coordination"
)

const nodePrefix = "/nodes/"

// Coordinator is the etcd-backed coordination.Coordinator.
type Coordinator struct {
	client  *clientv3.Client
	session *concurrency.Session
}

// New connects to etcd and establishes a concurrency session whose lease
// (refreshed via keepalive) backs both elections and node liveness keys.
func New(endpoints []string, ttl int) (*Coordinator, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	sess, err := concurrency.NewSession(cli, concurrency.WithTTL(ttl))
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to create concurrency session: %w", err)
	}

	return &Coordinator{client: cli, session: sess}, nil
}

func (c *Coordinator) Close() error {
	if c.session != nil {
		c.session.Close()
	}
	return c.client.Close()
}

func (c *Coordinator) NewElection(name string) coordination.Election {
	e := concurrency.NewElection(c.session, "/elections/"+name)
	return &Election{election: e}
}

// RegisterNode writes a liveness key scoped to the coordinator's session
// lease; it disappears automatically if the process dies without calling Heartbeat.
func (c *Coordinator) RegisterNode(ctx context.Context, nodeID string) error {
	_, err := c.client.Put(ctx, nodePrefix+nodeID, nodeID, clientv3.WithLease(c.session.Lease()))
	return err
}

// Heartbeat is a no-op beyond RegisterNode: the session's own keepalive
// loop (managed by concurrency.Session) refreshes the lease.
func (c *Coordinator) Heartbeat(ctx context.Context, nodeID string) error {
	return c.RegisterNode(ctx, nodeID)
}

// GetActiveNodes lists node IDs whose liveness key is still present.
func (c *Coordinator) GetActiveNodes(ctx context.Context) ([]string, error) {
	resp, err := c.client.Get(ctx, nodePrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list active nodes: %w", err)
	}
	nodes := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		nodes = append(nodes, string(kv.Value))
	}
	return nodes, nil
}

// Election wraps etcd's concurrency.Election.
type Election struct {
	election *concurrency.Election
}

func (e *Election) Campaign(ctx context.Context, value string) error {
	return e.election.Campaign(ctx, value)
}

func (e *Election) Resign(ctx context.Context) error {
	return e.election.Resign(ctx)
}

func (e *Election) Leader(ctx context.Context) (string, error) {
	resp, err := e.election.Leader(ctx)
	if err != nil {
		return "", err
	}
	return string(resp.Kvs[0].Value), nil
}
