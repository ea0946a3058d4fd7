// Package noop provides an in-process Coordinator for single-writer
// deployments that don't need etcd (SPEC_FULL.md §6).
package noop

import (
	"context"
	"sync"

	"github.com/ai-task-scheduler/engine/internal/coordination"
)

// Coordinator keeps registered node IDs in memory and reports all of them
// as active; each of its elections is won by whichever value campaigned.
type Coordinator struct {
	mu    sync.Mutex
	nodes map[string]bool
}

// New returns a no-op Coordinator.
func New() *Coordinator {
	return &Coordinator{nodes: map[string]bool{}}
}

func (c *Coordinator) NewElection(name string) coordination.Election {
	return &election{}
}

// noLeaderValue marks an election nobody has campaigned in yet.
const noLeaderValue = ""

func (c *Coordinator) RegisterNode(ctx context.Context, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[nodeID] = true
	return nil
}

func (c *Coordinator) Heartbeat(ctx context.Context, nodeID string) error {
	return c.RegisterNode(ctx, nodeID)
}

func (c *Coordinator) GetActiveNodes(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodes := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		nodes = append(nodes, id)
	}
	return nodes, nil
}

func (c *Coordinator) Close() error { return nil }

// election is always won by whoever campaigns — a single-process
// deployment has no one else to contend with.
type election struct {
	mu     sync.Mutex
	leader string
}

func (e *election) Campaign(ctx context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leader = value
	return nil
}

func (e *election) Resign(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leader = noLeaderValue
	return nil
}

func (e *election) Leader(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leader, nil
}
