// Package friends provides the in-process FriendGraph implementation. The
// persistent social graph lives outside this core; this adjacency map backs
// single-process deployments and tests.
package friends

import (
	"sync"

	"chat-core/domain"
)

type Graph struct {
	mu    sync.RWMutex
	edges map[domain.UserID]map[domain.UserID]struct{}
}

func NewGraph() *Graph {
	return &Graph{edges: make(map[domain.UserID]map[domain.UserID]struct{})}
}

// Add links a and b symmetrically. Linking twice is harmless.
func (g *Graph) Add(a, b domain.UserID) {
	if a == b {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link(a, b)
	g.link(b, a)
}

func (g *Graph) link(from, to domain.UserID) {
	if g.edges[from] == nil {
		g.edges[from] = make(map[domain.UserID]struct{})
	}
	g.edges[from][to] = struct{}{}
}

func (g *Graph) IsFriend(a, b domain.UserID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[a][b]
	return ok
}

func (g *Graph) FriendsOf(a domain.UserID) []domain.UserID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.UserID, 0, len(g.edges[a]))
	for friend := range g.edges[a] {
		out = append(out, friend)
	}
	return out
}
