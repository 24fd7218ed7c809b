package assign

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

type edge struct {
	to, rev int
	cap     int
	cost    float64
	forward bool
}

// network is a residual graph for successive shortest path min-cost flow.
type network struct {
	adj [][]edge
}

func newNetwork(nodes int) *network {
	return &network{adj: make([][]edge, nodes)}
}

func (g *network) addEdge(from, to, capacity int, cost float64) {
	g.adj[from] = append(g.adj[from], edge{to: to, rev: len(g.adj[to]), cap: capacity, cost: cost, forward: true})
	g.adj[to] = append(g.adj[to], edge{to: from, rev: len(g.adj[from]) - 1, cost: -cost})
}

// bellmanFord returns shortest distances from src over edges with spare
// capacity. Used once to seed potentials while costs are still negative.
func (g *network) bellmanFord(src int) []float64 {
	dist := make([]float64, len(g.adj))
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[src] = 0
	for range len(g.adj) {
		changed := false
		for u, edges := range g.adj {
			if math.IsInf(dist[u], 1) {
				continue
			}
			for _, e := range edges {
				if e.cap > 0 && dist[u]+e.cost < dist[e.to] {
					dist[e.to] = dist[u] + e.cost
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	return dist
}

type item struct {
	node int
	dist float64
}

// pq orders by distance, then node index, so pops are deterministic.
type pq []item

func (q pq) Len() int { return len(q) }
func (q pq) Less(a, b int) bool {
	if q[a].dist != q[b].dist {
		return q[a].dist < q[b].dist
	}
	return q[a].node < q[b].node
}
func (q pq) Swap(a, b int) { q[a], q[b] = q[b], q[a] }
func (q *pq) Push(x any)   { *q = append(*q, x.(item)) }
func (q *pq) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// dijkstra runs on reduced costs cost + h[u] - h[v] and records the
// predecessor node and edge of every reached node.
func (g *network) dijkstra(src int, h []float64, prevNode, prevEdge []int) []float64 {
	dist := make([]float64, len(g.adj))
	for i := range dist {
		dist[i] = math.Inf(1)
		prevNode[i] = -1
	}
	dist[src] = 0
	q := &pq{{node: src}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(item)
		if cur.dist > dist[cur.node] {
			continue
		}
		u := cur.node
		for k, e := range g.adj[u] {
			if e.cap == 0 {
				continue
			}
			nd := dist[u] + e.cost + h[u] - h[e.to]
			if nd < dist[e.to] {
				dist[e.to] = nd
				prevNode[e.to] = u
				prevEdge[e.to] = k
				heap.Push(q, item{node: e.to, dist: nd})
			}
		}
	}
	return dist
}

// minCostFlow solves the same problem as hungarian on the network
// source -> rows -> columns -> sink, pushing one unit per augmentation.
func minCostFlow(ctx context.Context, cost []float64, n, m int) ([]int, error) {
	src, sink := 0, n+m+1
	rowNode := func(i int) int { return 1 + i }
	colNode := func(j int) int { return 1 + n + j }

	g := newNetwork(n + m + 2)
	for i := 0; i < n; i++ {
		g.addEdge(src, rowNode(i), 1, 0)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			g.addEdge(rowNode(i), colNode(j), 1, cost[i*m+j])
		}
	}
	for j := 0; j < m; j++ {
		g.addEdge(colNode(j), sink, 1, 0)
	}

	h := g.bellmanFord(src)
	prevNode := make([]int, len(g.adj))
	prevEdge := make([]int, len(g.adj))

	for flow := 0; flow < n; flow++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dist := g.dijkstra(src, h, prevNode, prevEdge)
		if math.IsInf(dist[sink], 1) {
			return nil, fmt.Errorf("augmenting path %d of %d not found: %w", flow+1, n, model.ErrInfeasibleAssignment)
		}
		for v := range h {
			if !math.IsInf(dist[v], 1) {
				h[v] += dist[v]
			}
		}

		for v := sink; v != src; v = prevNode[v] {
			e := &g.adj[prevNode[v]][prevEdge[v]]
			e.cap--
			g.adj[v][e.rev].cap++
		}
	}

	ans := make([]int, n)
	for i := 0; i < n; i++ {
		ans[i] = -1
		for _, e := range g.adj[rowNode(i)] {
			if e.forward && e.cap == 0 {
				ans[i] = e.to - colNode(0)
				break
			}
		}
	}
	return ans, nil
}
