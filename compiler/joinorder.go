package compiler

import (
	"sort"

	"ontoforge.dev/ontology"
)

// orderRelationships returns relationships in deterministic join order: a
// topological sort over the object dependency graph (From -> To edges) via
// Kahn's algorithm when that graph is a DAG, falling back to lexicographic
// order by relationship name when it isn't. A cycle among relationships is
// legal in a semantic model (many-to-many self-references are common) — it
// only costs the topological ordering, never a compile failure.
//
// Relationships are ordered by the topological position of their From object;
// ties (multiple relationships sharing a From object) are broken
// lexicographically by relationship name, so the result is fully deterministic.
func orderRelationships(rels []ontology.Relationship) (ordered []ontology.Relationship, usedTopological bool) {
	if len(rels) == 0 {
		return nil, true
	}

	order, ok := topologicalObjectOrder(rels)
	if !ok {
		out := append([]ontology.Relationship(nil), rels...)
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, false
	}

	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}

	out := append([]ontology.Relationship(nil), rels...)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank[out[i].From], rank[out[j].From]
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out, true
}

// topologicalObjectOrder runs Kahn's algorithm over the object graph implied
// by relationships (edge From -> To), returning a topological object order
// and false if the graph contains a cycle.
func topologicalObjectOrder(rels []ontology.Relationship) ([]string, bool) {
	nodes := map[string]bool{}
	adjacency := map[string][]string{}
	inDegree := map[string]int{}

	for _, r := range rels {
		nodes[r.From] = true
		nodes[r.To] = true
		if _, ok := inDegree[r.From]; !ok {
			inDegree[r.From] = 0
		}
		if _, ok := inDegree[r.To]; !ok {
			inDegree[r.To] = 0
		}
		adjacency[r.From] = append(adjacency[r.From], r.To)
		inDegree[r.To]++
	}

	var ready []string
	for n := range nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var newlyReady []string
		for _, dep := range adjacency[n] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		sort.Strings(newlyReady)
		ready = append(ready, newlyReady...)
	}

	return order, len(order) == len(nodes)
}
