package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ppiankov/clarifai/internal/state"
	"github.com/ppiankov/clarifai/internal/steps"
)

// Branch picks the next node from the merged state. Route must return one of Targets.
type Branch struct {
	Targets []string
	Route   func(s state.State) string
}

// Graph is the fixed topology of a run. A node with a join count above one
// waits for that many arrivals before it is scheduled.
type Graph struct {
	Entry    string
	Exit     string
	Nodes    []string
	Edges    map[string][]string
	Branches map[string]Branch
	Joins    map[string]int
}

// DefaultGraph returns the analysis topology:
//
//	preprocess -> extractClaims, detectBiases
//	extractClaims -> verifyClaimsWeb | verifyClaimsLlm | reporter (no claims)
//	detectBiases, verifyClaims* -> reporter (join of two arrivals)
func DefaultGraph() *Graph {
	return &Graph{
		Entry: steps.NodePreprocess,
		Exit:  steps.NodeReporter,
		Nodes: []string{
			steps.NodePreprocess,
			steps.NodeExtractClaims,
			steps.NodeDetectBiases,
			steps.NodeVerifyClaimsWeb,
			steps.NodeVerifyClaimsLLM,
			steps.NodeReporter,
		},
		Edges: map[string][]string{
			steps.NodePreprocess:      {steps.NodeExtractClaims, steps.NodeDetectBiases},
			steps.NodeDetectBiases:    {steps.NodeReporter},
			steps.NodeVerifyClaimsWeb: {steps.NodeReporter},
			steps.NodeVerifyClaimsLLM: {steps.NodeReporter},
		},
		Branches: map[string]Branch{
			steps.NodeExtractClaims: {
				Targets: []string{steps.NodeVerifyClaimsWeb, steps.NodeVerifyClaimsLLM, steps.NodeReporter},
				Route:   routeClaims,
			},
		},
		Joins: map[string]int{
			steps.NodeReporter: 2,
		},
	}
}

func routeClaims(s state.State) string {
	switch {
	case len(s.ExtractedClaims) == 0:
		return steps.NodeReporter
	case s.Configuration.VerifiesOnWeb():
		return steps.NodeVerifyClaimsWeb
	default:
		return steps.NodeVerifyClaimsLLM
	}
}

// next returns the successors of node given the state merged so far
func (g *Graph) next(node string, s state.State) ([]string, error) {
	out := append([]string(nil), g.Edges[node]...)
	if b, ok := g.Branches[node]; ok {
		target := b.Route(s)
		if !slices.Contains(b.Targets, target) {
			return nil, fmt.Errorf("branch after %s chose undeclared node %q", node, target)
		}
		out = append(out, target)
	}
	return out, nil
}

func (g *Graph) arrivals() map[string]int {
	pending := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		pending[n] = 1
	}
	for n, k := range g.Joins {
		pending[n] = k
	}
	return pending
}

// Mermaid renders the topology as a mermaid flowchart. Conditional edges are dotted.
func (g *Graph) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "  __start__ --> %s\n", g.Entry)
	for _, n := range g.Nodes {
		for _, to := range g.Edges[n] {
			fmt.Fprintf(&sb, "  %s --> %s\n", n, to)
		}
		if b, ok := g.Branches[n]; ok {
			for _, to := range b.Targets {
				fmt.Fprintf(&sb, "  %s -.-> %s\n", n, to)
			}
		}
	}
	fmt.Fprintf(&sb, "  %s --> __end__\n", g.Exit)
	return sb.String()
}
