// Package graph renders call scripts as diagrams.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/doorman/pkg/domain"
)

const (
	startID = "start"
	endID   = "hangup"
)

// GenerateMermaid produces a Mermaid flowchart of script, nested branches included.
// It applies semantic styling:
// - Start and end of call: ((Circle))
// - forwardCall: [[Subroutine]]
// - gatherDigits (input): [/Parallelogram/]
// - Default: [Rectangle]
// Edges out of gatherDigits are labeled with the digits that select the branch.
func GenerateMermaid(caller string, script domain.Script) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", startID, escape(caller))
	fmt.Fprintf(&sb, "    %s((\"hang up\"))\n", endID)

	g := &generator{sb: &sb}
	first := g.script("s", script)
	fmt.Fprintf(&sb, "    %s --> %s\n", startID, first)
	return sb.String()
}

type generator struct {
	sb *strings.Builder
}

// script writes the nodes of script under prefix and returns the ID of its
// entry node. An exhausted script hangs up.
func (g *generator) script(prefix string, script domain.Script) string {
	if len(script) == 0 {
		return endID
	}

	ids := make([]string, len(script))
	for i := range script {
		ids[i] = fmt.Sprintf("%s_%d", prefix, i)
	}

	for i, step := range script {
		id := ids[i]
		next := endID
		if i+1 < len(ids) {
			next = ids[i+1]
		}

		opener, closer := "[", "]"
		switch step.Command {
		case domain.CommandGatherDigits:
			opener, closer = "[/", "/]"
		case domain.CommandForwardCall:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(g.sb, "    %s%s\"%s\"%s\n", id, opener, escape(label(step)), closer)

		switch step.Command {
		case domain.CommandGatherDigits:
			// The rest of the script is unreachable: gathering ends the turn and
			// resumes on a branch.
			for _, key := range branchKeys(step.Branches) {
				entry := g.script(id+"_"+sanitizeMermaidID(key), step.Branches[key])
				fmt.Fprintf(g.sb, "    %s -- \"%s\" --> %s\n", id, escape(key), entry)
			}
			return ids[0]
		case domain.CommandHangUp:
			fmt.Fprintf(g.sb, "    %s --> %s\n", id, endID)
			return ids[0]
		default:
			fmt.Fprintf(g.sb, "    %s --> %s\n", id, next)
		}
	}
	return ids[0]
}

func label(step domain.Step) string {
	p := step.Params
	switch step.Command {
	case domain.CommandGatherDigits, domain.CommandHangUp:
		return string(step.Command)
	case domain.CommandSendSms:
		return fmt.Sprintf("%s %s: %s", step.Command, p.To, p.Value)
	default:
		return fmt.Sprintf("%s: %s", step.Command, p.Value)
	}
}

// branchKeys returns digit keys in order, the default branch last.
func branchKeys(branches map[string]domain.Script) []string {
	keys := make([]string, 0, len(branches))
	for key := range branches {
		if key != domain.DefaultBranch {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if _, ok := branches[domain.DefaultBranch]; ok {
		keys = append(keys, domain.DefaultBranch)
	}
	return keys
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		case r == '*':
			sb.WriteString("star")
		case r == '#':
			sb.WriteString("hash")
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
