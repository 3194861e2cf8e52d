package rsp

import "github.com/derekparker/trie"

// handlerFunc produces an RSP reply payload (no $...#cc framing) for a
// command string already known to start with the prefix it was registered
// under. cmd is the full command text, e.g. "qSupported:swbreak+".
type handlerFunc func(s *Server, cmd string) string

// dispatcher resolves an incoming command to the handler registered for
// the longest prefix it starts with, mirroring the teacher's corpus
// convention of a prefix-keyed command table (spec.md §9 Design Notes)
// but built on github.com/derekparker/trie instead of a hand-rolled map,
// the way the teacher's own command surfaces use a shared trie/lookup
// structure for prefix resolution.
type dispatcher struct {
	t *trie.Trie
}

func newDispatcher() *dispatcher {
	return &dispatcher{t: trie.New()}
}

func (d *dispatcher) register(prefix string, h handlerFunc) {
	d.t.Add(prefix, h)
}

// lookup walks cmd rune by rune through the trie, remembering the deepest
// terminating node seen so far, so "qSupported:swbreak+" resolves to the
// handler registered for "qSupported" even though no exact key matches.
func (d *dispatcher) lookup(cmd string) (handlerFunc, bool) {
	node := d.t.Root()
	var found handlerFunc
	ok := false
	for _, r := range cmd {
		child, exists := node.Children()[r]
		if !exists {
			break
		}
		node = child
		if term, isTerm := node.Children()[rune(0)]; isTerm && term.Terminating() {
			if h, cast := term.Meta().(handlerFunc); cast {
				found = h
				ok = true
			}
		}
	}
	return found, ok
}
