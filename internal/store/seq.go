package store

import "sync"

type seqGenerator struct {
	mu              sync.Mutex
	perConversation map[string]int64
}

func newSeqGenerator() *seqGenerator {
	return &seqGenerator{perConversation: make(map[string]int64)}
}

func (g *seqGenerator) nextFor(key string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.perConversation[key]++
	return g.perConversation[key]
}
