package orchestrate

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
)

// shardRing assigns each (config, observerSet, mode, flowSelectionStrategy)
// work unit to one of a fixed number of worker shards via rendezvous
// hashing, so the same unit key always lands on the same shard label
// regardless of how many other units are queued alongside it. Run
// orchestration distributes these units across a bounded worker pool.
type shardRing struct {
	r *rendezvous.Rendezvous
}

func newShardRing(n int) *shardRing {
	if n < 1 {
		n = 1
	}
	nodes := make([]string, n)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i)
	}
	return &shardRing{r: rendezvous.New(nodes, xxhash.Sum64String)}
}

// shard returns the worker index a unit key is consistently routed to.
func (s *shardRing) shard(key string) int {
	n, err := strconv.Atoi(s.r.Lookup(key))
	if err != nil {
		return 0
	}
	return n
}
