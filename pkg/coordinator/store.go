package coordinator

import (
	"context"

	"github.com/harun/cortex/pkg/memory"
)

// Store is the capability every region offers the coordinator. Apply runs
// exactly one attempt of one operation; retries and caching happen above it.
type Store interface {
	Apply(ctx context.Context, req memory.Request) (memory.Result, error)
	Supports(op memory.Operation) bool
	Close() error
}

// checkpointer is implemented by stores with a maintenance hook.
type checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// watcher is implemented by stores whose contents can change outside the
// coordinator. The callback receives the affected key.
type watcher interface {
	Watch(onChange func(key string)) error
}

// opSet is the closed set of operations a region serves.
type opSet map[memory.Operation]struct{}

func ops(list ...memory.Operation) opSet {
	s := make(opSet, len(list))
	for _, op := range list {
		s[op] = struct{}{}
	}
	return s
}

func (s opSet) has(op memory.Operation) bool {
	_, ok := s[op]
	return ok
}

// cachedReads are key-addressed reads the lookaside may answer.
var cachedReads = ops(memory.OpRetrieve, memory.OpLoadProcedure)

// keyedWrites replace or remove the value under req.Key.
var keyedWrites = ops(memory.OpStore, memory.OpStoreProcedure, memory.OpDeleteProcedure)

// audited operations destroy data and are written to the audit log.
var audited = ops(memory.OpClear, memory.OpDeleteProcedure)
