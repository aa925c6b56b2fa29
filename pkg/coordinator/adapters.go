package coordinator

import (
	"context"
	"fmt"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/memory"
	"github.com/harun/cortex/pkg/memory/associative"
	"github.com/harun/cortex/pkg/memory/declarative"
	"github.com/harun/cortex/pkg/memory/emotional"
	"github.com/harun/cortex/pkg/memory/procedural"
	"github.com/harun/cortex/pkg/memory/working"
)

func unsupported(region memory.Region, op memory.Operation) error {
	return fmt.Errorf("%w: %s does not offer %q", memory.ErrUnsupportedOperation, region, op)
}

// WorkingStore adapts the working memory LRU.
type WorkingStore struct {
	store *working.Store
}

var workingOps = ops(memory.OpPut, memory.OpGet, memory.OpClear, memory.OpKeys)

// NewWorkingStore creates a working memory region of the given capacity.
func NewWorkingStore(capacity int) (*WorkingStore, error) {
	s, err := working.New(capacity, working.WithEvictFunc(func(string) {
		observability.RecordWorkingEviction()
	}))
	if err != nil {
		return nil, err
	}
	return &WorkingStore{store: s}, nil
}

func (a *WorkingStore) Supports(op memory.Operation) bool {
	return workingOps.has(op)
}

func (a *WorkingStore) Apply(_ context.Context, req memory.Request) (memory.Result, error) {
	switch req.Op {
	case memory.OpPut:
		if err := a.store.Put(req.Key, req.Value); err != nil {
			return memory.Result{}, err
		}
		observability.SetWorkingEntries(a.store.Len())
		return memory.Result{}, nil
	case memory.OpGet:
		v, err := a.store.Get(req.Key)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Value: v, Found: true}, nil
	case memory.OpClear:
		a.store.Clear()
		observability.SetWorkingEntries(0)
		return memory.Result{}, nil
	case memory.OpKeys:
		return memory.Result{Names: a.store.Keys()}, nil
	}
	return memory.Result{}, unsupported(memory.RegionWorking, req.Op)
}

// Close discards volatile contents.
func (a *WorkingStore) Close() error {
	a.store.Clear()
	return nil
}

// DeclarativeStore adapts the SQLite fact store.
type DeclarativeStore struct {
	store *declarative.Store
}

var declarativeOps = ops(memory.OpStore, memory.OpRetrieve)

func NewDeclarativeStore(cfg declarative.Config) (*DeclarativeStore, error) {
	s, err := declarative.New(cfg)
	if err != nil {
		return nil, err
	}
	return &DeclarativeStore{store: s}, nil
}

func (a *DeclarativeStore) Supports(op memory.Operation) bool {
	return declarativeOps.has(op)
}

func (a *DeclarativeStore) Apply(ctx context.Context, req memory.Request) (memory.Result, error) {
	switch req.Op {
	case memory.OpStore:
		return memory.Result{}, a.store.Store(ctx, req.Key, req.Value)
	case memory.OpRetrieve:
		v, err := a.store.Retrieve(ctx, req.Key)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Value: v, Found: true}, nil
	}
	return memory.Result{}, unsupported(memory.RegionDeclarative, req.Op)
}

func (a *DeclarativeStore) Checkpoint(ctx context.Context) error {
	return a.store.Checkpoint(ctx)
}

func (a *DeclarativeStore) Close() error {
	return a.store.Close()
}

// ProceduralStore adapts the file-per-procedure store.
type ProceduralStore struct {
	store *procedural.Store
}

var proceduralOps = ops(
	memory.OpStoreProcedure,
	memory.OpLoadProcedure,
	memory.OpListProcedures,
	memory.OpDeleteProcedure,
)

func NewProceduralStore(cfg procedural.Config) (*ProceduralStore, error) {
	s, err := procedural.New(cfg)
	if err != nil {
		return nil, err
	}
	return &ProceduralStore{store: s}, nil
}

func (a *ProceduralStore) Supports(op memory.Operation) bool {
	return proceduralOps.has(op)
}

func (a *ProceduralStore) Apply(ctx context.Context, req memory.Request) (memory.Result, error) {
	switch req.Op {
	case memory.OpStoreProcedure:
		return memory.Result{}, a.store.StoreProcedure(ctx, req.Key, req.Value)
	case memory.OpLoadProcedure:
		v, err := a.store.LoadProcedure(ctx, req.Key)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Value: v, Found: true}, nil
	case memory.OpListProcedures:
		names, err := a.store.ListProcedures(ctx)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Names: names}, nil
	case memory.OpDeleteProcedure:
		return memory.Result{}, a.store.DeleteProcedure(ctx, req.Key)
	}
	return memory.Result{}, unsupported(memory.RegionProcedural, req.Op)
}

func (a *ProceduralStore) Watch(onChange func(name string)) error {
	return a.store.Watch(onChange)
}

func (a *ProceduralStore) Checkpoint(ctx context.Context) error {
	return a.store.Checkpoint(ctx)
}

func (a *ProceduralStore) Close() error {
	return a.store.Close()
}

// AssociativeStore adapts the concept graph. Multi-hop traversal is a
// coordinator composite built from OpGetAssociations calls.
type AssociativeStore struct {
	store *associative.Store
}

var associativeOps = ops(memory.OpAddAssociation, memory.OpGetAssociations, memory.OpListConcepts)

func NewAssociativeStore(cfg associative.Config) (*AssociativeStore, error) {
	s, err := associative.New(cfg)
	if err != nil {
		return nil, err
	}
	return &AssociativeStore{store: s}, nil
}

func (a *AssociativeStore) Supports(op memory.Operation) bool {
	return associativeOps.has(op)
}

func (a *AssociativeStore) Apply(ctx context.Context, req memory.Request) (memory.Result, error) {
	switch req.Op {
	case memory.OpAddAssociation:
		return memory.Result{}, a.store.AddAssociation(ctx, req.Key, req.Target)
	case memory.OpGetAssociations:
		targets, err := a.store.Associations(ctx, req.Key)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Concepts: targets, Found: len(targets) > 0}, nil
	case memory.OpListConcepts:
		concepts, err := a.store.Concepts(ctx)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Concepts: concepts}, nil
	}
	return memory.Result{}, unsupported(memory.RegionAssociative, req.Op)
}

func (a *AssociativeStore) Checkpoint(ctx context.Context) error {
	return a.store.Checkpoint(ctx)
}

func (a *AssociativeStore) Close() error {
	return a.store.Close()
}

// EmotionalStore adapts the sentiment-tagged store.
type EmotionalStore struct {
	store *emotional.Store
}

var emotionalOps = ops(memory.OpStore, memory.OpRetrieve, memory.OpQuerySentiment)

func NewEmotionalStore(cfg emotional.Config) (*EmotionalStore, error) {
	s, err := emotional.New(cfg)
	if err != nil {
		return nil, err
	}
	return &EmotionalStore{store: s}, nil
}

func (a *EmotionalStore) Supports(op memory.Operation) bool {
	return emotionalOps.has(op)
}

func (a *EmotionalStore) Apply(ctx context.Context, req memory.Request) (memory.Result, error) {
	switch req.Op {
	case memory.OpStore:
		if req.Sentiment == nil {
			return memory.Result{}, memory.ErrMissingSentiment
		}
		return memory.Result{}, a.store.Store(ctx, req.Key, req.Value, *req.Sentiment)
	case memory.OpRetrieve:
		e, err := a.store.Retrieve(ctx, req.Key)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Value: e.Value, Sentiment: e.Sentiment, Found: true}, nil
	case memory.OpQuerySentiment:
		entries, err := a.store.QueryBySentiment(ctx, req.MinSentiment, req.MaxSentiment)
		if err != nil {
			return memory.Result{}, err
		}
		return memory.Result{Entries: entries, Found: len(entries) > 0}, nil
	}
	return memory.Result{}, unsupported(memory.RegionEmotional, req.Op)
}

func (a *EmotionalStore) Checkpoint(ctx context.Context) error {
	return a.store.Checkpoint(ctx)
}

func (a *EmotionalStore) Close() error {
	return a.store.Close()
}
