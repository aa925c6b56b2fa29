package memory

import (
	"fmt"
	"strings"
	"time"
)

// Region identifies one of the five memory subsystems.
type Region string

const (
	RegionWorking     Region = "working"
	RegionDeclarative Region = "declarative"
	RegionProcedural  Region = "procedural"
	RegionAssociative Region = "associative"
	RegionEmotional   Region = "emotional"
)

// Regions returns every region in a stable order.
func Regions() []Region {
	return []Region{
		RegionWorking,
		RegionDeclarative,
		RegionProcedural,
		RegionAssociative,
		RegionEmotional,
	}
}

// Valid reports whether r belongs to the region set.
func (r Region) Valid() bool {
	switch r {
	case RegionWorking, RegionDeclarative, RegionProcedural, RegionAssociative, RegionEmotional:
		return true
	}
	return false
}

// Durable reports whether the region persists across restarts.
func (r Region) Durable() bool {
	return r.Valid() && r != RegionWorking
}

func (r Region) String() string {
	return string(r)
}

// ParseRegion resolves a region name, case-insensitively.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, s)
	}
	return r, nil
}

// Operation names a store operation.
type Operation string

const (
	// working
	OpPut   Operation = "put"
	OpGet   Operation = "get"
	OpClear Operation = "clear"
	OpKeys  Operation = "keys"

	// declarative, emotional
	OpStore          Operation = "store"
	OpRetrieve       Operation = "retrieve"
	OpQuerySentiment Operation = "query_sentiment"

	// procedural
	OpStoreProcedure  Operation = "store_procedure"
	OpLoadProcedure   Operation = "load_procedure"
	OpListProcedures  Operation = "list_procedures"
	OpDeleteProcedure Operation = "delete_procedure"

	// associative
	OpAddAssociation  Operation = "add_association"
	OpGetAssociations Operation = "get_associations"
	OpListConcepts    Operation = "list_concepts"
	OpTraverse        Operation = "traverse"
)

func (o Operation) String() string {
	return string(o)
}

// Request is the payload handed to the coordinator. Fields not used by an
// operation are ignored.
type Request struct {
	Region       Region    `json:"region"`
	Op           Operation `json:"op"`
	Key          string    `json:"key,omitempty"`
	Value        []byte    `json:"value,omitempty"`
	Target       string    `json:"target,omitempty"`
	Sentiment    *float64  `json:"sentiment,omitempty"` // required by emotional store
	MinSentiment float64   `json:"min_sentiment,omitempty"`
	MaxSentiment float64   `json:"max_sentiment,omitempty"`
	Depth        int       `json:"depth,omitempty"`
}

// Result is the uniform answer returned by the coordinator.
type Result struct {
	Value     []byte   `json:"value,omitempty"`
	Sentiment float64  `json:"sentiment,omitempty"`
	Found     bool     `json:"found"`
	Concepts  []string `json:"concepts,omitempty"`
	Names     []string `json:"names,omitempty"`
	Entries   []Entry  `json:"entries,omitempty"`
}

// Entry is one keyed record as held by a durable store.
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	Sentiment float64   `json:"sentiment"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sentiment returns a pointer to v for Request.Sentiment.
func Sentiment(v float64) *float64 {
	return &v
}

// ValidateKey rejects empty keys.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}

// CloneBytes returns an independent copy of b, preserving nil.
func CloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
