// Package memory defines the vocabulary shared by the region stores and the
// coordinator: region and operation identifiers, the request/result envelope,
// and the error kinds every store reports.
//
// Invariants:
//   - Regions form a closed set; anything else is ErrUnknownRegion.
//   - Validation errors (ErrNotFound, ErrOutOfRangeSentiment,
//     ErrMissingSentiment, ErrInvalidKey, ErrUnsupportedOperation,
//     ErrUnknownRegion) are never retried.
//   - Only failures wrapped with Transient are eligible for retry.
//
// Usage:
//
//	res, err := coord.Execute(ctx, memory.Request{
//		Region: memory.RegionDeclarative,
//		Op:     memory.OpRetrieve,
//		Key:    "dataset",
//	})
//	if errors.Is(err, memory.ErrNotFound) {
//		// fall back
//	}
//	_ = res.Value
package memory
