// Package seq implements the ordered element store shared through a
// container.Container.
//
// A Store is deliberately NOT safe for concurrent use. Every method is a pure
// operation on the underlying slice; exclusivity is provided by whichever
// guard controller owns the store. Callers outside this module never see a
// Store directly, only the Reader and Sequence capability interfaces handed to
// them while an admission ticket is held.
//
// # Sentinel Rejection
//
// A store may be constructed with a reject predicate. Any element for which
// the predicate returns true is the designated "absent" sentinel and is
// refused by Append and Replace with REJECTED_NIL_INSERT. The predicate is
// fixed at construction; the store never inspects element types at runtime.
//
// # Index Evaluation
//
// ElementAt and RemoveAt validate the index against the extent of the
// sequence at the moment they run, not when the caller submitted the
// request. A request that waited in an admission queue may therefore observe
// a longer or shorter sequence than the one its caller last saw.
package seq
