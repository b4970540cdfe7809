package reducer

// fragment holds the cached and/or pending fragment accumulated for one
// key within the currently-open closure.
type fragment[V any] struct {
	hasCached  bool
	cached     V
	hasPending bool
	pendingNS  uint64
}

// Closure accumulates cached/pending fragments for keys of type K between
// MapStart and MapEnd, keeping the previous frame's sample instant so
// Impute can be applied at MapEnd. V is the cached-fragment's payload
// (e.g. total wait ns + count).
type Closure[K comparable, V any] struct {
	open       bool
	tPrev      *uint64
	fragments  map[K]fragment[V]
}

// NewClosure returns an empty closure reducer.
func NewClosure[K comparable, V any]() *Closure[K, V] {
	return &Closure[K, V]{fragments: make(map[K]fragment[V])}
}

// Start begins a new closure. Calling Start while already open is a
// caller bug (the parser guarantees balanced MapStart/MapEnd); it simply
// resets the in-progress fragment set.
func (c *Closure[K, V]) Start() {
	c.open = true
	c.fragments = make(map[K]fragment[V])
}

// AddCached records a cached fragment for key, overwriting any previous
// cached fragment for the same key within this closure (the tracer
// emits at most one @completed-style line per key per closure).
func (c *Closure[K, V]) AddCached(key K, value V) {
	f := c.fragments[key]
	f.hasCached = true
	f.cached = value
	c.fragments[key] = f
}

// AddPending records a pending fragment for key.
func (c *Closure[K, V]) AddPending(key K, nsSinceBoot uint64) {
	f := c.fragments[key]
	f.hasPending = true
	f.pendingNS = nsSinceBoot
	c.fragments[key] = f
}

// DerivedEntry is one key's reduction result at MapEnd.
type DerivedEntry[K comparable, V any] struct {
	Key             K
	HasCached       bool
	Cached          V
	SampleInstantNS uint64
	PendingExtraNS  uint64
}

// End closes the closure at sample instant tCurr (from the frame's
// SampleInstant event) and returns one DerivedEntry per key that had a
// cached or pending fragment. End applies Impute to compute each
// entry's PendingExtraNS; cachedNS is the caller-supplied accessor for
// the dialect-specific cached total. Callers combine Cached's own
// fields with PendingExtraNS to build their derived events.
func (c *Closure[K, V]) End(tCurr uint64, cachedNS func(V) uint64) []DerivedEntry[K, V] {
	entries := make([]DerivedEntry[K, V], 0, len(c.fragments))
	for key, f := range c.fragments {
		var cns uint64
		if f.hasCached {
			cns = cachedNS(f.cached)
		}
		_, pendingExtra := Impute(tCurr, c.tPrev, f.hasPending, f.pendingNS, f.hasCached, cns)
		entries = append(entries, DerivedEntry[K, V]{
			Key:             key,
			HasCached:       f.hasCached,
			Cached:          f.cached,
			SampleInstantNS: tCurr,
			PendingExtraNS:  pendingExtra,
		})
	}
	c.open = false
	c.tPrev = &tCurr
	c.fragments = make(map[K]fragment[V])
	return entries
}

// Open reports whether a MapStart has been seen without a matching
// MapEnd yet.
func (c *Closure[K, V]) Open() bool {
	return c.open
}
