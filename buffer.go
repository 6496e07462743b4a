package gattcache

// DefaultMaxCacheChar is the historical discovery-buffer size constant
// (§4.3); callers may configure a different capacity via Options.
const DefaultMaxCacheChar = 128

// bufRecord is the discovery buffer's transient record (§3 Discovery
// record). serviceRecs entries use Start/End/UUID/IsPrimary; charRecs
// entries use Start (the value handle), End (the provisional/patched
// descriptor-search upper bound), DeclHandle, UUID and Property.
type bufRecord struct {
	Start      Handle
	End        Handle
	DeclHandle Handle
	IsPrimary  bool
	Property   uint8
	UUID       UUID
}

// DiscoveryBuffer is the bounded scratch area the state machine fills
// while a discovery pass is in progress, before records are lifted into
// the Graph (§4.3). Implementation freedom: this keeps the original's
// single capacity limit and cursor semantics but splits the flat NV
// array into a service list (which only ever grows) and a per-service
// characteristic list (reset at the start of each service's CHAR phase).
type DiscoveryBuffer struct {
	capacity int
	count    int // records ever live across the whole pass, for DB_FULL

	serviceRecs []bufRecord
	curSrvcIdx  int

	charRecs   []bufRecord
	curCharIdx int
}

// NewDiscoveryBuffer returns an empty buffer with the given capacity.
func NewDiscoveryBuffer(capacity int) *DiscoveryBuffer {
	if capacity <= 0 {
		capacity = DefaultMaxCacheChar
	}
	return &DiscoveryBuffer{capacity: capacity}
}

// Reset clears the buffer back to its pre-discovery state.
func (b *DiscoveryBuffer) Reset() {
	b.count = 0
	b.serviceRecs = b.serviceRecs[:0]
	b.curSrvcIdx = 0
	b.charRecs = b.charRecs[:0]
	b.curCharIdx = 0
}

func (b *DiscoveryBuffer) full() bool { return b.count >= b.capacity }

// ContainsServiceRange implements the bta_gattc_srvc_in_list dedup rule
// (§4 Supplemented Features, item 2): a range is "already present" if
// its start OR its end matches an existing service record's start or
// end, not full-range equality and not overlap checking. An invalid
// range (zero or inverted) is also treated as already present, so it is
// never appended (§4.4 Tie-breaks).
func (b *DiscoveryBuffer) ContainsServiceRange(r HandleRange) bool {
	if !r.Valid() {
		return true
	}
	for _, rec := range b.serviceRecs {
		if rec.Start == r.Start || rec.End == r.End {
			return true
		}
	}
	return false
}

// AppendService appends a primary or secondary service record. Returns
// ErrDBFull without appending if the buffer is at capacity.
func (b *DiscoveryBuffer) AppendService(r HandleRange, uuid UUID, isPrimary bool) error {
	if b.full() {
		return ErrDBFull
	}
	b.serviceRecs = append(b.serviceRecs, bufRecord{Start: r.Start, End: r.End, UUID: uuid, IsPrimary: isPrimary})
	b.count++
	return nil
}

// TotalSrvc returns the number of service records appended so far,
// including secondary services discovered mid-pass via INC_SRVC.
func (b *DiscoveryBuffer) TotalSrvc() int { return len(b.serviceRecs) }

// CurSrvcIdx returns the index of the service currently being expanded.
func (b *DiscoveryBuffer) CurSrvcIdx() int { return b.curSrvcIdx }

// CurService returns the service record currently being expanded.
func (b *DiscoveryBuffer) CurService() bufRecord { return b.serviceRecs[b.curSrvcIdx] }

// AdvanceSrvc moves the cursor to the next service record.
func (b *DiscoveryBuffer) AdvanceSrvc() { b.curSrvcIdx++ }

// BeginCharExpansion resets the characteristic cursor for a new service's
// CHAR phase (§4.4 explore_service).
func (b *DiscoveryBuffer) BeginCharExpansion() {
	b.charRecs = b.charRecs[:0]
	b.curCharIdx = 0
}

// AppendChar appends a characteristic record and, if a previous
// characteristic exists for the service currently being expanded,
// retroactively patches its End to declHandle-1 (§4.4 CHAR result
// ingestion, the "Handle-range derivation" design rule). serviceEnd is
// the provisional upper bound (the owning service's current end handle)
// used until the next characteristic arrives or the service closes.
func (b *DiscoveryBuffer) AppendChar(declHandle, valueHandle Handle, uuid UUID, property uint8, serviceEnd Handle) error {
	if b.full() {
		return ErrDBFull
	}
	if n := len(b.charRecs); n > 0 {
		b.charRecs[n-1].End = declHandle - 1
	}
	b.charRecs = append(b.charRecs, bufRecord{
		Start: valueHandle, End: serviceEnd, DeclHandle: declHandle, UUID: uuid, Property: property,
	})
	b.count++
	return nil
}

// TotalChar returns the number of characteristic records for the current
// service not yet consumed by descriptor discovery.
func (b *DiscoveryBuffer) TotalChar() int { return len(b.charRecs) - b.curCharIdx }

// CurChar returns the characteristic record currently having its
// descriptors discovered.
func (b *DiscoveryBuffer) CurChar() bufRecord { return b.charRecs[b.curCharIdx] }

// AdvanceChar moves the characteristic cursor to the next record in the
// current service's expansion.
func (b *DiscoveryBuffer) AdvanceChar() { b.curCharIdx++ }
