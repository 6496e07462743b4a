package gattcache

import "context"

// ConnID identifies a connection to a single remote server, as assigned by
// the surrounding host stack. The engine treats it as an opaque key.
type ConnID uint16

// Transport distinguishes the two link types the discovery entry point
// branches on.
type Transport int

const (
	// TransportLE drives discovery through ATTDiscoverer.
	TransportLE Transport = iota
	// TransportBREDR drives discovery through SDPSearcher (§4.5).
	TransportBREDR
)

// DiscoveryType names an ATT discovery sub-procedure.
type DiscoveryType int

const (
	DiscSrvcAll DiscoveryType = iota
	DiscSrvcByUUID
	DiscInclSrvc
	DiscChar
	DiscCharDescr
)

func (d DiscoveryType) String() string {
	switch d {
	case DiscSrvcAll:
		return "SRVC_ALL"
	case DiscSrvcByUUID:
		return "SRVC_BY_UUID"
	case DiscInclSrvc:
		return "INC_SRVC"
	case DiscChar:
		return "CHAR"
	case DiscCharDescr:
		return "CHAR_DSCPT"
	default:
		return "UNKNOWN"
	}
}

// ATTStatus is the outcome of a single ATT sub-procedure, as reported by
// its completion callback.
type ATTStatus int

const (
	ATTSuccess ATTStatus = iota
	ATTFailure
)

// ATTServiceRecord is a SRVC_ALL/SRVC_BY_UUID result: one primary service.
type ATTServiceRecord struct {
	Range HandleRange
	UUID  UUID
}

// ATTInclRecord is an INC_SRVC result: one included-service reference
// found while exploring OwnerHandle's service.
type ATTInclRecord struct {
	OwnerHandle Handle
	Included    HandleRange
	UUID        UUID
}

// ATTCharRecord is a CHAR result: one characteristic declaration.
type ATTCharRecord struct {
	DeclHandle  Handle
	ValueHandle Handle
	Properties  uint8
	UUID        UUID
}

// ATTDescrRecord is a CHAR_DSCPT result: one descriptor.
type ATTDescrRecord struct {
	Handle Handle
	UUID   UUID
}

// ATTDiscoverer is the out-of-scope ATT wire encoder/decoder collaborator
// (§1, §6). The engine issues one sub-procedure at a time and expects the
// corresponding results to be delivered back through the ResultSink
// On*Result/OnATTComplete methods in handle order, ending with exactly
// one completion callback per Discover call.
type ATTDiscoverer interface {
	Discover(ctx context.Context, conn ConnID, disc DiscoveryType, r HandleRange) error
}

// SDPRecord is one BR/EDR ServiceSearchAttributeRequest result that
// carried both a service-class UUID and an ATT protocol descriptor
// (§4.5); records missing either field are skipped by the caller before
// this type is ever constructed.
type SDPRecord struct {
	Range HandleRange
	UUID  UUID
}

// SDPSearcher is the out-of-scope SDP query-execution collaborator.
type SDPSearcher interface {
	SearchAttr(ctx context.Context, bda BDAddr) ([]SDPRecord, error)
}

// BondChecker is the out-of-scope bonding-state collaborator: only
// bonded peers' graphs are persisted (§9 "Bondedness gate for save").
type BondChecker interface {
	Bonded(bda BDAddr) bool
}

// EventKind names the event codes the engine surfaces through an
// EventDispatcher.
type EventKind int

const (
	// EventSearchResult is emitted once per matching service by
	// Engine.SearchService (§4 Supplemented Features, item 5).
	EventSearchResult EventKind = iota
	// EventDiscoveryComplete is emitted once a discovery pass finalizes,
	// successfully or not.
	EventDiscoveryComplete
)

// Event is a payload surfaced to the application through EventDispatcher.
type Event struct {
	Kind    EventKind
	Conn    ConnID
	Service *Service
	Failed  bool
}

// EventDispatcher is the out-of-scope application-facing event dispatcher
// collaborator.
type EventDispatcher interface {
	Dispatch(ev Event)
}

// ResultSink is the callback side of ATTDiscoverer: the methods an
// ATTDiscoverer implementation invokes as it produces results, in
// handle order, ending with exactly one OnATTComplete per Discover call
// (§6 "result callback" / "completion callback"). *Engine implements
// this interface; backends are handed one through their SetSink method
// rather than importing *Engine directly, so collab.go stays the only file that
// names both sides of the boundary.
type ResultSink interface {
	OnServiceResult(conn ConnID, rec ATTServiceRecord)
	OnInclResult(conn ConnID, rec ATTInclRecord)
	OnCharResult(conn ConnID, rec ATTCharRecord)
	OnDescrResult(conn ConnID, rec ATTDescrRecord)
	OnATTComplete(ctx context.Context, conn ConnID, disc DiscoveryType, status ATTStatus) error
}

// FileStore is the out-of-scope filesystem-access-primitives collaborator
// that backs the persistence codec (§4.6). NewDefaultFileStore returns an
// implementation against the real filesystem, with advisory locking on
// non-Windows builds only.
type FileStore interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Remove(path string) error
}
