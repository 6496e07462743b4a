package gattcache

import (
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// State names the discovery state machine's states (§4.4).
type State int

const (
	StateIdle State = iota
	StateDiscSrvc
	StateDiscIncl
	StateDiscChar
	StateDiscDescr
	StateSave
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDiscSrvc:
		return "DISC_SRVC"
	case StateDiscIncl:
		return "DISC_INCL"
	case StateDiscChar:
		return "DISC_CHAR"
	case StateDiscDescr:
		return "DISC_DESCR"
	case StateSave:
		return "SAVE"
	default:
		return "UNKNOWN"
	}
}

// ServerControlBlock is the per-server state the discovery state machine
// and the graph/buffer pair live in. It is not itself a §6 collaborator
// contract; the registry below that holds it is an in-module
// implementation of the "per-connection control-block registry" the
// purpose-and-scope section treats as an external concern for the
// discovery algorithm proper (§1), given a concrete home here since a
// standalone module has nowhere else to put it (§4 Supplemented
// Features).
type ServerControlBlock struct {
	BDAddr    BDAddr
	Conn      ConnID
	Transport Transport

	Graph  *Graph
	Buffer *DiscoveryBuffer

	State  State
	Failed bool
	PassID uuid.UUID
}

// Registry is a bounded, LRU-evicted map from BD_ADDR to
// *ServerControlBlock (§5 "Shared resources"). Eviction under pressure
// drops the least-recently-used peer's in-progress state; a peer evicted
// mid-discovery simply restarts its pass on the next Start call, which is
// the documented behavior for a bounded control-block table.
type Registry struct {
	cache  *lru.Cache
	bufCap int
	log    logrus.FieldLogger
}

// NewRegistry returns a registry holding at most size control blocks,
// each with a discovery buffer of capacity bufCap.
func NewRegistry(size, bufCap int, log logrus.FieldLogger) *Registry {
	if size <= 0 {
		size = 64
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c, err := lru.New(size)
	if err != nil {
		// lru.New only errors for size <= 0, already guarded above.
		panic(err)
	}
	return &Registry{cache: c, bufCap: bufCap, log: log}
}

// GetOrCreate returns the control block for bda, creating an empty one
// with a fresh graph and discovery buffer if none exists yet.
func (r *Registry) GetOrCreate(bda BDAddr) *ServerControlBlock {
	if v, ok := r.cache.Get(bda); ok {
		return v.(*ServerControlBlock)
	}
	scb := &ServerControlBlock{
		BDAddr: bda,
		Graph:  NewGraph(r.log.WithField("bda", bda.String())),
		Buffer: NewDiscoveryBuffer(r.bufCap),
		State:  StateIdle,
	}
	r.cache.Add(bda, scb)
	return scb
}

// Get returns the control block for bda without creating one.
func (r *Registry) Get(bda BDAddr) (*ServerControlBlock, bool) {
	v, ok := r.cache.Get(bda)
	if !ok {
		return nil, false
	}
	return v.(*ServerControlBlock), true
}

// Remove drops bda's control block, if any.
func (r *Registry) Remove(bda BDAddr) {
	r.cache.Remove(bda)
}
