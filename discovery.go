package gattcache

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine drives the discovery state machine, owns the server control
// block registry, and exposes the graph-query, search, and persistence
// surface of §6. It is not safe for concurrent use from multiple
// goroutines: the whole engine assumes one logical executor serializes
// every call, exactly as §5 Concurrency Model requires of its host.
type Engine struct {
	opts      *options
	registry  *Registry
	connIndex map[ConnID]BDAddr
}

// NewEngine constructs an Engine. Collaborators left unconfigured behave
// as documented on their respective With* option.
func NewEngine(opts ...Option) *Engine {
	o := defaultOptions()
	for _, fn := range opts {
		fn(o)
	}
	return &Engine{
		opts:      o,
		registry:  NewRegistry(o.registrySize, o.bufferCap, o.log),
		connIndex: make(map[ConnID]BDAddr),
	}
}

func (e *Engine) logFor(scb *ServerControlBlock) logrus.FieldLogger {
	return e.opts.log.WithFields(logrus.Fields{
		"bda":  scb.BDAddr.String(),
		"pass": scb.PassID.String(),
		"conn": scb.Conn,
	})
}

func (e *Engine) scbForConn(conn ConnID) (*ServerControlBlock, bool) {
	bda, ok := e.connIndex[conn]
	if !ok {
		return nil, false
	}
	return e.registry.Get(bda)
}

// Start begins a discovery pass for bda over conn (§4.4 Entry). On the LE
// transport it issues SRVC_ALL across the full handle range; on BR/EDR it
// issues the SDP fallback (§4.5). The graph and discovery buffer are
// reset to their pre-discovery state first.
func (e *Engine) Start(ctx context.Context, bda BDAddr, conn ConnID, transport Transport) error {
	scb := e.registry.GetOrCreate(bda)
	scb.Conn = conn
	scb.Transport = transport
	scb.Graph = NewGraph(e.opts.log.WithField("bda", bda.String()))
	scb.Buffer.Reset()
	scb.Failed = false
	scb.PassID = uuid.New()
	scb.State = StateDiscSrvc
	e.connIndex[conn] = bda

	e.logFor(scb).Info("gattcache: starting discovery")

	if transport == TransportBREDR {
		return e.startSDP(ctx, scb)
	}
	return e.issueDiscover(ctx, scb, DiscSrvcAll, HandleRange{Start: 0x0001, End: MaxHandle})
}

func (e *Engine) issueDiscover(ctx context.Context, scb *ServerControlBlock, disc DiscoveryType, r HandleRange) error {
	if e.opts.attDiscoverer == nil {
		return errors.New("gattcache: no ATTDiscoverer configured")
	}
	e.logFor(scb).WithFields(logrus.Fields{
		"disc": disc.String(), "start": r.Start, "end": r.End,
	}).Debug("gattcache: issuing discovery")
	return e.opts.attDiscoverer.Discover(ctx, scb.Conn, disc, r)
}

// OnServiceResult ingests one SRVC_ALL/SRVC_BY_UUID result (§4.4 Result
// ingestion). The service is lifted into the graph immediately, not
// deferred to its own explore_service turn: an INC_SRVC result for an
// earlier service in the same pass can name a later sibling as its
// target (§8 scenario 3), so every service must be resolvable by handle
// as soon as it is known, not only once the cursor reaches it.
func (e *Engine) OnServiceResult(conn ConnID, rec ATTServiceRecord) {
	scb, ok := e.scbForConn(conn)
	if !ok {
		return
	}
	if err := scb.Buffer.AppendService(rec.Range, rec.UUID, true); err != nil {
		e.logFor(scb).WithError(err).Warn("gattcache: dropping primary service record")
		return
	}
	scb.Graph.InsertService(rec.Range, rec.UUID, true)
}

// OnInclResult ingests one INC_SRVC result (§4.4 Result ingestion). A
// freshly-discovered secondary target is inserted into the graph before
// the edge is resolved, for the same reason as OnServiceResult (§8
// scenario 4: the secondary service and the edge pointing at it arrive
// in the same result).
func (e *Engine) OnInclResult(conn ConnID, rec ATTInclRecord) {
	scb, ok := e.scbForConn(conn)
	if !ok {
		return
	}
	if !scb.Buffer.ContainsServiceRange(rec.Included) {
		if err := scb.Buffer.AppendService(rec.Included, rec.UUID, false); err != nil {
			e.logFor(scb).WithError(err).Warn("gattcache: dropping secondary service record")
		} else {
			scb.Graph.InsertService(rec.Included, rec.UUID, false)
		}
	}
	if _, err := scb.Graph.InsertIncluded(rec.OwnerHandle, rec.OwnerHandle, rec.Included.Start, rec.UUID); err != nil {
		e.logFor(scb).WithError(err).Warn("gattcache: included-service edge not resolved")
	}
}

// OnCharResult ingests one CHAR result (§4.4 Result ingestion).
func (e *Engine) OnCharResult(conn ConnID, rec ATTCharRecord) {
	scb, ok := e.scbForConn(conn)
	if !ok {
		return
	}
	cur := scb.Buffer.CurService()
	if err := scb.Buffer.AppendChar(rec.DeclHandle, rec.ValueHandle, rec.UUID, rec.Properties, cur.End); err != nil {
		e.logFor(scb).WithError(err).Warn("gattcache: dropping characteristic record")
	}
}

// OnDescrResult ingests one CHAR_DSCPT result (§4.4 Result ingestion).
func (e *Engine) OnDescrResult(conn ConnID, rec ATTDescrRecord) {
	scb, ok := e.scbForConn(conn)
	if !ok {
		return
	}
	if _, err := scb.Graph.InsertDescriptor(rec.Handle, rec.Handle, rec.UUID); err != nil {
		e.logFor(scb).WithError(err).Warn("gattcache: descriptor not attached")
	}
}

// OnATTComplete ingests a sub-procedure completion and drives the state
// machine's transitions (§4.4 Completion ingestion).
func (e *Engine) OnATTComplete(ctx context.Context, conn ConnID, disc DiscoveryType, status ATTStatus) error {
	scb, ok := e.scbForConn(conn)
	if !ok {
		return nil
	}
	if status != ATTSuccess {
		scb.Failed = true
		e.logFor(scb).WithField("disc", disc.String()).Warn("gattcache: ATT sub-procedure failed")
	}

	switch disc {
	case DiscSrvcAll, DiscSrvcByUUID:
		scb.Buffer.curSrvcIdx = 0 // §4.4: "set cur_srvc_idx = 0; enter DISC_INCL"
		scb.State = StateDiscIncl
		return e.exploreService(ctx, scb)
	case DiscInclSrvc:
		scb.State = StateDiscChar
		scb.Buffer.BeginCharExpansion()
		cur := scb.Buffer.CurService()
		return e.issueDiscover(ctx, scb, DiscChar, HandleRange{Start: cur.Start, End: cur.End})
	case DiscChar:
		scb.State = StateDiscDescr
		return e.exploreCharacteristic(ctx, scb)
	case DiscCharDescr:
		scb.Buffer.AdvanceChar()
		return e.exploreCharacteristic(ctx, scb)
	}
	return nil
}

// exploreService issues INC_SRVC discovery for the current buffered
// service, or — once every buffered service has been expanded —
// finalizes the pass (§4.4 explore_service). The service itself is
// already in the graph by this point (inserted when its record was
// first appended to the buffer, by OnServiceResult or OnInclResult); see
// the doc comments there for why lifting cannot wait for this cursor to
// reach it.
func (e *Engine) exploreService(ctx context.Context, scb *ServerControlBlock) error {
	buf := scb.Buffer
	if buf.CurSrvcIdx() < buf.TotalSrvc() {
		rec := buf.CurService()
		return e.issueDiscover(ctx, scb, DiscInclSrvc, HandleRange{Start: rec.Start, End: rec.End})
	}
	scb.State = StateSave
	scb.Graph.LogDump(logrus.DebugLevel)
	e.finalize(ctx, scb)
	return nil
}

// exploreCharacteristic lifts the current buffered characteristic into
// the graph and issues its descriptor discovery, synthesizing an
// immediate completion when the descriptor range is empty; once every
// buffered characteristic for the current service is consumed it
// advances to the next service (§4.4 explore_characteristic).
func (e *Engine) exploreCharacteristic(ctx context.Context, scb *ServerControlBlock) error {
	buf := scb.Buffer
	if buf.TotalChar() > 0 {
		cur := buf.CurChar()
		svc := buf.CurService()
		if _, err := scb.Graph.InsertCharacteristic(svc.Start, cur.DeclHandle, cur.Start, cur.UUID, cur.Property); err != nil {
			e.logFor(scb).WithError(err).Warn("gattcache: characteristic not inserted")
		}
		descrRange := HandleRange{Start: cur.Start + 1, End: cur.End}
		if !descrRange.Valid() {
			return e.OnATTComplete(ctx, scb.Conn, DiscCharDescr, ATTSuccess)
		}
		return e.issueDiscover(ctx, scb, DiscCharDescr, descrRange)
	}
	buf.AdvanceSrvc()
	scb.State = StateDiscIncl
	return e.exploreService(ctx, scb)
}

// finalize persists the completed graph if the peer is bonded, resets
// the discovery buffer, returns the control block to IDLE, and surfaces
// completion through the event dispatcher (§4.4 explore_service, §9
// "Bondedness gate for save").
func (e *Engine) finalize(ctx context.Context, scb *ServerControlBlock) {
	log := e.logFor(scb)
	if e.opts.bondChecker != nil && e.opts.bondChecker.Bonded(scb.BDAddr) {
		if err := e.saveGraph(scb.BDAddr, scb.Graph); err != nil {
			log.WithError(err).Warn("gattcache: cache save failed")
		}
	}
	scb.Buffer.Reset()
	scb.State = StateIdle
	e.opts.dispatcher.Dispatch(Event{Kind: EventDiscoveryComplete, Conn: scb.Conn, Failed: scb.Failed})
	log.WithField("failed", scb.Failed).Info("gattcache: discovery pass complete")
}

// readyGraph returns the graph for bda, or ErrDiscoveryInProgress while a
// discovery pass owns its control block (§3 Lifecycle, §4 Supplemented
// Features item 6). A peer with no control block yet has an empty graph,
// matching "a DB is empty at connection setup."
func (e *Engine) readyGraph(bda BDAddr) (*Graph, error) {
	scb, ok := e.registry.Get(bda)
	if !ok {
		return NewGraph(e.opts.log), nil
	}
	if scb.State != StateIdle {
		return nil, ErrDiscoveryInProgress
	}
	return scb.Graph, nil
}

// Services returns bda's discovered services in insertion order (§6
// "services(conn)").
func (e *Engine) Services(bda BDAddr) ([]*Service, error) {
	g, err := e.readyGraph(bda)
	if err != nil {
		return nil, err
	}
	return g.Services(), nil
}

// ServiceForHandle returns the service containing h (§6
// "service_for_handle(conn, h)").
func (e *Engine) ServiceForHandle(bda BDAddr, h Handle) (*Service, error) {
	g, err := e.readyGraph(bda)
	if err != nil {
		return nil, err
	}
	return g.FindServiceContaining(h), nil
}

// Characteristic returns the characteristic with value handle h (§6
// "characteristic(conn, h)").
func (e *Engine) Characteristic(bda BDAddr, h Handle) (*Characteristic, error) {
	g, err := e.readyGraph(bda)
	if err != nil {
		return nil, err
	}
	return g.FindCharacteristic(h), nil
}

// Descriptor returns the descriptor with handle h (§6
// "descriptor(conn, h)").
func (e *Engine) Descriptor(bda BDAddr, h Handle) (*Descriptor, error) {
	g, err := e.readyGraph(bda)
	if err != nil {
		return nil, err
	}
	return g.FindDescriptor(h), nil
}

// SearchService emits one EventSearchResult per service matching target
// through the configured EventDispatcher, or every service if target is
// nil (§6 "search_service(conn, uuid?)", §4 Supplemented Features item 5).
func (e *Engine) SearchService(bda BDAddr, target *UUID) error {
	g, err := e.readyGraph(bda)
	if err != nil {
		return err
	}
	var conn ConnID
	if scb, ok := e.registry.Get(bda); ok {
		conn = scb.Conn
	}
	for _, s := range g.Services() {
		if target == nil || s.UUID.Equal(*target) {
			e.opts.dispatcher.Dispatch(Event{Kind: EventSearchResult, Conn: conn, Service: s})
		}
	}
	return nil
}
