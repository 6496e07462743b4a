package gattcache

import "github.com/sirupsen/logrus"

// Service is one primary or secondary GATT service, as discovered or
// reloaded from cache. Its Characteristics and Included lists are kept in
// ascending-handle insertion order (§3 Service, §4.1).
type Service struct {
	Range     HandleRange
	IsPrimary bool
	UUID      UUID

	Characteristics []*Characteristic
	Included        []*IncludedService
}

// StartHandle and EndHandle are convenience accessors matching the
// data-model field names used in the persistence and export components.
func (s *Service) StartHandle() Handle { return s.Range.Start }
func (s *Service) EndHandle() Handle   { return s.Range.End }

// Characteristic is one GATT characteristic. Parent is a back-reference
// to the owning Service (§3 Characteristic).
type Characteristic struct {
	DeclHandle  Handle
	ValueHandle Handle
	Properties  uint8
	UUID        UUID

	Descriptors []*Descriptor
	Parent      *Service
}

// Descriptor is one GATT descriptor. Parent is a back-reference to the
// owning Characteristic (§3 Descriptor).
type Descriptor struct {
	Handle Handle
	UUID   UUID
	Parent *Characteristic
}

// IncludedService is a non-owning edge from Owner to Target, both services
// in the same Graph (§3 Included-service edge). Target never outlives the
// Graph it was resolved against.
type IncludedService struct {
	Handle Handle
	UUID   UUID
	Owner  *Service
	Target *Service
}

// Graph is the in-memory attribute database for one server (§3 Database,
// §4.1 Attribute Graph). It is mutated only by a discovery pass or a
// cache load, never concurrently with a reader (§5).
type Graph struct {
	services []*Service
	log      logrus.FieldLogger
}

// NewGraph returns an empty graph. A nil logger falls back to the
// standard logrus logger.
func NewGraph(log logrus.FieldLogger) *Graph {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Graph{log: log}
}

// Services returns the graph's services in insertion order. The caller
// must not mutate the returned slice.
func (g *Graph) Services() []*Service {
	return g.services
}

// InsertService appends a new service. The caller (the discovery state
// machine, via the discovery buffer's dedup rule) is responsible for
// ensuring the range does not overlap an existing service; the graph does
// not check (§4.1).
func (g *Graph) InsertService(r HandleRange, uuid UUID, isPrimary bool) *Service {
	s := &Service{Range: r, UUID: uuid, IsPrimary: isPrimary}
	g.services = append(g.services, s)
	return s
}

// InsertCharacteristic locates the service containing serviceHandle and
// appends a characteristic to it, widening the service's end handle if
// the new value handle falls beyond it. Returns ErrNoSuchParent if no
// service contains serviceHandle (§4.1).
func (g *Graph) InsertCharacteristic(serviceHandle, declHandle, valueHandle Handle, uuid UUID, properties uint8) (*Characteristic, error) {
	s := g.FindServiceContaining(serviceHandle)
	if s == nil {
		g.log.WithField("handle", serviceHandle).Warn("gattcache: characteristic for unknown service, skipping")
		return nil, ErrNoSuchParent
	}
	c := &Characteristic{
		DeclHandle:  declHandle,
		ValueHandle: valueHandle,
		Properties:  properties,
		UUID:        uuid,
		Parent:      s,
	}
	s.Characteristics = append(s.Characteristics, c)
	if valueHandle > s.Range.End {
		s.Range.End = valueHandle
	}
	return c, nil
}

// InsertDescriptor locates the service containing anyHandleInsideParent
// and appends the descriptor to the last characteristic of that service.
// Returns ErrNoSuchParent if no service matches, or ErrDescBeforeChar if
// the service has no characteristics yet (§4.1).
func (g *Graph) InsertDescriptor(anyHandleInsideParent, handle Handle, uuid UUID) (*Descriptor, error) {
	s := g.FindServiceContaining(anyHandleInsideParent)
	if s == nil {
		g.log.WithField("handle", anyHandleInsideParent).Warn("gattcache: descriptor for unknown service, skipping")
		return nil, ErrNoSuchParent
	}
	if len(s.Characteristics) == 0 {
		g.log.WithField("handle", handle).Warn("gattcache: descriptor before any characteristic, skipping")
		return nil, ErrDescBeforeChar
	}
	parent := s.Characteristics[len(s.Characteristics)-1]
	d := &Descriptor{Handle: handle, UUID: uuid, Parent: parent}
	parent.Descriptors = append(parent.Descriptors, d)
	return d, nil
}

// InsertIncluded locates the owner and target services and, if both are
// present, appends an included-service edge to the owner. Returns
// ErrNoSuchParent if either is missing (§4.1).
func (g *Graph) InsertIncluded(ownerHandle, edgeHandle, targetStartHandle Handle, uuid UUID) (*IncludedService, error) {
	owner := g.FindServiceContaining(ownerHandle)
	target := g.FindServiceContaining(targetStartHandle)
	if owner == nil || target == nil {
		g.log.WithFields(logrus.Fields{
			"owner_handle":  ownerHandle,
			"target_handle": targetStartHandle,
		}).Warn("gattcache: included-service edge with unresolved endpoint, skipping")
		return nil, ErrNoSuchParent
	}
	edge := &IncludedService{Handle: edgeHandle, UUID: uuid, Owner: owner, Target: target}
	owner.Included = append(owner.Included, edge)
	return edge, nil
}

// LogDump writes the full graph to log at the given level, one line per
// service/characteristic/descriptor, mirroring the debug cache dump the
// original gates behind a build-time debug flag (§4 Supplemented
// Features, item 1).
func (g *Graph) LogDump(level logrus.Level) {
	entry := g.log
	for _, s := range g.services {
		logAt(entry, level, "service", logrus.Fields{
			"start": s.Range.Start, "end": s.Range.End, "uuid": s.UUID.String(), "primary": s.IsPrimary,
		})
		for _, c := range s.Characteristics {
			logAt(entry, level, "characteristic", logrus.Fields{
				"decl": c.DeclHandle, "value": c.ValueHandle, "uuid": c.UUID.String(), "prop": c.Properties,
			})
			for _, d := range c.Descriptors {
				logAt(entry, level, "descriptor", logrus.Fields{"handle": d.Handle, "uuid": d.UUID.String()})
			}
		}
		for _, inc := range s.Included {
			logAt(entry, level, "included", logrus.Fields{"handle": inc.Handle, "target_start": inc.Target.Range.Start})
		}
	}
}

func logAt(log logrus.FieldLogger, level logrus.Level, msg string, fields logrus.Fields) {
	e := log.WithFields(fields)
	switch level {
	case logrus.DebugLevel:
		e.Debug(msg)
	case logrus.InfoLevel:
		e.Info(msg)
	case logrus.WarnLevel:
		e.Warn(msg)
	default:
		e.Debug(msg)
	}
}
