package gattcache

// ElementType distinguishes the kinds of element DB export can produce.
type ElementType int

const (
	ElementPrimaryService ElementType = iota
	ElementSecondaryService
	ElementIncludedService
	ElementCharacteristic
	ElementDescriptor
)

// Element is one flattened attribute in a DB export (§4.7).
// Permissions is always zero: the Attribute Protocol does not expose
// attribute permissions, so there is nothing truthful to report.
type Element struct {
	Type            ElementType
	AttributeHandle Handle
	StartHandle     Handle
	EndHandle       Handle
	ID              uint16
	UUID            UUID
	Properties      uint8
	Permissions     uint8
}

// Export flattens every service whose range lies entirely within
// [start, end] into a sequence of elements: one per service, then one
// per characteristic, then one per descriptor, then one per
// included-service edge (§4.7). A degenerate range (start > end) yields
// an empty sequence.
func Export(g *Graph, start, end Handle) []Element {
	if start > end {
		return nil
	}
	var out []Element
	for _, s := range g.Services() {
		if s.Range.Start < start || s.Range.End > end {
			continue
		}
		svcType := ElementPrimaryService
		if !s.IsPrimary {
			svcType = ElementSecondaryService
		}
		out = append(out, Element{
			Type: svcType, AttributeHandle: s.Range.Start,
			StartHandle: s.Range.Start, EndHandle: s.Range.End, UUID: s.UUID,
		})
		for _, c := range s.Characteristics {
			out = append(out, Element{
				Type: ElementCharacteristic, AttributeHandle: c.ValueHandle,
				UUID: c.UUID, Properties: c.Properties,
			})
		}
		for _, c := range s.Characteristics {
			for _, d := range c.Descriptors {
				out = append(out, Element{Type: ElementDescriptor, AttributeHandle: d.Handle, UUID: d.UUID})
			}
		}
		for _, inc := range s.Included {
			out = append(out, Element{
				Type: ElementIncludedService, AttributeHandle: inc.Handle,
				StartHandle: inc.Target.Range.Start, EndHandle: inc.Target.Range.End, UUID: inc.UUID,
			})
		}
	}
	return out
}

// GetDB returns the DB export for bda over [start, end] (§6
// "get_db(conn, start, end)"), gated the same way graph queries are.
func (e *Engine) GetDB(bda BDAddr, start, end Handle) ([]Element, error) {
	g, err := e.readyGraph(bda)
	if err != nil {
		return nil, err
	}
	return Export(g, start, end), nil
}
