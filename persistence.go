package gattcache

import (
	"encoding/binary"
	"fmt"
)

// nvAttrType is the on-disk attribute-type tag (§6 "Attribute type enum").
type nvAttrType uint8

const (
	nvSRVC      nvAttrType = 0
	nvInclSrvc  nvAttrType = 1
	nvChar      nvAttrType = 2
	nvCharDescr nvAttrType = 3
)

// nvRecordSize is sizeof(NV): 2+2+1+1+2+1+2+16 bytes (§6 Cache file format).
const nvRecordSize = 27

// nvRecord is the fixed-width, packed, little-endian persistence record
// (§3 Persistence record, §6). id mirrors the record's own attribute
// handle (the declaration handle for CHAR records). Replay is positional
// (§4.6 Load); ID is consulted only for CHAR records, where it restores
// the characteristic's declaration handle.
type nvRecord struct {
	SHandle        Handle
	EHandle        Handle
	AttrType       nvAttrType
	IsPrimary      bool
	ID             uint16
	Prop           uint8
	InclSrvcHandle uint16
	UUID           UUID
}

func (r nvRecord) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(r.SHandle))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(r.EHandle))
	buf[4] = byte(r.AttrType)
	if r.IsPrimary {
		buf[5] = 1
	} else {
		buf[5] = 0
	}
	binary.LittleEndian.PutUint16(buf[6:8], r.ID)
	buf[8] = r.Prop
	binary.LittleEndian.PutUint16(buf[9:11], r.InclSrvcHandle)
	copy(buf[11:27], r.UUID[:])
}

func decodeNVRecord(buf []byte) nvRecord {
	var r nvRecord
	r.SHandle = Handle(binary.LittleEndian.Uint16(buf[0:2]))
	r.EHandle = Handle(binary.LittleEndian.Uint16(buf[2:4]))
	r.AttrType = nvAttrType(buf[4])
	r.IsPrimary = buf[5] != 0
	r.ID = binary.LittleEndian.Uint16(buf[6:8])
	r.Prop = buf[8]
	r.InclSrvcHandle = binary.LittleEndian.Uint16(buf[9:11])
	copy(r.UUID[:], buf[11:27])
	return r
}

// buildNVRecords flattens g into the emission order of §4.6 Save: every
// service first, then per service (iterated a second time) its
// characteristics — each immediately followed by that characteristic's
// descriptors — and finally its included-service edges. Load depends on
// this exact ordering since replay is positional, not topological.
func buildNVRecords(g *Graph) []nvRecord {
	var recs []nvRecord
	for _, s := range g.Services() {
		recs = append(recs, nvRecord{
			SHandle: s.Range.Start, EHandle: s.Range.End, AttrType: nvSRVC,
			IsPrimary: s.IsPrimary, ID: uint16(s.Range.Start), UUID: s.UUID,
		})
	}
	for _, s := range g.Services() {
		for _, c := range s.Characteristics {
			recs = append(recs, nvRecord{
				SHandle: c.ValueHandle, AttrType: nvChar,
				ID: uint16(c.DeclHandle), Prop: c.Properties, UUID: c.UUID,
			})
			for _, d := range c.Descriptors {
				recs = append(recs, nvRecord{SHandle: d.Handle, AttrType: nvCharDescr, ID: uint16(d.Handle), UUID: d.UUID})
			}
		}
		for _, inc := range s.Included {
			recs = append(recs, nvRecord{
				SHandle: inc.Handle, AttrType: nvInclSrvc,
				ID: uint16(inc.Handle), InclSrvcHandle: uint16(inc.Target.Range.Start), UUID: inc.UUID,
			})
		}
	}
	return recs
}

// cachePath returns the on-disk path for bda's cache file (§6 "Cache
// file path").
func (e *Engine) cachePath(bda BDAddr) string {
	return e.opts.cachePrefix + bda.hexLower()
}

// saveGraph writes g to bda's cache file. Per the "discovery with zero
// primary services" boundary behavior, an empty graph writes no file at
// all (§8 Boundary behaviors).
func (e *Engine) saveGraph(bda BDAddr, g *Graph) error {
	records := buildNVRecords(g)
	if len(records) == 0 {
		return nil
	}
	buf := make([]byte, 4+len(records)*nvRecordSize)
	binary.LittleEndian.PutUint16(buf[0:2], CacheVersion)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(records)))
	for i, r := range records {
		r.encode(buf[4+i*nvRecordSize : 4+(i+1)*nvRecordSize])
	}
	if err := e.opts.fileStore.WriteFile(e.cachePath(bda), buf); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheIO, err)
	}
	return nil
}

// Save writes bda's current graph to its cache file (§6 "save(server)").
// It is a no-op, not an error, if bda has no control block yet.
func (e *Engine) Save(bda BDAddr) error {
	scb, ok := e.registry.Get(bda)
	if !ok {
		return nil
	}
	return e.saveGraph(bda, scb.Graph)
}

// Load rebuilds bda's graph from its cache file without any over-the-air
// traffic (§6 "load(conn)", §4.6 Load). On success the registry's
// control block for bda is replaced with the loaded graph, IDLE.
func (e *Engine) Load(bda BDAddr) (*Graph, error) {
	data, err := e.opts.fileStore.ReadFile(e.cachePath(bda))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheIO, err)
	}
	if len(data) < 4 {
		return nil, ErrCacheCorrupt
	}
	version := binary.LittleEndian.Uint16(data[0:2])
	if version != CacheVersion {
		return nil, ErrCacheVersionMismatch
	}
	numAttr := binary.LittleEndian.Uint16(data[2:4])
	want := 4 + int(numAttr)*nvRecordSize
	if len(data) != want {
		return nil, ErrCacheCorrupt
	}

	g := NewGraph(e.opts.log.WithField("bda", bda.String()))
	for i := 0; i < int(numAttr); i++ {
		rec := decodeNVRecord(data[4+i*nvRecordSize : 4+(i+1)*nvRecordSize])
		switch rec.AttrType {
		case nvSRVC:
			g.InsertService(HandleRange{Start: rec.SHandle, End: rec.EHandle}, rec.UUID, rec.IsPrimary)
		case nvChar:
			g.InsertCharacteristic(rec.SHandle, Handle(rec.ID), rec.SHandle, rec.UUID, rec.Prop)
		case nvCharDescr:
			g.InsertDescriptor(rec.SHandle, rec.SHandle, rec.UUID)
		case nvInclSrvc:
			g.InsertIncluded(rec.SHandle, rec.SHandle, Handle(rec.InclSrvcHandle), rec.UUID)
		}
	}

	scb := e.registry.GetOrCreate(bda)
	scb.Graph = g
	scb.State = StateIdle
	return g, nil
}

// Reset deletes bda's on-disk cache file. It is idempotent: deleting an
// already-absent file is success, not an error (§4 Supplemented
// Features, item 4; §6 "reset(bda)").
func (e *Engine) Reset(bda BDAddr) error {
	if err := e.opts.fileStore.Remove(e.cachePath(bda)); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheIO, err)
	}
	return nil
}
