//go:build darwin

package gattcache

import (
	"context"
	"errors"
	"time"

	"github.com/JuulLabs-OSS/cbgo"
)

// discoverTimeout mirrors the 10-second wait the teacher's gattc_darwin.go
// uses around every CoreBluetooth discovery call.
const discoverTimeout = 10 * time.Second

// DarwinATTDiscoverer implements ATTDiscoverer against a connected
// CoreBluetooth peripheral via cbgo, the way gattc_darwin.go drives
// cbgo.Peripheral's service/characteristic discovery through its
// delegate callbacks and a result channel (§6 ATTDiscoverer).
//
// CoreBluetooth never exposes ATT handles either, so — like
// LinuxATTDiscoverer — this backend assigns synthetic sequential
// handles in enumeration order rather than reporting the peer's real
// ones.
type DarwinATTDiscoverer struct {
	sink ResultSink
	prph cbgo.Peripheral

	servicesDone chan error
	charsDone    chan error
	descrsDone   chan error

	nextHandle  Handle
	svcByHandle map[Handle]cbgo.Service
	charByHandle map[Handle]cbgo.Characteristic
}

// NewDarwinATTDiscoverer returns a discoverer bound to prph. Call
// SetSink before the first Discover call, and register d as prph's
// delegate (or forward the relevant delegate callbacks to d's
// DidDiscoverServices/DidDiscoverCharacteristics/DidDiscoverDescriptors
// methods) so discovery completions unblock it.
func NewDarwinATTDiscoverer(prph cbgo.Peripheral) *DarwinATTDiscoverer {
	return &DarwinATTDiscoverer{
		prph:         prph,
		nextHandle:   1,
		svcByHandle:  make(map[Handle]cbgo.Service),
		charByHandle: make(map[Handle]cbgo.Characteristic),
	}
}

// SetSink supplies the ResultSink (normally the *Engine) results are
// delivered to.
func (d *DarwinATTDiscoverer) SetSink(sink ResultSink) { d.sink = sink }

func (d *DarwinATTDiscoverer) allocHandle() Handle {
	h := d.nextHandle
	d.nextHandle++
	return h
}

// DidDiscoverServices forwards cbgo's CBPeripheralDelegate callback of
// the same purpose.
func (d *DarwinATTDiscoverer) DidDiscoverServices(prph cbgo.Peripheral, err error) {
	if d.servicesDone != nil {
		d.servicesDone <- err
	}
}

// DidDiscoverCharacteristics forwards cbgo's CBPeripheralDelegate
// callback of the same purpose.
func (d *DarwinATTDiscoverer) DidDiscoverCharacteristics(prph cbgo.Peripheral, svc cbgo.Service, err error) {
	if d.charsDone != nil {
		d.charsDone <- err
	}
}

// DidDiscoverDescriptors forwards cbgo's CBPeripheralDelegate callback
// of the same purpose.
func (d *DarwinATTDiscoverer) DidDiscoverDescriptors(prph cbgo.Peripheral, ch cbgo.Characteristic, err error) {
	if d.descrsDone != nil {
		d.descrsDone <- err
	}
}

// Discover implements ATTDiscoverer.
func (d *DarwinATTDiscoverer) Discover(ctx context.Context, conn ConnID, disc DiscoveryType, r HandleRange) error {
	switch disc {
	case DiscSrvcAll, DiscSrvcByUUID:
		return d.discoverServices(ctx, conn, disc)
	case DiscInclSrvc:
		// cbgo does not surface included-service references; none are
		// reported over this transport.
		return d.sink.OnATTComplete(ctx, conn, disc, ATTSuccess)
	case DiscChar:
		return d.discoverCharacteristics(ctx, conn, disc, r)
	case DiscCharDescr:
		return d.discoverDescriptors(ctx, conn, disc, r)
	}
	return d.sink.OnATTComplete(ctx, conn, disc, ATTSuccess)
}

func (d *DarwinATTDiscoverer) discoverServices(ctx context.Context, conn ConnID, disc DiscoveryType) error {
	d.servicesDone = make(chan error, 1)
	defer func() { d.servicesDone = nil }()

	d.prph.DiscoverServices(nil)

	select {
	case err := <-d.servicesDone:
		if err != nil {
			return d.fail(ctx, conn, disc, err)
		}
	case <-time.After(discoverTimeout):
		return d.fail(ctx, conn, disc, errors.New("gattcache: timeout discovering services"))
	}

	for _, svc := range d.prph.Services() {
		uuid, err := ParseUUID(svc.UUID().String())
		if err != nil {
			continue
		}
		start := d.allocHandle()
		d.svcByHandle[start] = svc
		d.sink.OnServiceResult(conn, ATTServiceRecord{Range: HandleRange{Start: start, End: start}, UUID: uuid})
	}
	return d.sink.OnATTComplete(ctx, conn, disc, ATTSuccess)
}

func (d *DarwinATTDiscoverer) discoverCharacteristics(ctx context.Context, conn ConnID, disc DiscoveryType, r HandleRange) error {
	svc, ok := d.svcByHandle[r.Start]
	if !ok {
		return d.sink.OnATTComplete(ctx, conn, disc, ATTSuccess)
	}

	d.charsDone = make(chan error, 1)
	defer func() { d.charsDone = nil }()

	d.prph.DiscoverCharacteristics(nil, svc)

	select {
	case err := <-d.charsDone:
		if err != nil {
			return d.fail(ctx, conn, disc, err)
		}
	case <-time.After(discoverTimeout):
		return d.fail(ctx, conn, disc, errors.New("gattcache: timeout discovering characteristics"))
	}

	for _, ch := range svc.Characteristics() {
		uuid, err := ParseUUID(ch.UUID().String())
		if err != nil {
			continue
		}
		decl := d.allocHandle()
		value := d.allocHandle()
		d.charByHandle[value] = ch
		d.sink.OnCharResult(conn, ATTCharRecord{DeclHandle: decl, ValueHandle: value, UUID: uuid})
	}
	return d.sink.OnATTComplete(ctx, conn, disc, ATTSuccess)
}

func (d *DarwinATTDiscoverer) discoverDescriptors(ctx context.Context, conn ConnID, disc DiscoveryType, r HandleRange) error {
	ch, ok := d.charByHandle[r.Start-1]
	if !ok {
		return d.sink.OnATTComplete(ctx, conn, disc, ATTSuccess)
	}

	d.descrsDone = make(chan error, 1)
	defer func() { d.descrsDone = nil }()

	d.prph.DiscoverDescriptors(ch)

	select {
	case err := <-d.descrsDone:
		if err != nil {
			return d.fail(ctx, conn, disc, err)
		}
	case <-time.After(discoverTimeout):
		return d.fail(ctx, conn, disc, errors.New("gattcache: timeout discovering descriptors"))
	}

	for _, desc := range ch.Descriptors() {
		uuid, err := ParseUUID(desc.UUID().String())
		if err != nil {
			continue
		}
		d.sink.OnDescrResult(conn, ATTDescrRecord{Handle: d.allocHandle(), UUID: uuid})
	}
	return d.sink.OnATTComplete(ctx, conn, disc, ATTSuccess)
}

func (d *DarwinATTDiscoverer) fail(ctx context.Context, conn ConnID, disc DiscoveryType, err error) error {
	d.sink.OnATTComplete(ctx, conn, disc, ATTFailure)
	return err
}
