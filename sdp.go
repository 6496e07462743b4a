package gattcache

import (
	"context"
	"errors"
)

// startSDP drives the BR/EDR fallback path: one SDP ServiceSearchAttributeRequest
// is issued, its results are converted into primary-service records, and
// the main state machine is joined via explore_service (§4.5). The
// filtering of SDP records down to "has both a service-class UUID and an
// ATT protocol range" is the SDPSearcher collaborator's responsibility —
// every SDPRecord reaching this method already carries both fields (§4
// Supplemented Features, item 2).
func (e *Engine) startSDP(ctx context.Context, scb *ServerControlBlock) error {
	if e.opts.sdpSearcher == nil {
		return errors.New("gattcache: no SDPSearcher configured")
	}
	log := e.logFor(scb)

	records, err := e.opts.sdpSearcher.SearchAttr(ctx, scb.BDAddr)
	if err != nil {
		scb.Failed = true
		log.WithError(err).Warn("gattcache: SDP search failed")
		e.finalize(ctx, scb)
		return err
	}

	for _, rec := range records {
		if scb.Buffer.ContainsServiceRange(rec.Range) {
			continue
		}
		if err := scb.Buffer.AppendService(rec.Range, rec.UUID, true); err != nil {
			log.WithError(err).Warn("gattcache: dropping SDP-derived service record")
			continue
		}
		scb.Graph.InsertService(rec.Range, rec.UUID, true)
	}

	scb.State = StateDiscIncl
	return e.exploreService(ctx, scb)
}
