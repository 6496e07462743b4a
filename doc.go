// Package gattcache implements a GATT client service-discovery and cache
// engine for a Bluetooth host stack.
//
// Given an active connection to a remote GATT server, the engine drives the
// Attribute Protocol discovery sequence (primary services, included
// services, characteristics, descriptors), assembles the results into an
// in-memory attribute graph, serves handle-based lookups against that graph,
// and persists it to non-volatile storage so later reconnections to a
// bonded peer can skip rediscovery.
//
// The engine does not itself speak ATT or SDP on the wire: it consumes those
// protocols through the narrow collaborator interfaces in collab.go, the
// same way a host stack's GATT client layer sits above a separate ATT/L2CAP
// transport.
package gattcache // import "github.com/user/gattcache"
