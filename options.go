package gattcache

import "github.com/sirupsen/logrus"

// DefaultCachePrefix is the historical on-disk cache file path prefix
// (§4 Supplemented Features, item 3). A BD_AddR's cache file lives at
// Prefix + its lowercase hex address with no separator.
const DefaultCachePrefix = "/data/misc/bluetooth/gatt_cache_"

// CacheVersion gates the on-disk record layout (§6). A save always
// stamps this value; a load rejects any other value with
// ErrCacheVersionMismatch.
const CacheVersion = 2

// options holds an Engine's configuration, built up by Option functions
// matching the functional-options idiom used elsewhere in this
// ecosystem for advertisement and scan configuration.
type options struct {
	cachePrefix   string
	bufferCap     int
	registrySize  int
	log           logrus.FieldLogger
	fileStore     FileStore
	bondChecker   BondChecker
	dispatcher    EventDispatcher
	attDiscoverer ATTDiscoverer
	sdpSearcher   SDPSearcher
}

func defaultOptions() *options {
	return &options{
		cachePrefix:  DefaultCachePrefix,
		bufferCap:    DefaultMaxCacheChar,
		registrySize: 64,
		log:          logrus.StandardLogger(),
		fileStore:    NewDefaultFileStore(),
		dispatcher:   nopDispatcher{},
	}
}

// Option configures an Engine at construction time.
type Option func(*options)

// WithCachePrefix overrides the on-disk cache file path prefix.
func WithCachePrefix(prefix string) Option {
	return func(o *options) { o.cachePrefix = prefix }
}

// WithBufferCapacity overrides the discovery buffer's record capacity
// (the MAX_CACHE_CHAR constant of §4.3).
func WithBufferCapacity(n int) Option {
	return func(o *options) { o.bufferCap = n }
}

// WithRegistrySize overrides the number of server control blocks the
// registry keeps before evicting the least-recently-used one.
func WithRegistrySize(n int) Option {
	return func(o *options) { o.registrySize = n }
}

// WithLogger overrides the logger used throughout the engine.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithFileStore overrides the persistence codec's filesystem
// collaborator, e.g. for an in-memory store in tests.
func WithFileStore(fs FileStore) Option {
	return func(o *options) { o.fileStore = fs }
}

// WithBondChecker supplies the bonding-state collaborator (§1, §6). The
// engine treats every peer as unbonded, and therefore never persists,
// until a BondChecker is supplied.
func WithBondChecker(bc BondChecker) Option {
	return func(o *options) { o.bondChecker = bc }
}

// WithEventDispatcher supplies the application-facing event dispatcher
// (§6). Without one, dispatched events are silently dropped.
func WithEventDispatcher(d EventDispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithATTDiscoverer supplies the LE transport's ATT discovery
// collaborator (§6).
func WithATTDiscoverer(d ATTDiscoverer) Option {
	return func(o *options) { o.attDiscoverer = d }
}

// WithSDPSearcher supplies the BR/EDR transport's SDP query collaborator
// (§4.5, §6).
func WithSDPSearcher(s SDPSearcher) Option {
	return func(o *options) { o.sdpSearcher = s }
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(Event) {}
