package gattcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// memFileStore is an in-memory FileStore for deterministic persistence
// tests, standing in for the real filesystem collaborator (§6
// FileStore).
type memFileStore struct {
	files map[string][]byte
}

func newMemFileStore() *memFileStore { return &memFileStore{files: make(map[string][]byte)} }

func (m *memFileStore) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, ErrCacheIO
	}
	return append([]byte(nil), data...), nil
}

func (m *memFileStore) WriteFile(path string, data []byte) error {
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memFileStore) Remove(path string) error {
	delete(m.files, path)
	return nil
}

func scenario2Graph() *Graph {
	g := NewGraph(nil)
	g.InsertService(HandleRange{Start: 1, End: 10}, New16(0x180F), true)
	g.InsertCharacteristic(1, 2, 3, New16(0x2A19), 0x10)
	g.InsertDescriptor(3, 4, New16(0x2902))
	g.InsertCharacteristic(1, 5, 6, New16(0x2A1A), 0x02)
	return g
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	fs := newMemFileStore()
	bda, _ := ParseBDAddr("11:22:33:AA:BB:CC")
	e := NewEngine(WithFileStore(fs))

	g := scenario2Graph()
	require.NoError(t, e.saveGraph(bda, g))

	loaded, err := e.Load(bda)
	require.NoError(t, err)
	require.Len(t, loaded.Services(), 1)

	svc := loaded.Services()[0]
	require.Equal(t, Handle(1), svc.Range.Start)
	require.Equal(t, Handle(10), svc.Range.End)
	require.Len(t, svc.Characteristics, 2)
	require.Len(t, svc.Characteristics[0].Descriptors, 1)
	require.Equal(t, New16(0x2902), svc.Characteristics[0].Descriptors[0].UUID)
}

func TestSaveWritesNoFileForEmptyGraph(t *testing.T) {
	fs := newMemFileStore()
	bda, _ := ParseBDAddr("11:22:33:AA:BB:CC")
	e := NewEngine(WithFileStore(fs))

	require.NoError(t, e.saveGraph(bda, NewGraph(nil)))
	require.Empty(t, fs.files)
}

func TestLoadVersionMismatch(t *testing.T) {
	fs := newMemFileStore()
	bda, _ := ParseBDAddr("11:22:33:AA:BB:CC")
	path := DefaultCachePrefix + bda.hexLower()
	fs.files[path] = []byte{0x01, 0x00, 0x00, 0x00}

	e := NewEngine(WithFileStore(fs))
	_, err := e.Load(bda)
	require.ErrorIs(t, err, ErrCacheVersionMismatch)
}

func TestLoadShortReadIsCorrupt(t *testing.T) {
	fs := newMemFileStore()
	bda, _ := ParseBDAddr("11:22:33:AA:BB:CC")
	path := DefaultCachePrefix + bda.hexLower()
	// declares 4 records but carries none
	fs.files[path] = []byte{0x02, 0x00, 0x04, 0x00}

	e := NewEngine(WithFileStore(fs))
	_, err := e.Load(bda)
	require.ErrorIs(t, err, ErrCacheCorrupt)
}

func TestLoadMissingFile(t *testing.T) {
	fs := newMemFileStore()
	bda, _ := ParseBDAddr("11:22:33:AA:BB:CC")

	e := NewEngine(WithFileStore(fs))
	_, err := e.Load(bda)
	require.ErrorIs(t, err, ErrCacheIO)
}

func TestResetIsIdempotent(t *testing.T) {
	fs := newMemFileStore()
	bda, _ := ParseBDAddr("11:22:33:AA:BB:CC")
	path := DefaultCachePrefix + bda.hexLower()
	fs.files[path] = []byte{0x02, 0x00, 0x00, 0x00}

	e := NewEngine(WithFileStore(fs))
	require.NoError(t, e.Reset(bda))
	require.NoError(t, e.Reset(bda))
	require.NotContains(t, fs.files, path)
}
