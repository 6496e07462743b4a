package gattcache

import "testing"

func TestDiscoveryBufferAppendServiceDBFull(t *testing.T) {
	b := NewDiscoveryBuffer(2)
	if err := b.AppendService(HandleRange{Start: 1, End: 3}, New16(0x1800), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.AppendService(HandleRange{Start: 10, End: 12}, New16(0x1801), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.AppendService(HandleRange{Start: 20, End: 22}, New16(0x1802), true); err != ErrDBFull {
		t.Fatalf("expected ErrDBFull, got %v", err)
	}
}

func TestDiscoveryBufferContainsServiceRangeEitherEndpointMatch(t *testing.T) {
	b := NewDiscoveryBuffer(DefaultMaxCacheChar)
	b.AppendService(HandleRange{Start: 1, End: 10}, New16(0x1800), true)

	cases := []HandleRange{
		{Start: 1, End: 99},  // start matches
		{Start: 99, End: 10}, // end matches
		{Start: 1, End: 10},  // exact
	}
	for _, r := range cases {
		if !b.ContainsServiceRange(r) {
			t.Errorf("expected %+v to be treated as already present", r)
		}
	}
	if b.ContainsServiceRange(HandleRange{Start: 50, End: 60}) {
		t.Errorf("expected disjoint range to not be already present")
	}
}

func TestDiscoveryBufferContainsServiceRangeInvalidIsAlwaysPresent(t *testing.T) {
	b := NewDiscoveryBuffer(DefaultMaxCacheChar)
	if !b.ContainsServiceRange(HandleRange{Start: 0, End: 0}) {
		t.Errorf("expected zero handle range to be treated as already present")
	}
	if !b.ContainsServiceRange(HandleRange{Start: 10, End: 5}) {
		t.Errorf("expected inverted handle range to be treated as already present")
	}
}

func TestDiscoveryBufferAppendCharPatchesPrevious(t *testing.T) {
	b := NewDiscoveryBuffer(DefaultMaxCacheChar)
	b.AppendService(HandleRange{Start: 1, End: 10}, New16(0x180F), true)
	b.BeginCharExpansion()

	b.AppendChar(2, 3, New16(0x2A19), 0x10, 10)
	b.AppendChar(5, 6, New16(0x2A1A), 0x02, 10)

	if got := b.charRecs[0].End; got != 4 {
		t.Fatalf("expected first char's End patched to 4, got %d", got)
	}
	if got := b.charRecs[1].End; got != 10 {
		t.Fatalf("expected last char's End to remain the service end 10, got %d", got)
	}
}

func TestDiscoveryBufferTotalCharDecrementsAsConsumed(t *testing.T) {
	b := NewDiscoveryBuffer(DefaultMaxCacheChar)
	b.AppendService(HandleRange{Start: 1, End: 10}, New16(0x180F), true)
	b.BeginCharExpansion()
	b.AppendChar(2, 3, New16(0x2A19), 0x10, 10)
	b.AppendChar(5, 6, New16(0x2A1A), 0x02, 10)

	if b.TotalChar() != 2 {
		t.Fatalf("expected TotalChar 2, got %d", b.TotalChar())
	}
	b.AdvanceChar()
	if b.TotalChar() != 1 {
		t.Fatalf("expected TotalChar 1 after advance, got %d", b.TotalChar())
	}
}
