package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("sess-001", "stream-a", "fs", 4096)

	c.IncSessionStarted()
	c.IncOutcome("complete")
	c.IncOutcome("incomplete")
	c.IncOutcome("incomplete")
	c.IncFrameRead()
	c.IncFrameRead()
	c.IncFrameRead()
	c.IncSegmentFrame()
	c.IncSegmentFrame()
	c.IncStreamEndFrame()
	c.IncFrameDecodeErrors()
	c.IncForeignSegment()
	c.AddBytesDelivered(100)
	c.AddBytesDelivered(23)
	c.IncOutputWriteErrors()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncAdapterPublishSuccess()
	c.IncAdapterPublishFailure()

	s := c.Snapshot()

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"SessionsStarted", s.SessionsStarted, 1},
		{"SessionsByOutcome[complete]", s.SessionsByOutcome["complete"], 1},
		{"SessionsByOutcome[incomplete]", s.SessionsByOutcome["incomplete"], 2},
		{"FramesRead", s.FramesRead, 3},
		{"SegmentFrames", s.SegmentFrames, 2},
		{"StreamEndFrames", s.StreamEndFrames, 1},
		{"FrameDecodeErrors", s.FrameDecodeErrors, 1},
		{"ForeignSegments", s.ForeignSegments, 1},
		{"BytesDelivered", s.BytesDelivered, 123},
		{"OutputWriteErrors", s.OutputWriteErrors, 1},
		{"LodeWriteSuccess", s.LodeWriteSuccess, 2},
		{"LodeWriteFailure", s.LodeWriteFailure, 1},
		{"AdapterPublishSuccess", s.AdapterPublishSuccess, 1},
		{"AdapterPublishFailure", s.AdapterPublishFailure, 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("sess-42", "stream-b", "s3", 1024)
	s := c.Snapshot()

	if s.SessionID != "sess-42" {
		t.Errorf("SessionID = %q, want %q", s.SessionID, "sess-42")
	}
	if s.StreamID != "stream-b" {
		t.Errorf("StreamID = %q, want %q", s.StreamID, "stream-b")
	}
	if s.StorageBackend != "s3" {
		t.Errorf("StorageBackend = %q, want %q", s.StorageBackend, "s3")
	}
	if s.Capacity != 1024 {
		t.Errorf("Capacity = %d, want 1024", s.Capacity)
	}
}

func TestCollector_AbsorbReassembly(t *testing.T) {
	c := NewCollector("sess-001", "", "", 8)

	c.AbsorbReassembly(Reassembly{SegmentsInserted: 3, BytesAssembled: 9})
	c.AbsorbReassembly(Reassembly{SegmentsInserted: 5, BytesAssembled: 12, ConflictingEOF: 1})

	// Absorption replaces, it does not accumulate.
	r := c.Snapshot().Reassembly
	if r.SegmentsInserted != 5 {
		t.Errorf("SegmentsInserted = %d, want 5", r.SegmentsInserted)
	}
	if r.BytesAssembled != 12 {
		t.Errorf("BytesAssembled = %d, want 12", r.BytesAssembled)
	}
	if r.ConflictingEOF != 1 {
		t.Errorf("ConflictingEOF = %d, want 1", r.ConflictingEOF)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("sess-001", "", "fs", 8)
	c.IncSessionStarted()
	c.IncLodeWriteSuccess()

	s1 := c.Snapshot()

	c.IncOutcome("complete")
	c.IncLodeWriteSuccess()
	c.IncLodeWriteSuccess()

	if s1.SessionsByOutcome["complete"] != 0 {
		t.Errorf("s1 complete = %d, want 0 (snapshot should be frozen)", s1.SessionsByOutcome["complete"])
	}
	if s1.LodeWriteSuccess != 1 {
		t.Errorf("s1.LodeWriteSuccess = %d, want 1 (snapshot should be frozen)", s1.LodeWriteSuccess)
	}

	s2 := c.Snapshot()
	if s2.SessionsByOutcome["complete"] != 1 {
		t.Errorf("s2 complete = %d, want 1", s2.SessionsByOutcome["complete"])
	}
	if s2.LodeWriteSuccess != 3 {
		t.Errorf("s2.LodeWriteSuccess = %d, want 3", s2.LodeWriteSuccess)
	}
}

func TestCollector_SnapshotOutcomeMapIsolation(t *testing.T) {
	c := NewCollector("sess-001", "", "", 8)
	c.IncOutcome("complete")

	s := c.Snapshot()
	s.SessionsByOutcome["complete"] = 999
	s.SessionsByOutcome["injected"] = 1

	s2 := c.Snapshot()
	if s2.SessionsByOutcome["complete"] != 1 {
		t.Errorf("complete = %d, want 1 (collector should be isolated from snapshot mutation)", s2.SessionsByOutcome["complete"])
	}
	if _, exists := s2.SessionsByOutcome["injected"]; exists {
		t.Error("SessionsByOutcome should not contain injected key from snapshot mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncSessionStarted()
	c.IncOutcome("complete")
	c.IncFrameRead()
	c.IncSegmentFrame()
	c.IncStreamEndFrame()
	c.IncFrameDecodeErrors()
	c.IncForeignSegment()
	c.AddBytesDelivered(1)
	c.IncOutputWriteErrors()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncAdapterPublishSuccess()
	c.IncAdapterPublishFailure()
	c.AbsorbReassembly(Reassembly{SegmentsInserted: 1})

	s := c.Snapshot()
	if s.SessionsStarted != 0 {
		t.Errorf("nil collector snapshot SessionsStarted = %d, want 0", s.SessionsStarted)
	}
	if s.SessionsByOutcome != nil {
		t.Errorf("nil collector snapshot SessionsByOutcome should be nil, got %v", s.SessionsByOutcome)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("sess-001", "", "fs", 8)
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncFrameRead()
				c.AddBytesDelivered(2)
				c.IncOutcome("complete")
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.FramesRead != want {
		t.Errorf("FramesRead = %d, want %d", s.FramesRead, want)
	}
	if s.BytesDelivered != 2*want {
		t.Errorf("BytesDelivered = %d, want %d", s.BytesDelivered, 2*want)
	}
	if s.SessionsByOutcome["complete"] != want {
		t.Errorf("complete = %d, want %d", s.SessionsByOutcome["complete"], want)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	s := NewCollector("sess-001", "", "", 8).Snapshot()

	if s.SessionsStarted != 0 || len(s.SessionsByOutcome) != 0 {
		t.Error("fresh collector should have zero session counters")
	}
	if s.FramesRead != 0 || s.SegmentFrames != 0 || s.StreamEndFrames != 0 || s.FrameDecodeErrors != 0 {
		t.Error("fresh collector should have zero frame counters")
	}
	if s.Reassembly != (Reassembly{}) {
		t.Errorf("fresh collector Reassembly = %+v, want zero", s.Reassembly)
	}
	if s.LodeWriteSuccess != 0 || s.LodeWriteFailure != 0 {
		t.Error("fresh collector should have zero Lode counters")
	}
}
