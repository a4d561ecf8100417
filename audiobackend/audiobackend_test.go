package audiobackend

import "testing"

func TestSyncBackendTickInvokesCallbackAndRecordsSubmit(t *testing.T) {
	b := NewSyncBackend()
	calls := 0
	if err := b.Start(44100, 2, func() { calls++ }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	b.Tick()
	if calls != 1 {
		t.Fatalf("expected onBlockReady called once, got %d", calls)
	}

	frames := []float32{0.1, 0.2, 0.3, 0.4}
	if err := b.Submit(frames, 2); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, n := b.LastBlock()
	if n != 2 {
		t.Fatalf("expected 2 frames, got %d", n)
	}
	for i, v := range frames {
		if got[i] != v {
			t.Fatalf("sample %d: got %v want %v", i, got[i], v)
		}
	}
}
