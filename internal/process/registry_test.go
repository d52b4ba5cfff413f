package process

import "testing"

func TestTokenCancel(t *testing.T) {
	tok := NewToken()
	if tok.Cancelled() {
		t.Fatal("new token already cancelled")
	}
	tok.Cancel()
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatal("token not cancelled")
	}
	select {
	case <-tok.Context().Done():
	default:
		t.Fatal("context not done after Cancel")
	}
}

func TestRegistryPutRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	first := NewToken()
	if !r.Put("job-1", first) {
		t.Fatal("first Put rejected")
	}
	if r.Put("job-1", NewToken()) {
		t.Fatal("duplicate Put accepted")
	}
	got, ok := r.Get("job-1")
	if !ok || got != first {
		t.Fatal("registry entry replaced by duplicate")
	}
}

func TestRegistryTake(t *testing.T) {
	r := NewRegistry()
	tok := NewToken()
	r.Put("job-1", tok)

	got, ok := r.Take("job-1")
	if !ok || got != tok {
		t.Fatal("Take did not return registered token")
	}
	if _, ok := r.Take("job-1"); ok {
		t.Fatal("second Take found entry")
	}
	if r.Len() != 0 {
		t.Fatalf("registry not empty: %d", r.Len())
	}
}

func TestRegistryReleaseIgnoresNewerToken(t *testing.T) {
	r := NewRegistry()
	old := NewToken()
	r.Put("job-1", old)
	r.Take("job-1")

	newer := NewToken()
	r.Put("job-1", newer)
	r.Release("job-1", old)

	if got, ok := r.Get("job-1"); !ok || got != newer {
		t.Fatal("Release removed a newer job's token")
	}
	r.Release("job-1", newer)
	if r.Len() != 0 {
		t.Fatal("Release did not remove matching token")
	}
}

func TestRegistryCancelAll(t *testing.T) {
	r := NewRegistry()
	a, b := NewToken(), NewToken()
	r.Put("a", a)
	r.Put("b", b)

	if n := r.CancelAll(); n != 2 {
		t.Fatalf("CancelAll = %d, want 2", n)
	}
	if !a.Cancelled() || !b.Cancelled() {
		t.Fatal("tokens not cancelled")
	}
	if r.Len() != 0 {
		t.Fatal("registry not emptied")
	}
}
