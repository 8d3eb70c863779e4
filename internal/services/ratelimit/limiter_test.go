package ratelimit

import "testing"

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0.0001) {
			t.Fatalf("request %d denied within capacity", i)
		}
	}
	if l.Allow("k", 3, 0.0001) {
		t.Error("request allowed past capacity with no refill time")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.0001) {
		t.Fatal("first request for key a denied")
	}
	if l.Allow("a", 1, 0.0001) {
		t.Error("key a allowed past capacity")
	}
	if !l.Allow("b", 1, 0.0001) {
		t.Error("key b denied by key a's exhaustion")
	}
}
