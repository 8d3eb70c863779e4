package signal

import (
	"testing"

	"VolStack/internal/domain/models"
)

func TestDecisionTable(t *testing.T) {
	d, err := New(DefaultConfidence, DefaultVolExpansion)
	if err != nil {
		t.Fatalf("new decider: %v", err)
	}

	cases := []struct {
		name     string
		vol      float64
		up, down float64
		want     models.Signal
	}{
		{"expanding vol, confident up", 0.002, 0.70, 0.30, models.SignalStrongBuy},
		{"expanding vol, confident down", 0.002, 0.30, 0.70, models.SignalStrongSell},
		{"expanding vol, no conviction", 0.002, 0.50, 0.50, models.SignalHighVolNoDir},
		{"quiet vol, confident up", 0.0005, 0.70, 0.30, models.SignalGrindUp},
		{"quiet vol, confident down", 0.0005, 0.30, 0.70, models.SignalGrindDown},
		{"quiet vol, no conviction", 0.0005, 0.50, 0.50, models.SignalNeutral},
	}
	for _, c := range cases {
		if got := d.Decide(c.vol, c.up, c.down); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestThresholdBoundariesAreStrict(t *testing.T) {
	d, err := New(DefaultConfidence, DefaultVolExpansion)
	if err != nil {
		t.Fatalf("new decider: %v", err)
	}

	// Exactly at a threshold never crosses it.
	if got := d.Decide(DefaultVolExpansion, 0.70, 0.30); got != models.SignalGrindUp {
		t.Fatalf("vol at threshold must stay on the quiet branch, got %s", got)
	}
	if got := d.Decide(0.002, DefaultConfidence, 1-DefaultConfidence); got != models.SignalHighVolNoDir {
		t.Fatalf("probability at threshold must not count as conviction, got %s", got)
	}
}

func TestNewRejectsBadThresholds(t *testing.T) {
	if _, err := New(0, DefaultVolExpansion); err == nil {
		t.Fatalf("expected error on zero confidence")
	}
	if _, err := New(1.2, DefaultVolExpansion); err == nil {
		t.Fatalf("expected error on confidence above one")
	}
	if _, err := New(DefaultConfidence, 0); err == nil {
		t.Fatalf("expected error on zero expansion threshold")
	}
}
