package repository

import (
	"regexp"
	"strings"
	"testing"
)

// The conflict policy is the contract callers depend on: a replayed
// timestamp may rewrite the signal label and nothing else.
func TestUpsertQueryConflictPolicy(t *testing.T) {
	q := upsertQuery("live_predictions")

	if !strings.Contains(q, "ON CONFLICT (timestamp) DO UPDATE SET") {
		t.Fatalf("upsert must key the conflict on timestamp:\n%s", q)
	}

	// Everything after the conflict clause updates signal_type only.
	idx := strings.Index(q, "DO UPDATE SET")
	tail := q[idx:]
	assigns := regexp.MustCompile(`(\w+)\s*=\s*EXCLUDED\.`).FindAllStringSubmatch(tail, -1)
	if len(assigns) != 1 || assigns[0][1] != "signal_type" {
		t.Fatalf("conflict update must touch signal_type only, got %v in:\n%s", assigns, tail)
	}
	for _, col := range []string{"price", "pred_vol", "prob_up", "prob_down"} {
		if strings.Contains(tail, col+" =") {
			t.Fatalf("conflict update must not rewrite %s:\n%s", col, tail)
		}
	}
}

func TestSchemaStatementsAreIdempotent(t *testing.T) {
	s := &PGPredictionStore{table: "live_predictions"}
	stmts := s.SchemaStatements()
	if len(stmts) == 0 {
		t.Fatalf("expected schema statements")
	}
	for _, stmt := range stmts {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Fatalf("schema statement not idempotent:\n%s", stmt)
		}
	}
}
