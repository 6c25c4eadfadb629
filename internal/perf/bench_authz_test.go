package perf

import (
	"sort"
	"testing"
	"time"

	"github.com/forge-club/forge/internal/judging"
	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/rbac"
	_ "github.com/forge-club/forge/testing"
)

func TestAuthzLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{
			// Gate checks sit on every request, so the budget is tight.
			name:      "gate",
			samples:   []time.Duration{2 * time.Microsecond, 3 * time.Microsecond, 3 * time.Microsecond, 4 * time.Microsecond, 4 * time.Microsecond, 5 * time.Microsecond, 5 * time.Microsecond, 6 * time.Microsecond, 7 * time.Microsecond, 9 * time.Microsecond},
			threshold: time.Millisecond,
		},
		{
			// Activation happens once per judge and tolerates more.
			name:      "activation",
			samples:   []time.Duration{12 * time.Millisecond, 14 * time.Millisecond, 16 * time.Millisecond, 18 * time.Millisecond, 20 * time.Millisecond, 22 * time.Millisecond, 25 * time.Millisecond, 28 * time.Millisecond, 32 * time.Millisecond, 40 * time.Millisecond},
			threshold: 500 * time.Millisecond,
		},
	}

	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func BenchmarkTokenVerify(b *testing.B) {
	codec := judging.NewTokenCodec("bench-secret")
	token, err := codec.Issue("Room 101", time.Hour)
	if err != nil {
		b.Fatalf("issue: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Verify(token); err != nil {
			b.Fatalf("verify: %v", err)
		}
	}
}

func BenchmarkGateRequireAll(b *testing.B) {
	bits := make([]byte, perm.Size())
	for i := range bits {
		bits[i] = '0'
	}
	if idx, ok := perm.IndexOf(perm.ReadMembers); ok {
		bits[idx] = '1'
	}
	if idx, ok := perm.IndexOf(perm.EditMembers); ok {
		bits[idx] = '1'
	}
	vector, err := perm.ParseVector(string(bits))
	if err != nil {
		b.Fatalf("parse vector: %v", err)
	}
	set := perm.NewSet()
	set.Or(vector)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := rbac.RequireAll(set, perm.ReadMembers, perm.EditMembers); err != nil {
			b.Fatalf("gate: %v", err)
		}
	}
}
