package types

import "testing"

func TestVersionVectorCompare(t *testing.T) {
	var a, b WriterID
	a[0] = 1
	b[0] = 2

	tests := []struct {
		name string
		vv1  VersionVector
		vv2  VersionVector
		want Ordering
	}{
		{
			name: "equal empty",
			vv1:  NewVersionVector(),
			vv2:  NewVersionVector(),
			want: Equal,
		},
		{
			name: "less",
			vv1:  VersionVector{a: 1},
			vv2:  VersionVector{a: 2},
			want: Less,
		},
		{
			name: "greater",
			vv1:  VersionVector{a: 3},
			vv2:  VersionVector{a: 2},
			want: Greater,
		},
		{
			name: "concurrent",
			vv1:  VersionVector{a: 2, b: 0},
			vv2:  VersionVector{a: 0, b: 2},
			want: Concurrent,
		},
		{
			name: "equal with differing keys but zero counters",
			vv1:  VersionVector{a: 1},
			vv2:  VersionVector{a: 1, b: 0},
			want: Equal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vv1.Compare(tt.vv2); got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersionVectorIncrementIsMonotone(t *testing.T) {
	var w WriterID
	w[0] = 9

	vv := NewVersionVector()
	prev := vv.Clone()
	for i := 0; i < 5; i++ {
		vv.Increment(w)
		if vv.Compare(prev) != Greater {
			t.Fatalf("increment %d did not strictly advance vv", i)
		}
		prev = vv.Clone()
	}
}

func TestVersionVectorMergeIsJoin(t *testing.T) {
	var a, b WriterID
	a[0], b[0] = 1, 2

	x := VersionVector{a: 3, b: 1}
	y := VersionVector{a: 1, b: 5}

	merged := x.Merge(y)
	if merged.Get(a) != 3 || merged.Get(b) != 5 {
		t.Fatalf("merge did not take componentwise max: %v", merged)
	}

	// Merge is idempotent.
	if merged.Merge(x).Compare(merged) != Equal {
		t.Fatalf("merge is not idempotent")
	}
}

func TestMultiBlockPresenceOutdated(t *testing.T) {
	none := None()
	full := Full()
	some := MultiBlockPresence{Kind: PresenceSome, Digest: [8]byte{1}}
	otherSome := MultiBlockPresence{Kind: PresenceSome, Digest: [8]byte{2}}

	if !none.IsOutdatedVs(full) {
		t.Error("none should be outdated vs full")
	}
	if full.IsOutdatedVs(none) {
		t.Error("full should never be outdated")
	}
	if some.IsOutdatedVs(none) {
		t.Error("nothing is learned from none")
	}
	if !some.IsOutdatedVs(otherSome) {
		t.Error("differing digests should be considered outdated")
	}
	if some.IsOutdatedVs(some) {
		t.Error("identical digests should not be outdated")
	}
}
