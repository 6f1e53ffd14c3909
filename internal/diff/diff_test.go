package diff

import (
	"encoding/json"
	"reflect"
	"testing"
)

// tree builds a document from JSON so test fixtures use the same value
// kinds (float64 numbers, []any slices) the store holds.
func tree(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return doc
}

func TestComputeApplyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		target string
	}{
		{
			name:   "scalar update",
			base:   `{"name":"dinner","cents":1000}`,
			target: `{"name":"brunch","cents":1000}`,
		},
		{
			name:   "key added and removed",
			base:   `{"a":1,"b":2}`,
			target: `{"b":2,"c":3}`,
		},
		{
			name:   "nested map change",
			base:   `{"paidBy":{"alice":1000},"shares":{"alice":{"kind":"divide","units":1}}}`,
			target: `{"paidBy":{"alice":800,"bob":200},"shares":{"alice":{"kind":"exact","amount":500}}}`,
		},
		{
			name:   "slice element update",
			base:   `{"expenses":[{"id":"e2","cents":5},{"id":"e1","cents":9}]}`,
			target: `{"expenses":[{"id":"e2","cents":7},{"id":"e1","cents":9}]}`,
		},
		{
			name:   "slice grows at tail",
			base:   `{"ids":["a"]}`,
			target: `{"ids":["a","b","c"]}`,
		},
		{
			name:   "slice shrinks",
			base:   `{"ids":["a","b","c","d"]}`,
			target: `{"ids":["a"]}`,
		},
		{
			name:   "slice emptied",
			base:   `{"ids":["a","b"]}`,
			target: `{"ids":[]}`,
		},
		{
			name:   "kind change from map to scalar",
			base:   `{"edit":{"draft":{"name":"x"}}}`,
			target: `{"edit":7}`,
		},
		{
			name:   "deep mixed change",
			base:   `{"chunk":{"expenses":[{"id":"e1","media":["m1","m2"]}],"capacity":500}}`,
			target: `{"chunk":{"expenses":[{"id":"e1","media":["m1"]},{"id":"e0"}],"capacity":500},"v":1}`,
		},
		{
			name:   "identical documents",
			base:   `{"a":{"b":[1,2,3]}}`,
			target: `{"a":{"b":[1,2,3]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := tree(t, tt.base)
			target := tree(t, tt.target)

			ops := Compute(base, target)
			if err := Apply(base, ops); err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if !reflect.DeepEqual(base, target) {
				t.Errorf("round trip mismatch:\n got  %v\n want %v\n ops  %v", base, target, ops)
			}
		})
	}
}

func TestComputeEmptyForEqualDocs(t *testing.T) {
	base := tree(t, `{"balances":{"a":{"balance":500}},"partyId":"p1"}`)
	target := tree(t, `{"balances":{"a":{"balance":500}},"partyId":"p1"}`)
	if ops := Compute(base, target); len(ops) != 0 {
		t.Errorf("expected no ops for equal documents, got %v", ops)
	}
}

func TestComputeTouchesOnlyChangedLeaves(t *testing.T) {
	base := tree(t, `{"balances":{"a":{"balance":500,"userOwes":0},"b":{"balance":-500,"userOwes":500}},"partyId":"p1"}`)
	target := tree(t, `{"balances":{"a":{"balance":250,"userOwes":0},"b":{"balance":-250,"userOwes":250}},"partyId":"p1"}`)

	ops := Compute(base, target)
	if len(ops) != 3 {
		t.Fatalf("got %d ops, want 3 leaf updates: %v", len(ops), ops)
	}
	for _, op := range ops {
		if op.Kind != Update {
			t.Errorf("op %v is %s, want update", op.Path, op.Kind)
		}
	}
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		op   Op
	}{
		{
			name: "missing path segment",
			doc:  `{"a":1}`,
			op:   Op{Path: []string{"missing", "leaf"}, Kind: Update, Value: 1.0},
		},
		{
			name: "index out of range",
			doc:  `{"ids":["a"]}`,
			op:   Op{Path: []string{"ids", "5"}, Kind: Update, Value: "x"},
		},
		{
			name: "descend into scalar",
			doc:  `{"a":1}`,
			op:   Op{Path: []string{"a", "b"}, Kind: Update, Value: 1.0},
		},
		{
			name: "non-numeric slice index",
			doc:  `{"ids":["a"]}`,
			op:   Op{Path: []string{"ids", "x"}, Kind: Remove},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Apply(tree(t, tt.doc), []Op{tt.op}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestPrefix(t *testing.T) {
	ops := []Op{{Path: []string{"name"}, Kind: Update, Value: "x"}}
	got := Prefix([]string{"expenses", "3"}, ops)
	want := []string{"expenses", "3", "name"}
	if !reflect.DeepEqual(got[0].Path, want) {
		t.Errorf("prefixed path = %v, want %v", got[0].Path, want)
	}
}
