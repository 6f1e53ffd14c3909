// Package diff computes and applies structural diffs over JSON-like
// document trees (map[string]any, []any, scalars).
//
// A diff is an ordered list of add/update/remove operations keyed by field
// path. Applying Compute(base, target) to base yields target. This is the
// only write vocabulary used against shared documents: patching changed
// leaves instead of replacing whole objects keeps the replicated write
// footprint small and out of the way of concurrent edits from other
// devices.
package diff

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Kind discriminates an operation.
type Kind uint8

const (
	// Add inserts a map key or a slice slot at the path.
	Add Kind = iota
	// Update replaces the value at the path.
	Update
	// Remove deletes the map key or slice slot at the path.
	Remove
)

func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case Update:
		return "update"
	case Remove:
		return "remove"
	}
	return "unknown"
}

// Op is one structural operation. Slice indexes appear in Path as decimal
// strings.
type Op struct {
	Path  []string
	Kind  Kind
	Value any
}

// Compute returns the operations transforming base into target. Slice
// removals are emitted highest-index-first so Apply never shifts a slot it
// still has to touch.
func Compute(base, target map[string]any) []Op {
	var ops []Op
	computeValue(nil, base, target, &ops)
	return ops
}

func computeValue(path []string, base, target any, ops *[]Op) {
	switch b := base.(type) {
	case map[string]any:
		if t, ok := target.(map[string]any); ok {
			computeMap(path, b, t, ops)
			return
		}
	case []any:
		if t, ok := target.([]any); ok {
			computeSlice(path, b, t, ops)
			return
		}
	}
	if !reflect.DeepEqual(base, target) {
		*ops = append(*ops, Op{Path: clonePath(path), Kind: Update, Value: target})
	}
}

func computeMap(path []string, base, target map[string]any, ops *[]Op) {
	keys := make([]string, 0, len(base)+len(target))
	seen := make(map[string]bool, len(base)+len(target))
	for k := range base {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range target {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		bv, inBase := base[k]
		tv, inTarget := target[k]
		child := append(path, k)
		switch {
		case inBase && inTarget:
			computeValue(child, bv, tv, ops)
		case inTarget:
			*ops = append(*ops, Op{Path: clonePath(child), Kind: Add, Value: tv})
		default:
			*ops = append(*ops, Op{Path: clonePath(child), Kind: Remove})
		}
	}
}

func computeSlice(path []string, base, target []any, ops *[]Op) {
	n := len(base)
	if len(target) < n {
		n = len(target)
	}
	for i := 0; i < n; i++ {
		computeValue(append(path, strconv.Itoa(i)), base[i], target[i], ops)
	}
	for i := n; i < len(target); i++ {
		child := append(path, strconv.Itoa(i))
		*ops = append(*ops, Op{Path: clonePath(child), Kind: Add, Value: target[i]})
	}
	for i := len(base) - 1; i >= len(target); i-- {
		child := append(path, strconv.Itoa(i))
		*ops = append(*ops, Op{Path: clonePath(child), Kind: Remove})
	}
}

// Apply mutates doc in place according to ops.
func Apply(doc map[string]any, ops []Op) error {
	for _, op := range ops {
		if len(op.Path) == 0 {
			return fmt.Errorf("diff: empty path in %s op", op.Kind)
		}
		if _, err := applyRec(doc, op.Path, op); err != nil {
			return err
		}
	}
	return nil
}

// applyRec descends to the parent of the final path segment, performs the
// operation there, and bubbles resized slices back up to their parent slot.
func applyRec(node any, path []string, op Op) (any, error) {
	seg := path[0]
	if len(path) == 1 {
		return applyLeaf(node, seg, op)
	}

	switch n := node.(type) {
	case map[string]any:
		child, ok := n[seg]
		if !ok {
			return nil, fmt.Errorf("diff: path segment %q not found", seg)
		}
		replaced, err := applyRec(child, path[1:], op)
		if err != nil {
			return nil, err
		}
		n[seg] = replaced
		return n, nil
	case []any:
		i, err := sliceIndex(seg, len(n), false)
		if err != nil {
			return nil, err
		}
		replaced, err := applyRec(n[i], path[1:], op)
		if err != nil {
			return nil, err
		}
		n[i] = replaced
		return n, nil
	default:
		return nil, fmt.Errorf("diff: cannot descend into %T at %q", node, seg)
	}
}

func applyLeaf(node any, seg string, op Op) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		switch op.Kind {
		case Add, Update:
			n[seg] = op.Value
		case Remove:
			delete(n, seg)
		}
		return n, nil
	case []any:
		switch op.Kind {
		case Update:
			i, err := sliceIndex(seg, len(n), false)
			if err != nil {
				return nil, err
			}
			n[i] = op.Value
			return n, nil
		case Add:
			i, err := sliceIndex(seg, len(n), true)
			if err != nil {
				return nil, err
			}
			n = append(n, nil)
			copy(n[i+1:], n[i:])
			n[i] = op.Value
			return n, nil
		case Remove:
			i, err := sliceIndex(seg, len(n), false)
			if err != nil {
				return nil, err
			}
			return append(n[:i], n[i+1:]...), nil
		}
		return n, nil
	default:
		return nil, fmt.Errorf("diff: cannot apply %s to %T", op.Kind, node)
	}
}

// sliceIndex parses a slice path segment. insert allows the one-past-end
// position.
func sliceIndex(seg string, length int, insert bool) (int, error) {
	i, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("diff: %q is not a slice index", seg)
	}
	max := length - 1
	if insert {
		max = length
	}
	if i < 0 || i > max {
		return 0, fmt.Errorf("diff: index %d out of range (len %d)", i, length)
	}
	return i, nil
}

// Prefix returns ops with parent prepended to every path. It is used to
// scope a diff computed over a sub-document (one expense) to its slot
// inside the containing document (the chunk's expense list).
func Prefix(parent []string, ops []Op) []Op {
	out := make([]Op, len(ops))
	for i, op := range ops {
		p := make([]string, 0, len(parent)+len(op.Path))
		p = append(p, parent...)
		p = append(p, op.Path...)
		out[i] = Op{Path: p, Kind: op.Kind, Value: op.Value}
	}
	return out
}

func clonePath(p []string) []string {
	out := make([]string, len(p))
	copy(out, p)
	return out
}
