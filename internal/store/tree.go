package store

import (
	"encoding/json"
	"strconv"
)

// Lookup walks a generic JSON tree. Numeric segments index into arrays.
func Lookup(node any, parts []string) (any, bool) {
	for _, p := range parts {
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[p]
			if !ok {
				return nil, false
			}
			node = child
		case []any:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// Assign writes value at parts below root, creating intermediate objects.
// Existing arrays are indexed in place; a scalar in the way is replaced.
func Assign(root map[string]any, parts []string, value any) {
	var node any = root
	for i, p := range parts {
		last := i == len(parts)-1
		switch n := node.(type) {
		case map[string]any:
			if last {
				n[p] = value
				return
			}
			child := n[p]
			switch child.(type) {
			case map[string]any, []any:
			default:
				child = make(map[string]any)
				n[p] = child
			}
			node = child
		case []any:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(n) {
				return
			}
			if last {
				n[idx] = value
				return
			}
			child := n[idx]
			switch child.(type) {
			case map[string]any, []any:
			default:
				child = make(map[string]any)
				n[idx] = child
			}
			node = child
		}
	}
}

// Delete removes the value at parts and prunes the objects it leaves empty,
// so an emptied collection reads as absent.
func Delete(root map[string]any, parts []string) {
	trail := []map[string]any{root}
	node := root
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]any)
		if !ok {
			return
		}
		trail = append(trail, child)
		node = child
	}
	delete(node, parts[len(parts)-1])
	for i := len(trail) - 1; i > 0; i-- {
		if len(trail[i]) > 0 {
			return
		}
		delete(trail[i-1], parts[i-1])
	}
}

// Normalize converts any JSON-compatible value into the generic tree shape.
// Empty objects and arrays normalize to nil, i.e. they are never stored.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case map[string]any:
		if len(v) == 0 {
			return nil, nil
		}
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
	}
	return out, nil
}
