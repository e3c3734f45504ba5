package boolexpr

import "strings"

// Resolver lazily produces a Value for a leaf. Evaluation of a leaf never
// fails structurally (a missing metric is Null, not an error); ScopeError
// is reserved for paths absent from the table structure entirely.
type Resolver func() Value

// SymbolTable is the recursive record from design notes §9: a tree of
// tables with attached typed leaves. Both C1 (rule evaluation) and C3
// (dependency solving) build one per call; tables are not shared across
// calls (§5).
type SymbolTable struct {
	objects   map[string]Resolver
	subtables map[string]*SymbolTable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		objects:   make(map[string]Resolver),
		subtables: make(map[string]*SymbolTable),
	}
}

// Bind attaches a leaf resolver at name within this table.
func (t *SymbolTable) Bind(name string, r Resolver) {
	t.objects[name] = r
}

// BindValue is a convenience for binding a constant value.
func (t *SymbolTable) BindValue(name string, v Value) {
	t.Bind(name, func() Value { return v })
}

// Sub returns (creating if needed) the named child table.
func (t *SymbolTable) Sub(name string) *SymbolTable {
	if sub, ok := t.subtables[name]; ok {
		return sub
	}
	sub := NewSymbolTable()
	t.subtables[name] = sub
	return sub
}

// IsEmpty reports whether this table has no objects and no non-empty
// subtables, used by bare-name truthiness.
func (t *SymbolTable) IsEmpty() bool {
	if len(t.objects) > 0 {
		return false
	}
	for _, sub := range t.subtables {
		if !sub.IsEmpty() {
			return false
		}
	}
	return true
}

// Resolve walks a ':'-separated path. found is false when no binding or
// subtable exists anywhere along the path (a genuine ScopeError
// candidate); when the path lands on a subtable rather than a leaf, the
// bare-name truthiness rule applies (§4.1) and Resolve returns a
// synthetic boolean Value.
func (t *SymbolTable) Resolve(path []string) (Value, bool) {
	if len(path) == 0 {
		return Null(), false
	}
	head := path[0]
	if len(path) == 1 {
		if r, ok := t.objects[head]; ok {
			return r(), true
		}
		if sub, ok := t.subtables[head]; ok {
			return BoolValue(!sub.IsEmpty()), true
		}
		return Null(), false
	}
	sub, ok := t.subtables[head]
	if !ok {
		return Null(), false
	}
	return sub.Resolve(path[1:])
}

// SplitPath splits a ':'-separated symbol name into path segments.
func SplitPath(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, ":")
}

// JoinPath is the inverse of SplitPath.
func JoinPath(path []string) string {
	return strings.Join(path, ":")
}
