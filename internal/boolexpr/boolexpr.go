// Package boolexpr implements the Boolean Expression Engine (C1): a
// small recursive-descent parser and evaluator for the rule grammar used
// by the Trigger Engine (C2) and the Dependency Solver (C3) to describe
// boolean predicates over a typed symbol table.
//
// A third-party expression library (PaesslerAG/gval) was evaluated and
// rejected for this component; see DESIGN.md for why it couldn't host
// the since-hysteresis lookup and typed `in` membership cleanly.
package boolexpr

// Compiled is a parsed, ready-to-evaluate expression.
type Compiled struct {
	root node
	src  string
}

// Compile parses expr, returning a ParseError on grammar violations.
func Compile(expr string) (*Compiled, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return &Compiled{root: root, src: expr}, nil
}

// Source returns the original expression text.
func (c *Compiled) Source() string { return c.src }

// Eval evaluates the compiled expression against a symbol table,
// returning ScopeError when a referenced symbol is absent or comparison
// operands are incompatible.
func (c *Compiled) Eval(t *SymbolTable) (bool, error) {
	v, err := c.root.eval(t)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Paths returns every symbol path referenced anywhere in the expression,
// used by callers (e.g. the Trigger Engine) that need to statically
// inspect which names an expression depends on without evaluating it.
func (c *Compiled) Paths() [][]string {
	var out [][]string
	collectPaths(c.root, &out)
	return out
}

func collectPaths(n node, out *[][]string) {
	switch v := n.(type) {
	case *orNode:
		collectPaths(v.left, out)
		collectPaths(v.right, out)
	case *andNode:
		collectPaths(v.left, out)
		collectPaths(v.right, out)
	case *notNode:
		collectPaths(v.inner, out)
	case *compareNode:
		collectPaths(v.left, out)
		collectPaths(v.right, out)
	case *inNode:
		collectPaths(v.left, out)
		collectPaths(v.right, out)
	case *pathNode:
		*out = append(*out, v.path)
	}
}
