// Package expression parses and evaluates aggregation expressions.
//
// Expressions are parsed once from their declarative document form into an
// immutable tree and evaluated many times:
//
//	e, err := expression.Parse(document.MustParse(`{"$in": ["$carrier_id", "$$ids"]}`))
//	env := expression.NewBindings().With("ids", document.Array(document.Int(9)))
//	v, err := expression.Evaluate(e, doc, env)
//
// Forms:
//   - "$a.b.c" references a field of the current document (dotted paths
//     broadcast through arrays, see document.Resolve).
//   - "$$name.path" references a variable from the binding environment.
//     ROOT and CURRENT are always bound to the current document and REMOVE
//     evaluates to Missing. Any other unbound name is an UNDEFINED_VARIABLE
//     error rather than Missing.
//   - {"$op": args} applies an operator; args is an array of operands or a
//     single operand.
//   - arrays and documents without operator keys evaluate element-wise.
//   - everything else is a literal.
//
// Evaluation never modifies the input document.
package expression
