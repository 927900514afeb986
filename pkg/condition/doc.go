// Package condition implements the sandboxed boolean expression language
// that gates node execution.
//
// The grammar is intentionally small: map lookups over the evaluation
// environment (outputs.node.field or outputs["node"]["field"]), literals,
// equality and ordering comparisons, and boolean combinators. A lookup that
// misses evaluates to an undefined value: any comparison touching it is
// false, and undefined itself is falsy. Evaluation therefore never fails on
// missing data; a node with a condition over absent outputs is skipped, not
// executed and not errored.
package condition
