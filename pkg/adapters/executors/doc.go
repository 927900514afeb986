// Package executors provides the executor registry and the built-in node
// executor implementations.
//
// A NodeSpec names its executor by ref; the registry resolves refs to
// ports.NodeExecutor instances supplied at construction. Domain-specific
// executors (agent invocation, validation checks) register here and stay
// entirely outside the scheduling core.
package executors
