// Package llm provides an agent node executor backed by an LLM provider.
//
// The Anthropic executor is one example of the platform's NodeExecutor contract:
// prompt assembly from the node config and dependency outputs, a single
// completion call, and the completion text as the node output.
package llm
