// Package generation adapts raw model backends to the ports.GenerationGateway contract.
//
// A Backend only knows how to turn a prompt (and optionally a JSON Schema) into text.
// The Gateway owns everything between that text and a typed record: code fence
// stripping, JSON Schema validation, type coercion and the final schema check.
package generation
