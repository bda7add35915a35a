// Package agent defines the Agent contract the control plane treats as an
// external collaborator — producing text is someone else's job — and
// ships a handful of thin concrete clients behind it, one per vendor.
package agent

import "context"

// Agent is the minimal surface the response selector, adapter, scheduler,
// and ingest pipeline need from whatever produces text. Real providers
// wrap a vendor SDK; tests use a fake.
type Agent interface {
	// Generate returns one completion for prompt. variant is a short
	// suffix such as " (respond briefly)" used by the response selector
	// to request diverse candidates from the same prompt.
	Generate(ctx context.Context, prompt string, variant string, context_ map[string]any) (string, error)

	// Stream is used by the backend adapter's GenerateText: it pushes
	// chunks to onChunk as they arrive and returns the full text once done.
	Stream(ctx context.Context, prompt string, context_ map[string]any, onChunk func(chunk string)) (string, error)
}
