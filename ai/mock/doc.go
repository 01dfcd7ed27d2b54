// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
// All mocks are safe for concurrent use.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	gen := mock.NewMockGenerator()
//	gen.GenerateFunc = func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
//	    return "", core.ErrExternalService
//	}
//
//	// Check call counts and recorded prompts
//	count := gen.CallCount()
//	prompts := gen.Prompts()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Returns a deterministic answer derived from the prompt
//   - MockProvider: Aggregates mock embedder and generator
package mock
