// Package memory provides composable conversational memory for agents.
//
// A memory Provider contributes context before each model call (PreTurn)
// and captures new information afterward (PostTurn). Providers are
// independent: each touches only its own scope-keyed state.
//
// Architecture:
//   - Provider: one memory concern (profile extraction, chat history, ...)
//   - Pipeline: ordered composite of providers with per-provider isolation
//   - Store: vector storage backend (chromem-go locally, swappable)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX locally)
//
// Integration with the engine:
//   - PreTurn runs before response generation; contributions are merged
//     into the prompt
//   - PostTurn runs only for turns that produced a real response, so a
//     failed turn leaves no partial memory writes
package memory
