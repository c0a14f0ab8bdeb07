// Package embedder provides text embedding clients for vector representations.
//
// Every call carries a Mode: passages are embedded for storage and queries
// for search. Providers express the mode natively where they can (Gemini task
// types) and through "query: " / "passage: " input prefixes otherwise.
//
// # Supported Providers
//
//   - OpenAI: text-embedding-3-small, text-embedding-3-large and any
//     OpenAI-compatible embeddings endpoint
//   - GenAI: gemini-embedding-001
//
// # Usage
//
//	emb := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{
//	    Model:     "text-embedding-3-small",
//	    BatchSize: 100,
//	})
//
//	vec, err := emb.EmbedSingle(ctx, "persistent cough after travel", embedder.ModeQuery)
//
// Blank input yields a nil embedding and a nil error.
package embedder
