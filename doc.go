// Package medinsight is the core of a clinical-knowledge assistant.
//
// It does two things. It stores insights written by senior doctors, each
// owned by a hospital, and retrieves them with a tiered similarity search
// that masks medications and lab tests from other hospitals. And it runs
// multi-modal research requests, fanning out over speech, acoustic, image
// and document analyzers before streaming one synthesized report.
//
// # Basic Usage
//
// Build a client from its collaborators:
//
//	emb := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{Model: "text-embedding-3-small"})
//	store := insightstore.NewMemoryStore()
//	chat, err := nlp.NewOpenAIClient(nlp.LLMConfig{APIKey: apiKey, Model: "gpt-4o-mini"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := medinsight.NewClient(medinsight.Deps{
//		Embedder:  emb,
//		Store:     store,
//		ChatModel: chat,
//	}, nil, slog.Default())
//
// or wire everything from configuration with NewClientFromConfig.
//
// # Insights
//
//	insight, err := client.UpsertInsight(ctx, retrieval.InsightInput{
//		Text:       "Check ferritin before starting iron in post-partum anemia",
//		Category:   "hematology",
//		OwnerScope: "hospital-a",
//		Medication: "Ferrous sulfate",
//		LabTest:    "Ferritin, CBC",
//	})
//
//	matches := client.SearchInsights(ctx, medinsight.SearchRequest{
//		Query: "post-partum anemia",
//		Scope: "hospital-a",
//	})
//
// Matches from other hospitals always carry types.RestrictedSentinel in
// place of their medication and lab-test values.
//
// # Streaming
//
// ExpertChat and DeepResearch write events to a stream.Sink. Use
// stream.NewNDJSONWriter for HTTP responses and stream.Recorder in tests.
// Every stream ends with exactly one done or error event.
//
//	err := client.ExpertChat(ctx, medinsight.ChatRequest{
//		Query:     "fever with thrombocytopenia in monsoon",
//		UserScope: "hospital-a",
//	}, stream.NewNDJSONWriter(os.Stdout))
package medinsight
