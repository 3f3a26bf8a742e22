// Package querydex provides an embedded Go client for the querydex
// query orchestration service. It wires the retrieval and generation
// pipelines directly over a Redis-backed fragment index, without going
// through the HTTP API.
//
// Basic usage:
//
//	client, err := querydex.New(ctx,
//	    querydex.WithRedis("localhost:6379", ""),
//	    querydex.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	res, err := client.Search(ctx, "refund policy", querydex.TopK(5))
package querydex
