// Package llm defines the model-provider abstraction used for contact
// enrichment, draft generation, reply classification and embeddings.
//
// Two adapters are provided:
//   - OpenAIProvider: chat completions + embeddings over the OpenAI HTTP API
//   - BedrockProvider: Anthropic models via the AWS Bedrock runtime
//
// Every call reports token usage so the cost ledger can meter spend before
// the next operation is admitted.
package llm
