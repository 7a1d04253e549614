//go:build bedrock

package main

// Pulls in the Bedrock provider (and its aws-sdk-go-v2 dependency) only
// when built with -tags bedrock, matching the provider package's own
// build tag.
import _ "github.com/wayfarer-ai/itinerary/llm/providers/bedrock"
