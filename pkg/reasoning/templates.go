package reasoning

// Task selects a versioned prompt template (spec §4.5).
type Task string

const (
	TaskDailyReport           Task = "daily_report"
	TaskFeeRecommendation     Task = "fee_recommendation"
	TaskChannelRecommendation Task = "channel_recommendation"
)

// PromptVersion is the current template revision; it participates in cache
// keys (spec §4.5, §9 "prompt templates... treat as versioned strings
// participating in cache keys").
const PromptVersion = "v1"

// outputSchema is the JSON schema every task's expected output is parsed
// against (spec §4.5 "explicit JSON schema for the expected output").
const outputSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "recommended_fee_rate_ppm": {"type": "integer"},
    "confidence": {"type": "number"},
    "candidate_peers": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "pubkey": {"type": "string"},
          "score": {"type": "number"}
        },
        "required": ["pubkey", "score"]
      }
    }
  }
}`

var templates = map[Task]string{
	TaskDailyReport: `You are assisting a Lightning Network node operator. Summarize the node's
health, liquidity, and routing performance from the snapshot and context
below. Respond as JSON matching the schema.

Node snapshot: %s

Context:
%s

Schema:
%s`,
	TaskFeeRecommendation: `You are recommending a routing fee policy for one Lightning channel.
Consider routing success rate, balance ratio, peer centrality, and
historical revenue from the context. Respond as JSON matching the schema,
setting recommended_fee_rate_ppm and confidence.

Node snapshot: %s

Context:
%s

Schema:
%s`,
	TaskChannelRecommendation: `You are recommending new Lightning channels to open. From the context,
propose candidate peers with a score in [0,1]. Respond as JSON matching the
schema, populating candidate_peers.

Node snapshot: %s

Context:
%s

Schema:
%s`,
}

const repairInstruction = "\n\nYour previous response did not parse as valid JSON matching the schema. Respond again with ONLY the JSON object, no prose."
