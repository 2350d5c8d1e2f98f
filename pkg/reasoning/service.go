// Package reasoning implements the Reasoning Service (spec §4.5, C5):
// composes a prompt from retrieved context plus node snapshot, calls the
// LLM, and parses structured output against a versioned JSON schema,
// retrying once on a parse failure before surfacing ErrorKind.Permanent.
// The service never writes state other than its answer cache.
package reasoning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/adapters/kvcache"
	"github.com/feustey/mcp/pkg/adapters/llm"
	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/retrieval"
)

const cacheName = "reasoning"

// CandidatePeer is one proposed peer to open a channel with.
type CandidatePeer struct {
	Pubkey string  `json:"pubkey"`
	Score  float64 `json:"score"`
}

// Output is the parsed, schema-validated result of a Reason call.
type Output struct {
	Summary               string          `json:"summary"`
	RecommendedFeeRatePPM int64           `json:"recommended_fee_rate_ppm"`
	Confidence            float64         `json:"confidence"`
	CandidatePeers        []CandidatePeer `json:"candidate_peers"`
}

// MaxHitsInPrompt bounds how many retrieved hits are inlined into the
// prompt (spec §4.5 "up to N hits, N from config").
const MaxHitsInPrompt = 8

// Service is the Reasoning Service.
type Service struct {
	LLM      *llm.Client
	KV       *kvcache.Client
	CacheTTL time.Duration
	MaxHits  int
}

// New builds a Service. cacheTTL should be >= the retrieval cache TTL
// (spec §4.5).
func New(l *llm.Client, kv *kvcache.Client, cacheTTL time.Duration, maxHits int) *Service {
	if maxHits <= 0 {
		maxHits = MaxHitsInPrompt
	}
	return &Service{LLM: l, KV: kv, CacheTTL: cacheTTL, MaxHits: maxHits}
}

// Reason runs one reasoning call for task over snapshot and hits.
func (s *Service) Reason(ctx context.Context, snapshot domain.NodeSnapshot, hits []retrieval.Hit, task Task) (Output, error) {
	if len(hits) > s.MaxHits {
		hits = hits[:s.MaxHits]
	}

	fp := fingerprint(snapshot, hits, task)
	key := cacheKey(fp, s.LLM.ModelID(), PromptVersion)
	if cached, hit, err := s.KV.Get(ctx, cacheName, key); err == nil && hit {
		var out Output
		if jsonErr := json.Unmarshal([]byte(cached), &out); jsonErr == nil {
			return out, nil
		}
	}

	prompt := buildPrompt(snapshot, hits, task)

	out, err := s.complete(ctx, task, prompt)
	if err != nil {
		return Output{}, err
	}

	if encoded, err := json.Marshal(out); err == nil {
		_ = s.KV.Set(ctx, key, string(encoded), s.CacheTTL)
	}
	return out, nil
}

func (s *Service) complete(ctx context.Context, task Task, prompt string) (Output, error) {
	text, err := s.LLM.Complete(ctx, llm.CompleteRequest{
		TemplateVersion: PromptVersion,
		Prompt:          prompt,
		MaxTokens:       1024,
		Temperature:     0.2,
	})
	if err != nil {
		return Output{}, err
	}

	out, parseErr := parseOutput(text)
	if parseErr == nil {
		return out, nil
	}

	// one repair retry (spec §4.5)
	text, err = s.LLM.Complete(ctx, llm.CompleteRequest{
		TemplateVersion: PromptVersion,
		Prompt:          prompt + repairInstruction,
		MaxTokens:       1024,
		Temperature:     0,
	})
	if err != nil {
		return Output{}, err
	}
	out, parseErr = parseOutput(text)
	if parseErr != nil {
		return Output{}, mcperr.New(mcperr.Permanent, "reasoning", "output did not parse after repair retry", parseErr)
	}
	return out, nil
}

func parseOutput(text string) (Output, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Output{}, fmt.Errorf("no JSON object found in model output")
	}
	var out Output
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return Output{}, err
	}
	return out, nil
}

func buildPrompt(snapshot domain.NodeSnapshot, hits []retrieval.Hit, task Task) string {
	snapshotJSON, _ := json.Marshal(snapshot)

	var ctxBuilder strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&ctxBuilder, "[%d] (doc=%s ordinal=%d)\n%s\n\n", i+1, h.DocumentID, h.Ordinal, h.Text)
	}
	if ctxBuilder.Len() == 0 {
		ctxBuilder.WriteString("(no context retrieved)")
	}

	tmpl, ok := templates[task]
	if !ok {
		tmpl = templates[TaskDailyReport]
	}
	return fmt.Sprintf(tmpl, string(snapshotJSON), ctxBuilder.String(), outputSchema)
}

func fingerprint(snapshot domain.NodeSnapshot, hits []retrieval.Hit, task Task) string {
	var b strings.Builder
	b.WriteString(snapshot.NodePubkey)
	b.WriteString("\x00")
	b.WriteString(string(task))
	for _, h := range hits {
		b.WriteString("\x00")
		b.WriteString(h.ChunkID)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func cacheKey(fp, modelID, promptVersion string) string {
	return fmt.Sprintf("reasoning:model=%s:prompt_version=%s:fp=%s", modelID, promptVersion, fp)
}
