package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/llms"
)

type stubProvider struct {
	response string
	err      error
}

func (p *stubProvider) Generate(ctx context.Context, messages []llms.Message, opts *llms.GenerateOptions) (string, llms.Usage, error) {
	if p.err != nil {
		return "", llms.Usage{}, p.err
	}
	return p.response, llms.Usage{}, nil
}

func (p *stubProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, opts *llms.GenerateOptions) (<-chan llms.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) ModelName() string { return "stub" }
func (p *stubProvider) Close() error      { return nil }

func TestKeywordClassifier_OnTopic(t *testing.T) {
	c := NewKeywordClassifier(nil)

	for _, message := range []string{
		"What does my policy cover?",
		"I need a quote for cyber insurance",
		"How do I file a CLAIM?",
		"Is D&O coverage right for our startup?",
	} {
		result, err := c.Classify(context.Background(), message)
		require.NoError(t, err)
		assert.True(t, result.Relevant, "expected on-topic: %q", message)
		assert.Equal(t, 1.0, result.Confidence)
	}
}

func TestKeywordClassifier_Miss(t *testing.T) {
	c := NewKeywordClassifier(nil)

	result, err := c.Classify(context.Background(), "Write me a poem about the moon")
	require.NoError(t, err)
	assert.False(t, result.Relevant)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestKeywordClassifier_CustomKeywords(t *testing.T) {
	c := NewKeywordClassifier([]string{"warranty"})

	assert.True(t, c.Matches("does my warranty apply here"))
	assert.False(t, c.Matches("what does my policy cover"))
}

func TestLLMClassifier_ParsesJSON(t *testing.T) {
	cfg := &config.ClassifierConfig{}
	cfg.SetDefaults()

	c := NewLLMClassifier(cfg, &stubProvider{
		response: `{"is_insurance_related": false, "topic": "cooking", "confidence": 0.9, "suggestion": "Ask about coverage instead."}`,
	})

	result, err := c.Classify(context.Background(), "best pasta recipe?")
	require.NoError(t, err)
	assert.False(t, result.Relevant)
	assert.Equal(t, "cooking", result.Topic)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
	assert.NotEmpty(t, result.Suggestion)
}

func TestLLMClassifier_FencedJSON(t *testing.T) {
	cfg := &config.ClassifierConfig{}
	cfg.SetDefaults()

	c := NewLLMClassifier(cfg, &stubProvider{
		response: "```json\n{\"is_insurance_related\": true, \"topic\": \"claims\", \"confidence\": 0.8}\n```",
	})

	result, err := c.Classify(context.Background(), "my warehouse flooded")
	require.NoError(t, err)
	assert.True(t, result.Relevant)
	assert.Equal(t, "claims", result.Topic)
}

func TestLLMClassifier_Error(t *testing.T) {
	cfg := &config.ClassifierConfig{}
	cfg.SetDefaults()

	c := NewLLMClassifier(cfg, &stubProvider{err: errors.New("connection refused")})

	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
}

func TestChain_KeywordFastPath(t *testing.T) {
	// The LLM stub errors; a keyword hit must never reach it.
	chain := NewChain(NewKeywordClassifier(nil), &failingClassifier{})

	result, err := chain.Classify(context.Background(), "I want to update my policy")
	require.NoError(t, err)
	assert.True(t, result.Relevant)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestChain_FailOpen(t *testing.T) {
	chain := NewChain(NewKeywordClassifier(nil), &failingClassifier{})

	result, err := chain.Classify(context.Background(), "tell me a joke")
	require.NoError(t, err)
	assert.True(t, result.Relevant)
	assert.InDelta(t, 0.5, result.Confidence, 0.001)
}

func TestChain_UsesLLMVerdict(t *testing.T) {
	cfg := &config.ClassifierConfig{}
	cfg.SetDefaults()

	llm := NewLLMClassifier(cfg, &stubProvider{
		response: `{"is_insurance_related": false, "topic": "gaming", "confidence": 0.95}`,
	})
	chain := NewChain(NewKeywordClassifier(nil), llm)

	result, err := chain.Classify(context.Background(), "what's the best video game")
	require.NoError(t, err)
	assert.False(t, result.Relevant)
	assert.Equal(t, "gaming", result.Topic)
}

func TestNew_ModeSelection(t *testing.T) {
	kwCfg := &config.ClassifierConfig{Mode: config.ClassifierModeKeyword}
	kwCfg.SetDefaults()
	c, err := New(kwCfg, nil)
	require.NoError(t, err)
	_, ok := c.(*KeywordClassifier)
	assert.True(t, ok)

	llmCfg := &config.ClassifierConfig{}
	llmCfg.SetDefaults()
	_, err = New(llmCfg, nil)
	require.Error(t, err)

	c, err = New(llmCfg, &stubProvider{})
	require.NoError(t, err)
	_, ok = c.(*Chain)
	assert.True(t, ok)
}

type failingClassifier struct{}

func (f *failingClassifier) Classify(ctx context.Context, message string) (Result, error) {
	return Result{}, errors.New("classifier down")
}
