package synthesizer

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func leadState() *models.WorkflowState {
	state := models.NewWorkflowState(fixedNow)
	state.Blocks["starter_1"] = blocks.NewBlock("starter_1", "starter", "Lead Capture", 100, 100, map[string]any{
		"startWorkflow": "webhook",
	})
	state.Blocks["agent_1"] = blocks.NewBlock("agent_1", "agent", "Lead Qualifier", 350, 100, map[string]any{
		"model":        "gpt-4",
		"systemPrompt": "Score each lead for sales readiness.",
	})
	state.Blocks["tool_1"] = blocks.NewBlock("tool_1", "tool", "CRM Sync", 600, 100, map[string]any{
		"toolType": "crm",
	})
	state.Edges = []models.Edge{
		models.NewEdge("starter_1", "agent_1"),
		models.NewEdge("agent_1", "tool_1"),
	}

	return &state
}

func newLRU(t *testing.T) *LRUCache {
	t.Helper()

	cache, err := NewLRUCache(8)
	require.NoError(t, err)

	return cache
}

func TestClassifier_LLMReply(t *testing.T) {
	tests := []struct {
		reply    string
		expected models.Pattern
	}{
		{"  Trading_Bot\n", models.PatternTradingBot},
		{"customer_support", models.PatternCustomerSupport},
		{"I think this is a lead generation workflow", models.PatternUnknown},
		{"notification_system", models.PatternUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			client := &fakeClient{replies: []string{tt.reply}}
			classifier := NewClassifier(newTestSynthesizer(client), nil, discardLogger())

			pattern := classifier.Classify(context.Background(), leadState())

			assert.Equal(t, tt.expected, pattern)
			assert.True(t, pattern == models.PatternUnknown || slices.Contains(models.Patterns, pattern))

			require.Len(t, client.calls, 1)
			assert.Equal(t, int64(50), client.calls[0].MaxTokens)
			assert.Equal(t, anthropic.Float(0), client.calls[0].Temperature)
		})
	}
}

func TestClassifier_FallsBackToHeuristic(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	classifier := NewClassifier(newTestSynthesizer(client), nil, discardLogger())

	assert.Equal(t, models.PatternLeadGeneration, classifier.Classify(context.Background(), leadState()))

	offline := NewClassifier(newTestSynthesizer(nil), nil, discardLogger())
	assert.Equal(t, models.PatternLeadGeneration, offline.Classify(context.Background(), leadState()))
}

func TestClassifier_UsesTemplatePattern(t *testing.T) {
	client := &fakeClient{replies: []string{"data_pipeline"}}
	classifier := NewClassifier(newTestSynthesizer(client), nil, discardLogger())

	state := leadState()
	state.Metadata.Pattern = "trading_bot"

	assert.Equal(t, models.PatternTradingBot, classifier.Classify(context.Background(), state))
	assert.Zero(t, client.callCount())
}

func TestClassifier_CachesByFingerprint(t *testing.T) {
	client := &fakeClient{replies: []string{"lead_generation"}}
	cache := newLRU(t)
	classifier := NewClassifier(newTestSynthesizer(client), cache, discardLogger())

	first := leadState()
	second := leadState()
	second.Metadata.UpdatedAt = "2025-07-01T00:00:00.000Z"

	assert.Equal(t, models.PatternLeadGeneration, classifier.Classify(context.Background(), first))
	assert.Equal(t, models.PatternLeadGeneration, classifier.Classify(context.Background(), second))
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, 1, cache.Len())

	changed := leadState()
	changed.Blocks["agent_1"].Name = "Renamed"

	classifier.Classify(context.Background(), changed)
	assert.Equal(t, 2, client.callCount())
}

func TestClassifier_DoesNotCacheFallback(t *testing.T) {
	client := &fakeClient{err: errors.New("rate limited"), replies: []string{"customer_support"}}
	cache := newLRU(t)
	classifier := NewClassifier(newTestSynthesizer(client), cache, discardLogger())

	assert.Equal(t, models.PatternLeadGeneration, classifier.Classify(context.Background(), leadState()))
	assert.Zero(t, cache.Len())

	client.mu.Lock()
	client.err = nil
	client.mu.Unlock()

	assert.Equal(t, models.PatternCustomerSupport, classifier.Classify(context.Background(), leadState()))
	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, 1, cache.Len())

	offline := NewClassifier(newTestSynthesizer(nil), cache, discardLogger())
	changed := leadState()
	changed.Blocks["agent_1"].Name = "Renamed"

	offline.Classify(context.Background(), changed)
	assert.Equal(t, 1, cache.Len())
}

func TestFingerprint_IgnoresMetadata(t *testing.T) {
	a, err := Fingerprint(leadState())
	require.NoError(t, err)

	state := leadState()
	state.Metadata.CreatedAt = "2020-01-01T00:00:00.000Z"

	b, err := Fingerprint(state)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestClassifyHeuristically(t *testing.T) {
	assert.Equal(t, models.PatternLeadGeneration, ClassifyHeuristically(leadState()))

	empty := models.NewWorkflowState(fixedNow)
	assert.Equal(t, models.PatternUnknown, ClassifyHeuristically(&empty))

	support := models.NewWorkflowState(fixedNow)
	support.Blocks["agent_1"] = blocks.NewBlock("agent_1", "agent", "Ticket Triage", 0, 0, map[string]any{
		"systemPrompt": "Classify the customer ticket and decide whether to escalate.",
	})
	assert.Equal(t, models.PatternCustomerSupport, ClassifyHeuristically(&support))

	web3 := models.NewWorkflowState(fixedNow)
	web3.Variables["CONTRACT_ADDRESS"] = "0xabc"
	web3.Variables["CHAIN_ID"] = 1
	assert.Equal(t, models.PatternWeb3Automation, ClassifyHeuristically(&web3))
}

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	cache, err := NewRedisCacheFromURL(ctx, "redis://"+endpoint+"/0", time.Minute, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	cache.Set(ctx, "abc", models.PatternDataPipeline)

	pattern, ok := cache.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, models.PatternDataPipeline, pattern)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	ttl, err := client.TTL(ctx, redisKeyPrefix+"abc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	cache := NewRedisCache(client, 0, discardLogger())
	t.Cleanup(func() { _ = cache.Close() })

	cache.Set(context.Background(), "abc", models.PatternTradingBot)

	_, ok := cache.Get(context.Background(), "abc")
	assert.False(t, ok)
}
