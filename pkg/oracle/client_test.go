package oracle

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientOptions(t *testing.T) {
	t.Parallel()

	c := NewClient("sk-test", "claude-haiku-4-5-20251001",
		WithMaxTokens(4096),
		WithRateLimit(0.5),
	)
	sc, ok := c.(*sdkClient)
	require.True(t, ok)

	assert.Equal(t, int64(4096), sc.maxTokens)
	assert.Equal(t, 0.5, float64(sc.limiter.Limit()))
}

func TestNewClientIgnoresInvalidOptions(t *testing.T) {
	t.Parallel()

	c := NewClient("sk-test", "claude-haiku-4-5-20251001",
		WithMaxTokens(0),
		WithRateLimit(-1),
	)
	sc := c.(*sdkClient)

	assert.Equal(t, int64(defaultMaxTokens), sc.maxTokens)
	assert.Equal(t, defaultRPS, float64(sc.limiter.Limit()))
}

func TestCollectText(t *testing.T) {
	t.Parallel()

	assert.Empty(t, collectText(nil))
	assert.Empty(t, collectText(&sdk.Message{}))

	msg := &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Text: "first"},
			{Text: ""},
			{Text: "second"},
		},
	}
	assert.Equal(t, "first\nsecond", collectText(msg))
}
