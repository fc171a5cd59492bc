package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectByModelName(t *testing.T) {
	assert.IsType(t, &GeminiEmbedder{}, Select(nil, "gemini-embedding-exp"))
	assert.IsType(t, &GeminiEmbedder{}, Select(nil, "models/embedding-001"))
	assert.IsType(t, &OpenAIEmbedder{}, Select(nil, "text-embedding-3-small"))
}
