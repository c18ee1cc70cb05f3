package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/poiesic/kbingest/ai"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{name: "bad request", err: &googleapi.Error{Code: 400}, permanent: true},
		{name: "forbidden wrapped", err: fmt.Errorf("gemini batch embed: %w", &googleapi.Error{Code: 403}), permanent: true},
		{name: "rate limited", err: &googleapi.Error{Code: 429}},
		{name: "unavailable", err: &googleapi.Error{Code: 503}},
		{name: "plain error", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.permanent, ai.IsPermanent(classifyError(tt.err)))
		})
	}
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	cfg := ai.NewConfig(ai.WithBackend(ai.BackendGemini), ai.WithAPIKey(""))
	_, err := NewProvider(context.Background(), cfg)
	assert.Error(t, err)
}
