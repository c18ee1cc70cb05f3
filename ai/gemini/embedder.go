// Package gemini provides an embedding backend for Google Gemini using the
// generative-ai-go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/poiesic/kbingest/ai"
)

// DefaultModel is used when the config names no model.
const DefaultModel = "text-embedding-004"

// Embedder implements ai.Embedder with Gemini batch embeddings.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	logger *slog.Logger
}

// Provider implements ai.Provider for Gemini.
type Provider struct {
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider opens a Gemini client authenticated with config.APIKey.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = DefaultModel
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Provider{
		embedder: &Embedder{
			client: client,
			model:  client.EmbeddingModel(config.EmbeddingModel),
			logger: slog.Default().With("component", "gemini-embedder"),
		},
		logger: slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Name returns the backend name.
func (p *Provider) Name() string {
	return ai.BackendGemini
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close closes the underlying client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return p.embedder.client.Close()
}

// EmbedTexts sends all texts in one BatchEmbedContents request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, classifyError(fmt.Errorf("gemini batch embed: %w", err))
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		if emb == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, emb.Values)
	}
	return out, nil
}

// httpCoder is implemented by gax API errors.
type httpCoder interface {
	HTTPCode() int
}

// classifyError marks request errors the API will keep rejecting as permanent.
func classifyError(err error) error {
	code := 0
	var gErr *googleapi.Error
	var coder httpCoder
	switch {
	case errors.As(err, &gErr):
		code = gErr.Code
	case errors.As(err, &coder):
		code = coder.HTTPCode()
	}
	switch code {
	case 400, 401, 403, 404:
		return ai.Permanent(err)
	}
	return err
}
