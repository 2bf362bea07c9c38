// Package chat implements the streaming chat proxy: transcript validation,
// rate limiting, provider invocation with model fallback, and incremental
// relay of response fragments.
package chat

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/blankpage/blankpage/internal/anthropic"
	"github.com/blankpage/blankpage/internal/config"
	"github.com/blankpage/blankpage/internal/domain"
	"github.com/blankpage/blankpage/internal/ratelimit"
)

// Provider streams a model response for a Messages request.
type Provider interface {
	Stream(ctx context.Context, req anthropic.MessagesRequest) iter.Seq2[string, error]
}

// Service coordinates one conversational exchange: it gates on the rate
// limiter, walks the model fallback chain, and relays text fragments in
// arrival order without buffering.
type Service struct {
	provider    Provider
	limiter     *ratelimit.Limiter
	models      []string
	system      string
	maxTokens   int
	temperature float64
}

// NewService creates a chat service.
func NewService(provider Provider, limiter *ratelimit.Limiter, cfg config.AnthropicConfig, system string) *Service {
	return &Service{
		provider:    provider,
		limiter:     limiter,
		models:      cfg.Models,
		system:      system,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// StreamReply validates the transcript, checks the rate limit for
// clientKey, and streams the model reply as a finite, non-restartable
// sequence of text fragments.
//
// Error behavior: validation and rate-limit failures yield a taxonomy
// error before the provider is contacted. A model-unavailable rejection
// (403/404 class) moves to the next model in the chain. Once at least one
// fragment has been delivered, a stream interruption terminates the
// sequence early with no error — partial content is never retracted.
func (s *Service) StreamReply(ctx context.Context, clientKey string, transcript domain.Transcript) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := transcript.Validate(); err != nil {
			yield("", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}

		if !s.limiter.Allow(clientKey) {
			yield("", ErrRateLimited)
			return
		}

		for i, model := range s.models {
			delivered := false
			var streamErr error

			for frag, err := range s.provider.Stream(ctx, s.request(model, transcript)) {
				if err != nil {
					streamErr = err
					break
				}
				delivered = true
				if !yield(frag, nil) {
					return
				}
			}

			if streamErr == nil {
				return
			}
			if delivered {
				// Partial response already reached the caller; end the
				// sequence rather than raising.
				slog.Error("Stream interrupted after partial delivery", "model", model, "error", streamErr)
				return
			}
			if anthropic.ModelUnavailable(streamErr) && i < len(s.models)-1 {
				slog.Warn("Model unavailable, trying fallback", "model", model, "fallback", s.models[i+1], "error", streamErr)
				continue
			}

			slog.Error("Provider request failed", "model", model, "error", streamErr)
			if anthropic.ModelUnavailable(streamErr) {
				yield("", fmt.Errorf("%w: %v", ErrProviderUnavailable, streamErr))
			} else {
				yield("", fmt.Errorf("%w: %v", ErrProviderFailure, streamErr))
			}
			return
		}
	}
}

func (s *Service) request(model string, transcript domain.Transcript) anthropic.MessagesRequest {
	return anthropic.MessagesRequest{
		Model:       model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		System:      s.system,
		Messages:    transcript,
	}
}
