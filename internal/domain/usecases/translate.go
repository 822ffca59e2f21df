package usecases

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

// TranslationChain tries translators in order.
type TranslationChain struct {
	translators []ports.Translator
	logger      *zap.Logger
}

// NewTranslationChain creates a chain over translators, tried in the given order.
func NewTranslationChain(logger *zap.Logger, translators ...ports.Translator) *TranslationChain {
	return &TranslationChain{
		translators: translators,
		logger:      nopIfNil(logger).Named("translate"),
	}
}

// Translate returns the first non-empty result that differs from text.
// ok is false when no translator produced one; text is then returned as is.
func (c *TranslationChain) Translate(ctx context.Context, text, target string) (string, bool) {
	if c == nil || strings.TrimSpace(text) == "" || target == "" {
		return text, false
	}
	for _, t := range c.translators {
		out, err := t.Translate(ctx, text, target)
		if err != nil {
			c.logger.Debug("translator failed", zap.String("translator", t.Name()), zap.Error(err))
			continue
		}
		out = strings.TrimSpace(out)
		if out == "" || out == strings.TrimSpace(text) {
			continue
		}
		c.logger.Debug("translated", zap.String("translator", t.Name()), zap.String("target", target))
		return out, true
	}
	return text, false
}

// Len reports how many translators are configured.
func (c *TranslationChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.translators)
}
