// Package translate provides the English pre-pass for complaint text.
//
// Reporters often write in Hindi or another regional script. The keyword
// classifiers only understand English, so non-ASCII text is translated
// with Google Cloud Translation before analysis.
//
// Graceful degradation: if the API key is not set, translation is disabled
// and text passes through unchanged.
package translate

import (
	"context"
	"fmt"
	"html"
	"unicode"

	"cloud.google.com/go/translate"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// api is the part of *translate.Client used here.
type api interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	Close() error
}

// Translator wraps the Cloud Translation client.
type Translator struct {
	api api
	log *zap.Logger
}

// New creates a Translator.
//
// Returns nil if apiKey is empty (graceful degradation). Extra client
// options are appended after the API key.
func New(ctx context.Context, apiKey string, log *zap.Logger, opts ...option.ClientOption) (*Translator, error) {
	if apiKey == "" {
		log.Warn("GOOGLE_TRANSLATE_API_KEY not set, translation disabled")
		return nil, nil
	}

	client, err := translate.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create translate client: %w", err)
	}

	log.Info("Translation configured")
	return &Translator{api: client, log: log}, nil
}

// ToEnglish returns text in English. Plain ASCII text is assumed to be
// English already and is returned without an API call.
func (t *Translator) ToEnglish(ctx context.Context, text string) (string, error) {
	if t == nil || isASCII(text) {
		return text, nil
	}

	out, err := t.api.Translate(ctx, []string{text}, language.English, &translate.Options{Format: translate.Text})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("translate: empty response")
	}
	if out[0].Source == language.English {
		return text, nil
	}

	t.log.Debug("Translated complaint text", zap.String("source", out[0].Source.String()))
	return html.UnescapeString(out[0].Text), nil
}

// Close releases the underlying client.
func (t *Translator) Close() error {
	if t == nil {
		return nil
	}
	return t.api.Close()
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
