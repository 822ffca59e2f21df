// Package translate provides translation adapters. The usecases
// TranslationChain tries them in order.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

var errEmpty = errors.New("empty translation")

// DeepL calls the DeepL v2 API.
type DeepL struct {
	client   *httpclient.Client
	key      string
	endpoint string
}

func NewDeepL(client *httpclient.Client, key, endpoint string) *DeepL {
	if endpoint == "" {
		endpoint = "https://api-free.deepl.com/v2/translate"
	}
	return &DeepL{client: client, key: key, endpoint: endpoint}
}

func (d *DeepL) Name() string { return "deepl" }

func (d *DeepL) Translate(ctx context.Context, text, target string) (string, error) {
	if d.key == "" {
		return "", ports.ErrMissingKey
	}
	form := url.Values{
		"auth_key":    {d.key},
		"text":        {text},
		"target_lang": {strings.ToUpper(target)},
	}
	var resp struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := d.client.PostForm(ctx, d.endpoint, nil, form, &resp); err != nil {
		return "", fmt.Errorf("deepl: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", errEmpty
	}
	return nonEmpty(resp.Translations[0].Text)
}

// Libre calls a LibreTranslate instance.
type Libre struct {
	client   *httpclient.Client
	endpoint string
	key      string
}

func NewLibre(client *httpclient.Client, endpoint, key string) *Libre {
	if endpoint == "" {
		endpoint = "https://libretranslate.com/translate"
	}
	return &Libre{client: client, endpoint: endpoint, key: key}
}

func (l *Libre) Name() string { return "libretranslate" }

func (l *Libre) Translate(ctx context.Context, text, target string) (string, error) {
	in := map[string]string{
		"q":      text,
		"source": "auto",
		"target": strings.ToLower(target),
		"format": "text",
	}
	if l.key != "" {
		in["api_key"] = l.key
	}
	var resp struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := l.client.PostJSON(ctx, l.endpoint, nil, in, &resp); err != nil {
		return "", fmt.Errorf("libretranslate: %w", err)
	}
	return nonEmpty(resp.TranslatedText)
}

// Lingva calls a Lingva Translate frontend.
type Lingva struct {
	client  *httpclient.Client
	baseURL string
}

func NewLingva(client *httpclient.Client, baseURL string) *Lingva {
	if baseURL == "" {
		baseURL = "https://lingva.ml"
	}
	return &Lingva{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *Lingva) Name() string { return "lingva" }

func (l *Lingva) Translate(ctx context.Context, text, target string) (string, error) {
	u := fmt.Sprintf("%s/api/v1/auto/%s/%s", l.baseURL, url.PathEscape(strings.ToLower(target)), url.PathEscape(text))
	var resp struct {
		Translation string `json:"translation"`
	}
	if err := l.client.GetJSON(ctx, u, nil, &resp); err != nil {
		return "", fmt.Errorf("lingva: %w", err)
	}
	return nonEmpty(resp.Translation)
}

// MyMemory calls the MyMemory public API.
type MyMemory struct {
	client   *httpclient.Client
	endpoint string
}

func NewMyMemory(client *httpclient.Client, endpoint string) *MyMemory {
	if endpoint == "" {
		endpoint = "https://api.mymemory.translated.net/get"
	}
	return &MyMemory{client: client, endpoint: endpoint}
}

func (m *MyMemory) Name() string { return "mymemory" }

func (m *MyMemory) Translate(ctx context.Context, text, target string) (string, error) {
	params := url.Values{"q": {text}, "langpair": {"auto|" + strings.ToLower(target)}}
	var resp struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := m.client.GetJSON(ctx, m.endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("mymemory: %w", err)
	}
	return nonEmpty(resp.ResponseData.TranslatedText)
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errEmpty
	}
	return s, nil
}

var (
	_ ports.Translator = (*DeepL)(nil)
	_ ports.Translator = (*Libre)(nil)
	_ ports.Translator = (*Lingva)(nil)
	_ ports.Translator = (*MyMemory)(nil)
)
