// Package multiapi provides the keyword-routed public API providers
// (weather, news, finance, sports, crypto).
package multiapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

// Endpoints holds the provider base URLs. Zero fields use the public APIs.
type Endpoints struct {
	Wttr        string
	GNews       string
	Spaceflight string
	Yahoo       string
	SportsDB    string
	CoinGecko   string
}

// WithDefaults fills empty endpoints.
func (e Endpoints) WithDefaults() Endpoints {
	def := func(v, d string) string {
		if v == "" {
			return d
		}
		return strings.TrimRight(v, "/")
	}
	return Endpoints{
		Wttr:        def(e.Wttr, "https://wttr.in"),
		GNews:       def(e.GNews, "https://gnews.io/api/v4/search"),
		Spaceflight: def(e.Spaceflight, "https://api.spaceflightnewsapi.net/v4/articles"),
		Yahoo:       def(e.Yahoo, "https://query1.finance.yahoo.com/v7/finance/quote"),
		SportsDB:    def(e.SportsDB, "https://www.thesportsdb.com/api/v1/json/3/searchteams.php"),
		CoinGecko:   def(e.CoinGecko, "https://api.coingecko.com/api/v3/simple/price"),
	}
}

// Weather reads a one-line report from wttr.in.
type Weather struct {
	client   *httpclient.Client
	endpoint string
	location string
}

func NewWeather(client *httpclient.Client, endpoint, location string) *Weather {
	if location == "" {
		location = "Amsterdam"
	}
	return &Weather{client: client, endpoint: endpoint, location: location}
}

func (w *Weather) Name() string { return "weather" }

func (w *Weather) Fetch(ctx context.Context, _ string) (string, error) {
	text, err := w.client.GetText(ctx, w.endpoint+"/"+url.PathEscape(w.location)+"?format=3", nil)
	if err != nil {
		return "", fmt.Errorf("wttr.in: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ports.ErrNoResults
	}
	return "[Weather] " + text, nil
}

// News uses GNews when a token is configured, else Spaceflight News.
type News struct {
	client      *httpclient.Client
	gnews       string
	spaceflight string
	token       string
	topic       string
}

func NewNews(client *httpclient.Client, ep Endpoints, token, topic string) *News {
	if topic == "" {
		topic = "technology"
	}
	return &News{client: client, gnews: ep.GNews, spaceflight: ep.Spaceflight, token: token, topic: topic}
}

func (n *News) Name() string { return "news" }

func (n *News) Fetch(ctx context.Context, _ string) (string, error) {
	if n.token != "" {
		return n.fromGNews(ctx)
	}
	return n.fromSpaceflight(ctx)
}

func (n *News) fromGNews(ctx context.Context) (string, error) {
	params := url.Values{"q": {n.topic}, "lang": {"en"}, "max": {"3"}, "token": {n.token}}
	var resp struct {
		Articles []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"articles"`
	}
	if err := n.client.GetJSON(ctx, n.gnews+"?"+params.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("gnews: %w", err)
	}
	var lines []string
	for _, a := range resp.Articles {
		lines = append(lines, a.Title+" — "+a.URL)
	}
	if len(lines) == 0 {
		return "", ports.ErrNoResults
	}
	return "[News]\n" + strings.Join(lines, "\n"), nil
}

func (n *News) fromSpaceflight(ctx context.Context) (string, error) {
	var resp struct {
		Results []struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
		} `json:"results"`
	}
	if err := n.client.GetJSON(ctx, n.spaceflight+"?limit=3", nil, &resp); err != nil {
		return "", fmt.Errorf("spaceflight news: %w", err)
	}
	items := resp.Results
	if len(items) > 3 {
		items = items[:3]
	}
	var parts []string
	for _, a := range items {
		parts = append(parts, a.Title+": "+a.Summary)
	}
	if len(parts) == 0 {
		return "", ports.ErrNoResults
	}
	return "[News] " + strings.Join(parts, " | "), nil
}

// Finance reads a quote from Yahoo Finance.
type Finance struct {
	client   *httpclient.Client
	endpoint string
	symbol   string
}

func NewFinance(client *httpclient.Client, endpoint, symbol string) *Finance {
	if symbol == "" {
		symbol = "AAPL"
	}
	return &Finance{client: client, endpoint: endpoint, symbol: strings.ToUpper(symbol)}
}

func (f *Finance) Name() string { return "finance" }

func (f *Finance) Fetch(ctx context.Context, _ string) (string, error) {
	var resp struct {
		QuoteResponse struct {
			Result []struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				Currency           string  `json:"currency"`
			} `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := f.client.GetJSON(ctx, f.endpoint+"?symbols="+url.QueryEscape(f.symbol), nil, &resp); err != nil {
		return "", fmt.Errorf("yahoo finance: %w", err)
	}
	if len(resp.QuoteResponse.Result) == 0 || resp.QuoteResponse.Result[0].RegularMarketPrice == 0 {
		return "", ports.ErrNoResults
	}
	q := resp.QuoteResponse.Result[0]
	return strings.TrimSpace(fmt.Sprintf("[Finance] %s: %s %s", f.symbol, formatPrice(q.RegularMarketPrice), q.Currency)), nil
}

// Sports looks up a team on TheSportsDB.
type Sports struct {
	client   *httpclient.Client
	endpoint string
	team     string
}

func NewSports(client *httpclient.Client, endpoint, team string) *Sports {
	if team == "" {
		team = "FC Barcelona"
	}
	return &Sports{client: client, endpoint: endpoint, team: team}
}

func (s *Sports) Name() string { return "sports" }

func (s *Sports) Fetch(ctx context.Context, _ string) (string, error) {
	var resp struct {
		Teams []struct {
			Team    string `json:"strTeam"`
			Country string `json:"strCountry"`
			Stadium string `json:"strStadium"`
		} `json:"teams"`
	}
	if err := s.client.GetJSON(ctx, s.endpoint+"?t="+url.QueryEscape(s.team), nil, &resp); err != nil {
		return "", fmt.Errorf("thesportsdb: %w", err)
	}
	if len(resp.Teams) == 0 {
		return "", ports.ErrNoResults
	}
	t := resp.Teams[0]
	return fmt.Sprintf("[Sports] %s (%s), stadium: %s", t.Team, t.Country, t.Stadium), nil
}

// Crypto reads a USD price from CoinGecko. Queries mentioning eth or
// ethereum ask for ethereum instead of the configured coin.
type Crypto struct {
	client   *httpclient.Client
	endpoint string
	coin     string
}

func NewCrypto(client *httpclient.Client, endpoint, coin string) *Crypto {
	if coin == "" {
		coin = "bitcoin"
	}
	return &Crypto{client: client, endpoint: endpoint, coin: strings.ToLower(coin)}
}

func (c *Crypto) Name() string { return "crypto" }

// CoinFor picks the coin id for a query.
func (c *Crypto) CoinFor(query string) string {
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if w == "eth" || w == "ethereum" {
			return "ethereum"
		}
	}
	return c.coin
}

func (c *Crypto) Fetch(ctx context.Context, query string) (string, error) {
	coin := c.CoinFor(query)
	params := url.Values{"ids": {coin}, "vs_currencies": {"usd"}}
	var resp map[string]map[string]float64
	if err := c.client.GetJSON(ctx, c.endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("coingecko: %w", err)
	}
	price, ok := resp[coin]["usd"]
	if !ok || price == 0 {
		return "", ports.ErrNoResults
	}
	return fmt.Sprintf("[Crypto] %s: $%s", strings.ToUpper(coin), formatPrice(price)), nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	_ ports.APIProvider = (*Weather)(nil)
	_ ports.APIProvider = (*News)(nil)
	_ ports.APIProvider = (*Finance)(nil)
	_ ports.APIProvider = (*Sports)(nil)
	_ ports.APIProvider = (*Crypto)(nil)
)
