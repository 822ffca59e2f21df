package multiapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/domain/usecases"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

func testClient() *httpclient.Client {
	return httpclient.New(httpclient.Options{
		Timeout: 5 * time.Second,
		Retry:   config.RetryPolicy{Attempts: 1, Delay: "1ms", MaxDelay: "1ms"},
	})
}

func fakeAPIs(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wttr/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("format"))
		w.Write([]byte("Amsterdam: ⛅️  +12°C\n"))
	})
	mux.HandleFunc("/gnews", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"articles": []map[string]interface{}{{"title": "Go 2", "url": "https://n/1"}},
		})
	})
	mux.HandleFunc("/spaceflight", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Launch", "summary": "A rocket"},
				{"title": "Dock", "summary": "A capsule"},
			},
		})
	})
	mux.HandleFunc("/yahoo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"quoteResponse": map[string]interface{}{"result": []map[string]interface{}{
				{"regularMarketPrice": 187.5, "currency": "USD"},
			}},
		})
	})
	mux.HandleFunc("/sportsdb", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"teams": []map[string]interface{}{{"strTeam": "Barcelona", "strCountry": "Spain", "strStadium": "Camp Nou"}},
		})
	})
	mux.HandleFunc("/coingecko", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("ids")
		json.NewEncoder(w).Encode(map[string]interface{}{id: map[string]interface{}{"usd": 100.25}})
	})
	return httptest.NewServer(mux)
}

func endpoints(base string) Endpoints {
	return Endpoints{
		Wttr:        base + "/wttr",
		GNews:       base + "/gnews",
		Spaceflight: base + "/spaceflight",
		Yahoo:       base + "/yahoo",
		SportsDB:    base + "/sportsdb",
		CoinGecko:   base + "/coingecko",
	}
}

func TestProviders(t *testing.T) {
	server := fakeAPIs(t)
	defer server.Close()
	ep := endpoints(server.URL)
	ctx := context.Background()
	c := testClient()

	got, err := NewWeather(c, ep.Wttr, "").Fetch(ctx, "weather")
	require.NoError(t, err)
	assert.Equal(t, "[Weather] Amsterdam: ⛅️  +12°C", got)

	got, err = NewNews(c, ep, "tok", "").Fetch(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "[News]\nGo 2 — https://n/1", got)

	got, err = NewNews(c, ep, "", "").Fetch(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "[News] Launch: A rocket | Dock: A capsule", got)

	got, err = NewFinance(c, ep.Yahoo, "aapl").Fetch(ctx, "stock")
	require.NoError(t, err)
	assert.Equal(t, "[Finance] AAPL: 187.5 USD", got)

	got, err = NewSports(c, ep.SportsDB, "").Fetch(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, "[Sports] Barcelona (Spain), stadium: Camp Nou", got)

	got, err = NewCrypto(c, ep.CoinGecko, "").Fetch(ctx, "bitcoin price")
	require.NoError(t, err)
	assert.Equal(t, "[Crypto] BITCOIN: $100.25", got)

	got, err = NewCrypto(c, ep.CoinGecko, "").Fetch(ctx, "what is ETH doing")
	require.NoError(t, err)
	assert.Equal(t, "[Crypto] ETHEREUM: $100.25", got)
}

func TestCrypto_CoinFor(t *testing.T) {
	c := NewCrypto(nil, "", "Solana")
	assert.Equal(t, "solana", c.CoinFor("crypto prices"))
	assert.Equal(t, "ethereum", c.CoinFor("ethereum today"))
	assert.Equal(t, "solana", c.CoinFor("method"))
}

func TestProviders_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()
	ctx := context.Background()

	_, err := NewSports(testClient(), server.URL, "").Fetch(ctx, "team")
	assert.ErrorIs(t, err, ports.ErrNoResults)

	_, err = NewFinance(testClient(), server.URL, "").Fetch(ctx, "stock")
	assert.ErrorIs(t, err, ports.ErrNoResults)
}

func TestRoutes_KeywordRouting(t *testing.T) {
	server := fakeAPIs(t)
	defer server.Close()

	router := usecases.NewRouter(nil, Routes(testClient(), config.Default().MultiAPI, endpoints(server.URL))...)

	names := func(q string) []string {
		var out []string
		for _, r := range router.Match(q) {
			out = append(out, r.Name)
		}
		return out
	}
	assert.Equal(t, []string{"weather"}, names("Wat is het weer?"))
	assert.Equal(t, []string{"finance", "crypto"}, names("bitcoin price"))
	assert.Empty(t, names("hello there"))
	assert.Equal(t, []string{"crypto"}, names("ETH vs btc?"))
	for _, q := range []string{"something else", "whether or not", "which method", "together"} {
		assert.Empty(t, names(q), q)
	}

	got := router.Collect(context.Background(), "weather and football team news")
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "[Weather]")
	assert.Contains(t, got[1], "[News]")
	assert.Contains(t, got[2], "[Sports]")
}
