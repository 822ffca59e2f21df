package multiapi

import (
	"github.com/0xcro3dile/contextrag-go/internal/domain/usecases"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/httpclient"
)

// Keyword sets per route. Matching is a substring test on the lowercase
// query; CryptoWords must appear as whole tokens.
var (
	WeatherKeywords = []string{"weer", "weather", "temperatuur"}
	NewsKeywords    = []string{"nieuws", "news", "headline"}
	FinanceKeywords = []string{"aandelen", "stock", "prijs", "price"}
	SportsKeywords  = []string{"voetbal", "soccer", "basketbal", "basketball", "team"}
	CryptoKeywords  = []string{"crypto", "bitcoin", "ethereum"}
	CryptoWords     = []string{"btc", "eth"}
)

// Routes builds the router table from configuration, in merge order.
func Routes(client *httpclient.Client, cfg config.MultiAPIConfig, ep Endpoints) []usecases.Route {
	ep = ep.WithDefaults()
	return []usecases.Route{
		{Name: "weather", Keywords: WeatherKeywords, Provider: NewWeather(client, ep.Wttr, cfg.WeatherLocation)},
		{Name: "news", Keywords: NewsKeywords, Provider: NewNews(client, ep, cfg.GNewsToken, cfg.NewsTopic)},
		{Name: "finance", Keywords: FinanceKeywords, Provider: NewFinance(client, ep.Yahoo, cfg.StockSymbol)},
		{Name: "sports", Keywords: SportsKeywords, Provider: NewSports(client, ep.SportsDB, cfg.SportsTeam)},
		{Name: "crypto", Keywords: CryptoKeywords, Words: CryptoWords, Provider: NewCrypto(client, ep.CoinGecko, cfg.CryptoCoin)},
	}
}
