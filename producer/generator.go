package producer

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Schema selects the payload shape the generator emits. Deployments differ:
// the native demo feed uses the flat trade schema, third-party token feeds
// use the alternate domain schema.
type Schema string

const (
	SchemaNative Schema = "native"
	SchemaToken  Schema = "token"
)

// welcomeMessage is sent once, immediately after a connection is accepted.
type welcomeMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// nativeTrade is the generator's own schema.
type nativeTrade struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Side      string  `json:"side"`
	Exchange  string  `json:"exchange"`
}

// tokenTrade is the alternate domain schema used by token launch feeds.
type tokenTrade struct {
	Signature    string  `json:"signature"`
	Timestamp    int64   `json:"timestamp"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	SolAmount    float64 `json:"sol_amount"`
	TokenAmount  float64 `json:"token_amount"`
	USDMarketCap float64 `json:"usd_market_cap"`
	MarketCap    float64 `json:"market_cap"`
	IsBuy        bool    `json:"is_buy"`
	User         string  `json:"user"`
	Creator      string  `json:"creator"`
	NSFW         bool    `json:"nsfw"`
}

var nativeSymbols = []struct {
	symbol string
	base   float64
}{
	{"BTC/USD", 64000},
	{"ETH/USD", 3400},
	{"SOL/USD", 150},
	{"DOGE/USD", 0.12},
	{"AVAX/USD", 36},
}

var nativeExchanges = []string{"demo", "binance", "coinbase", "kraken"}

var tokenListings = []struct {
	name   string
	symbol string
	base   float64
}{
	{"Dogwifhat", "WIF", 2.4},
	{"Bonk", "BONK", 0.000021},
	{"Popcat", "POPCAT", 0.83},
	{"Moo Deng", "MOODENG", 0.19},
}

// Generator produces the synthetic messages a feed connection emits: one
// welcome object followed by trades. Prices follow a per-symbol random walk;
// decimal keeps the walk from accumulating float drift.
type Generator struct {
	rnd    *rand.Rand
	schema Schema
	prices map[string]decimal.Decimal
}

// NewGenerator returns a generator emitting the given schema. seed makes the
// stream reproducible in tests.
func NewGenerator(schema Schema, seed int64) *Generator {
	return &Generator{
		rnd:    rand.New(rand.NewSource(seed)),
		schema: schema,
		prices: make(map[string]decimal.Decimal),
	}
}

// Welcome returns the JSON welcome object {type, message, timestamp}.
func (g *Generator) Welcome() ([]byte, error) {
	return json.Marshal(welcomeMessage{
		Type:      "welcome",
		Message:   "connected to trade feed",
		Timestamp: time.Now().UnixMilli(),
	})
}

// Next returns the next synthetic trade payload as JSON.
func (g *Generator) Next() ([]byte, error) {
	if g.schema == SchemaToken {
		return json.Marshal(g.nextToken())
	}
	return json.Marshal(g.nextNative())
}

func (g *Generator) nextNative() nativeTrade {
	s := nativeSymbols[g.rnd.Intn(len(nativeSymbols))]
	side := "buy"
	if g.rnd.Intn(2) == 0 {
		side = "sell"
	}
	return nativeTrade{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Symbol:    s.symbol,
		Price:     g.walk(s.symbol, s.base, 8),
		Size:      round(g.rnd.Float64()*5, 4),
		Side:      side,
		Exchange:  nativeExchanges[g.rnd.Intn(len(nativeExchanges))],
	}
}

func (g *Generator) nextToken() tokenTrade {
	l := tokenListings[g.rnd.Intn(len(tokenListings))]
	sol := round(g.rnd.Float64()*10, 4)
	price := g.walk(l.symbol, l.base, 8)
	marketCap := round(price*1e9, 2)
	return tokenTrade{
		Signature:    uuid.NewString(),
		Timestamp:    time.Now().UnixMilli(),
		Name:         l.name,
		Symbol:       l.symbol,
		SolAmount:    sol,
		TokenAmount:  round(sol/price, 2),
		USDMarketCap: marketCap,
		MarketCap:    marketCap,
		IsBuy:        g.rnd.Intn(2) == 0,
		User:         uuid.NewString(),
		Creator:      uuid.NewString(),
		NSFW:         false,
	}
}

// walk advances the per-symbol price by a step of at most ±1%.
func (g *Generator) walk(symbol string, base float64, places int32) float64 {
	last, ok := g.prices[symbol]
	if !ok {
		last = decimal.NewFromFloat(base)
	}
	step := last.Mul(decimal.NewFromFloat((g.rnd.Float64() - 0.5) * 0.02))
	next := last.Add(step)
	if !next.IsPositive() {
		next = last
	}
	next = next.Round(places)
	g.prices[symbol] = next
	f, _ := next.Float64()
	return f
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
