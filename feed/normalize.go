package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// UnknownSymbol is assigned when a payload carries no usable symbol field.
const UnknownSymbol = "UNK"

// UnknownExchange is assigned when a payload carries no exchange label.
const UnknownExchange = "unknown"

// payload is a single decoded upstream message. Upstream producers are
// untrusted and heterogeneous, so everything is sniffed field by field.
type payload map[string]interface{}

// Normalize maps an arbitrary upstream message into a canonical Trade.
//
// raw may be a JSON object, a JSON-encoded string wrapping one, or an
// event-framed message: a two digit numeric envelope prefix followed by a
// JSON array whose first element is the event name and whose second element
// is the actual payload ("42[\"tradeCreated\",{...}]").
//
// The returned bool is false when the message is discarded: any decode
// failure, control messages such as the welcome message, and payloads that
// end up without an identifier, timestamp or symbol. Discarded messages are
// silently ignored; one bad message must not interrupt the feed.
func Normalize(raw []byte) (Trade, bool) {
	p, ok := decodePayload(raw)
	if !ok {
		return Trade{}, false
	}
	if isControlMessage(p) {
		return Trade{}, false
	}

	t := Trade{
		ID:        stringValue(idRules, p, newID),
		Timestamp: int64Value(timestampRules, p, nowMilli),
		Symbol:    stringValue(symbolRules, p, func() string { return UnknownSymbol }),
		Price:     floatValue(priceRules, p),
		Size:      floatValue(sizeRules, p),
		Side:      sideValue(sideRules, p),
		Exchange:  stringValue(exchangeRules, p, func() string { return UnknownExchange }),
	}

	if t.ID == "" || t.Timestamp == 0 || t.Symbol == "" {
		return Trade{}, false
	}
	return t, true
}

// decodePayload turns the wire bytes into a key/value payload, unwrapping the
// event frame envelope and one level of string encoding if present.
func decodePayload(raw []byte) (payload, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}

	if body, ok := stripEventEnvelope(raw); ok {
		raw = body
		if len(raw) == 0 {
			return nil, false
		}
	}

	// A JSON-encoded string wrapping the actual object.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		raw = []byte(s)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return p, true
}

// stripEventEnvelope unwraps messages of the form NN["event",{...}] where NN
// is the two character numeric packet prefix of the event protocol. It
// returns the wrapped payload and whether the envelope was present. A
// present but malformed envelope yields (nil, true) so that decoding fails
// instead of falling through to plain object parsing.
func stripEventEnvelope(raw []byte) ([]byte, bool) {
	if len(raw) < 3 || !isDigit(raw[0]) || !isDigit(raw[1]) || raw[2] != '[' {
		return nil, false
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw[2:], &parts); err != nil || len(parts) < 2 {
		return nil, true
	}
	var event string
	if err := json.Unmarshal(parts[0], &event); err != nil {
		return nil, true
	}
	return parts[1], true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// isControlMessage reports whether the payload is a protocol-level message
// rather than a trade, e.g. the welcome object {type, message, timestamp}
// every producer sends on connect.
func isControlMessage(p payload) bool {
	t, ok := p["type"].(string)
	return ok && t != "trade"
}

// Each canonical field is extracted by an ordered list of rules; the first
// rule that matches wins. Keeping the lists explicit (instead of nested
// presence checks) makes every mapping independently testable.

type stringRule func(p payload) (string, bool)
type int64Rule func(p payload) (int64, bool)
type floatRule func(p payload) (float64, bool)
type sideRule func(p payload) (Side, bool)

var (
	idRules        = []stringRule{stringField("id"), stringField("signature")}
	timestampRules = []int64Rule{millisField("timestamp")}
	symbolRules    = []stringRule{stringField("symbol"), stringField("name")}
	priceRules     = []floatRule{numberField("price"), numberField("sol_amount")}
	sizeRules      = []floatRule{numberField("size"), numberField("token_amount")}
	sideRules      = []sideRule{sideField("side"), buyFlagField("is_buy")}
	exchangeRules  = []stringRule{stringField("exchange")}
)

// stringField matches a non-empty string value, or a number which is
// rendered as text (some feeds send numeric trade ids).
func stringField(key string) stringRule {
	return func(p payload) (string, bool) {
		switch v := p[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}
}

// millisField matches a positive numeric millisecond timestamp, given either
// as a JSON number or a numeric string.
func millisField(key string) int64Rule {
	return func(p payload) (int64, bool) {
		f, ok := asNumber(p[key])
		if !ok || f <= 0 {
			return 0, false
		}
		return int64(f), true
	}
}

// numberField matches a non-negative JSON number or numeric string.
func numberField(key string) floatRule {
	return func(p payload) (float64, bool) {
		f, ok := asNumber(p[key])
		if !ok || f < 0 {
			return 0, false
		}
		return f, true
	}
}

// sideField matches an explicit "buy"/"sell" string value.
func sideField(key string) sideRule {
	return func(p payload) (Side, bool) {
		s, _ := p[key].(string)
		switch Side(s) {
		case Buy, Sell:
			return Side(s), true
		}
		return "", false
	}
}

// buyFlagField matches a boolean buy indicator.
func buyFlagField(key string) sideRule {
	return func(p payload) (Side, bool) {
		b, ok := p[key].(bool)
		if !ok {
			return "", false
		}
		if b {
			return Buy, true
		}
		return Sell, true
	}
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringValue(rules []stringRule, p payload, fallback func() string) string {
	for _, rule := range rules {
		if v, ok := rule(p); ok {
			return v
		}
	}
	return fallback()
}

func int64Value(rules []int64Rule, p payload, fallback func() int64) int64 {
	for _, rule := range rules {
		if v, ok := rule(p); ok {
			return v
		}
	}
	return fallback()
}

func floatValue(rules []floatRule, p payload) float64 {
	for _, rule := range rules {
		if v, ok := rule(p); ok {
			return v
		}
	}
	return 0
}

func sideValue(rules []sideRule, p payload) Side {
	for _, rule := range rules {
		if v, ok := rule(p); ok {
			return v
		}
	}
	return Buy
}

func newID() string { return uuid.NewString() }

func nowMilli() int64 { return time.Now().UnixMilli() }
