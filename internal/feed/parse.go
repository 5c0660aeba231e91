package feed

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// Binance stream event types.
const (
	eventDepthUpdate = "depthUpdate"
	eventTrade       = "trade"
)

// parsed is the tagged union produced by parseMessage. Exactly one of Depth
// and Trade is set when Kind is non-empty.
type parsed struct {
	Kind  string
	Depth domain.DepthUpdate
	Trade domain.TradeEvent
}

// parseMessage decodes one raw frame from the Binance stream. It returns a
// zero parsed (Kind == "") for frames that are not market updates, such as
// subscription confirmations. Any malformed numeric field fails the whole
// message with a ParseError so a partial diff can never be applied.
func parseMessage(data []byte) (parsed, error) {
	msg := gjson.ParseBytes(data)

	// Subscription ack: {"result":null,"id":1}.
	if msg.Get("result").Exists() {
		return parsed{}, nil
	}

	symbol := msg.Get("s").String()
	eventTime := msg.Get("E")
	if symbol == "" || !eventTime.Exists() {
		return parsed{}, nil
	}
	ts := time.UnixMilli(eventTime.Int())

	switch msg.Get("e").String() {
	case eventDepthUpdate:
		bids, err := parseLevels("b", msg.Get("b"))
		if err != nil {
			return parsed{}, err
		}
		asks, err := parseLevels("a", msg.Get("a"))
		if err != nil {
			return parsed{}, err
		}
		return parsed{
			Kind: eventDepthUpdate,
			Depth: domain.DepthUpdate{
				Symbol:     symbol,
				EventTime:  ts,
				BidChanges: bids,
				AskChanges: asks,
			},
		}, nil

	case eventTrade:
		price, err := parseDecimal("p", msg.Get("p").String())
		if err != nil {
			return parsed{}, err
		}
		qty, err := parseDecimal("q", msg.Get("q").String())
		if err != nil {
			return parsed{}, err
		}
		return parsed{
			Kind: eventTrade,
			Trade: domain.TradeEvent{
				Symbol:    symbol,
				Price:     price,
				Quantity:  qty,
				EventTime: ts,
			},
		}, nil
	}

	return parsed{}, nil
}

// parseLevels decodes a [["price","qty"],...] array.
func parseLevels(field string, arr gjson.Result) ([]domain.PriceLevel, error) {
	raw := arr.Array()
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		pair := entry.Array()
		if len(pair) < 2 {
			return nil, &domain.ParseError{Field: field, Value: entry.Raw, Err: errShortLevel}
		}
		price, err := parseDecimal(field+".price", pair[0].String())
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimal(field+".qty", pair[1].String())
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// parseDecimal parses a Binance decimal string strictly; "" and garbage both
// surface as ParseError.
func parseDecimal(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.ParseError{Field: field, Value: s, Err: err}
	}
	return v, nil
}
