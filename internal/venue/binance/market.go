package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

// GetMarketData는 심볼 하나의 호가와 24시간 통계를 조회합니다
func (c *Client) GetMarketData(ctx context.Context, symbol string) (*domain.MarketData, error) {
	const op = "GetMarketData"
	if symbol == "" {
		return nil, c.invalid(op, errSymbolRequired)
	}

	params := url.Values{}
	params.Add("symbol", symbol)

	var book rawBookTicker
	if err := c.getJSON(ctx, op, "/fapi/v1/ticker/bookTicker", params, &book); err != nil {
		return nil, err
	}
	var day rawTicker24h
	if err := c.getJSON(ctx, op, "/fapi/v1/ticker/24hr", params, &day); err != nil {
		return nil, err
	}

	md, err := c.normalizeMarketData(op, book, day)
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// GetMarketDataList는 여러 심볼의 시세를 전체 티커 두 번의 호출로 조회합니다.
// 요청한 순서대로 반환합니다.
func (c *Client) GetMarketDataList(ctx context.Context, symbols []string) ([]domain.MarketData, error) {
	const op = "GetMarketDataList"
	if len(symbols) == 0 {
		return nil, nil
	}

	var books []rawBookTicker
	if err := c.getJSON(ctx, op, "/fapi/v1/ticker/bookTicker", nil, &books); err != nil {
		return nil, err
	}
	var days []rawTicker24h
	if err := c.getJSON(ctx, op, "/fapi/v1/ticker/24hr", nil, &days); err != nil {
		return nil, err
	}

	bookBySymbol := make(map[string]rawBookTicker, len(books))
	for _, b := range books {
		bookBySymbol[b.Symbol] = b
	}
	dayBySymbol := make(map[string]rawTicker24h, len(days))
	for _, d := range days {
		dayBySymbol[d.Symbol] = d
	}

	result := make([]domain.MarketData, 0, len(symbols))
	for _, s := range symbols {
		book, ok1 := bookBySymbol[s]
		day, ok2 := dayBySymbol[s]
		if !ok1 || !ok2 {
			return nil, &venue.Error{Kind: venue.KindVenue, Venue: c.name, Op: op, Message: "unknown symbol " + s}
		}
		md, err := c.normalizeMarketData(op, book, day)
		if err != nil {
			return nil, err
		}
		result = append(result, md)
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, params url.Values, v any) error {
	resp, err := c.doRequest(ctx, op, http.MethodGet, endpoint, params, false)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, v); err != nil {
		return venue.ProtocolError(c.name, op, "%s 파싱 실패: %w", endpoint, err)
	}
	return nil
}
