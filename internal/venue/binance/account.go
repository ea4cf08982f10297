package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

// GetBalance는 계정의 잔고를 조회합니다
func (c *Client) GetBalance(ctx context.Context) ([]domain.Balance, error) {
	const op = "GetBalance"
	resp, err := c.doRequest(ctx, op, http.MethodGet, "/fapi/v2/account", nil, true)
	if err != nil {
		return nil, err
	}

	var acc rawAccount
	if err := json.Unmarshal(resp, &acc); err != nil {
		return nil, venue.ProtocolError(c.name, op, "잔고 데이터 파싱 실패: %w", err)
	}
	return c.normalizeBalances(op, acc)
}

// GetPositions는 열린 포지션을 조회합니다. symbol이 비어 있으면 전체입니다.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]domain.Position, error) {
	const op = "GetPositions"
	params := url.Values{}
	if symbol != "" {
		params.Add("symbol", symbol)
	}

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/fapi/v2/positionRisk", params, true)
	if err != nil {
		return nil, err
	}

	var raws []rawPosition
	if err := json.Unmarshal(resp, &raws); err != nil {
		return nil, venue.ProtocolError(c.name, op, "포지션 데이터 파싱 실패: %w", err)
	}
	return c.normalizePositions(op, raws)
}

// GetTrades는 체결 내역을 조회합니다. 바이낸스는 심볼 없는 조회를 지원하지 않습니다.
func (c *Client) GetTrades(ctx context.Context, q domain.TradeQuery) ([]domain.Trade, error) {
	const op = "GetTrades"
	if q.Symbol == "" {
		return nil, c.invalid(op, errSymbolRequired)
	}

	params := url.Values{}
	params.Add("symbol", q.Symbol)
	if !q.Start.IsZero() {
		params.Add("startTime", strconv.FormatInt(q.Start.UnixMilli(), 10))
	}
	if !q.End.IsZero() {
		params.Add("endTime", strconv.FormatInt(q.End.UnixMilli(), 10))
	}

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/fapi/v1/userTrades", params, true)
	if err != nil {
		return nil, err
	}

	var raws []rawTrade
	if err := json.Unmarshal(resp, &raws); err != nil {
		return nil, venue.ProtocolError(c.name, op, "체결 데이터 파싱 실패: %w", err)
	}
	return c.normalizeTrades(op, raws)
}
