package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

// execute는 한 거래 장소에 대해 조회 명령을 실행하고 결과를 로그로 남깁니다
func execute(ctx context.Context, log *logrus.Entry, a venue.Adapter, cmd, symbol string, symbols []string) error {
	switch cmd {
	case "balance":
		balances, err := a.GetBalance(ctx)
		if err != nil {
			return err
		}
		for _, b := range balances {
			log.WithFields(logrus.Fields{
				"currency":     b.Currency,
				"available":    b.Available.String(),
				"frozen":       b.Frozen.String(),
				"total":        b.Total.String(),
				"inconsistent": b.Inconsistent,
			}).Info("잔고")
		}

	case "positions":
		positions, err := a.GetPositions(ctx, symbol)
		if err != nil {
			return err
		}
		if len(positions) == 0 {
			log.Info("열린 포지션 없음")
		}
		for _, p := range positions {
			log.WithFields(logrus.Fields{
				"symbol":         p.Symbol,
				"side":           p.Side,
				"amount":         p.Amount.String(),
				"entry_price":    p.EntryPrice.String(),
				"leverage":       p.Leverage.String(),
				"unrealized_pnl": p.UnrealizedPnL.String(),
			}).Info("포지션")
		}

	case "orders":
		orders, err := a.GetOrders(ctx, symbol)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			log.Info("미체결 주문 없음")
		}
		for _, o := range orders {
			logOrder(log, o)
		}

	case "trades":
		trades, err := a.GetTrades(ctx, domain.TradeQuery{
			Symbol: symbol,
			Start:  time.Now().Add(-24 * time.Hour),
		})
		if err != nil {
			return err
		}
		for _, tr := range trades {
			log.WithFields(logrus.Fields{
				"id":     tr.ID,
				"order":  tr.OrderID,
				"symbol": tr.Symbol,
				"side":   tr.Side,
				"price":  tr.Price.String(),
				"amount": tr.Amount.String(),
				"fee":    tr.Fee.String(),
			}).Info("체결")
		}

	case "ticker":
		md, err := a.GetMarketData(ctx, symbol)
		if err != nil {
			return err
		}
		logMarketData(log, *md)

	case "tickers":
		list, err := a.GetMarketDataList(ctx, symbols)
		if err != nil {
			return err
		}
		for _, md := range list {
			logMarketData(log, md)
		}

	default:
		return fmt.Errorf("알 수 없는 명령: %s", cmd)
	}
	return nil
}

func logOrder(log *logrus.Entry, o domain.Order) {
	fields := logrus.Fields{
		"id":     o.ID,
		"symbol": o.Symbol,
		"type":   o.Type,
		"side":   o.Side,
		"amount": o.Amount.String(),
		"filled": o.Filled.String(),
		"status": o.Status,
	}
	if o.Price != nil {
		fields["price"] = o.Price.String()
	}
	log.WithFields(fields).Info("주문")
}

func logMarketData(log *logrus.Entry, md domain.MarketData) {
	log.WithFields(logrus.Fields{
		"symbol": md.Symbol,
		"bid":    md.Bid.String(),
		"ask":    md.Ask.String(),
		"last":   md.Last.String(),
		"volume": md.Volume.String(),
	}).Info("시세")
}
