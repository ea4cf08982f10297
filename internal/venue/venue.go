// Package venue는 거래 장소(거래소, 브로커 터미널)와의 연결 계층을 정의합니다.
package venue

import (
	"context"

	"github.com/assist-by/venuelink/internal/domain"
)

// Adapter는 모든 거래 장소 구현체가 제공하는 기능 집합입니다.
// 호출 측은 거래 장소 종류에 따라 분기하지 않습니다.
// 모든 메서드는 정규화된 domain 타입을 반환하거나 *Error를 반환합니다.
type Adapter interface {
	// Name은 설정에서 지정한 거래 장소 이름을 반환합니다
	Name() string

	// 계정 데이터 조회
	GetBalance(ctx context.Context) ([]domain.Balance, error)
	GetPositions(ctx context.Context, symbol string) ([]domain.Position, error)
	GetTrades(ctx context.Context, q domain.TradeQuery) ([]domain.Trade, error)

	// 주문 조회 (symbol이 비어 있으면 전체)
	GetOrders(ctx context.Context, symbol string) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// 거래 기능
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, id string) (*domain.Order, error)
	CancelOrders(ctx context.Context, symbol string) error

	// 시장 데이터 조회
	GetMarketData(ctx context.Context, symbol string) (*domain.MarketData, error)
	GetMarketDataList(ctx context.Context, symbols []string) ([]domain.MarketData, error)

	// Close는 어댑터가 가진 자원을 해제합니다
	Close() error
}
