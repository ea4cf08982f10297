// Package correlation은 공유 연결 위에서 비동기 응답을 요청한 호출과 짝지어 줍니다.
//
// Table은 한 고루틴(소켓 클라이언트의 이벤트 루프)만 사용하도록 설계되어 잠금이 없습니다.
// 대기 항목은 해결, 거부, 타임아웃 중 먼저 일어난 한 번만 정산되고 즉시 삭제됩니다.
package correlation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID는 새로운 상관관계 ID를 생성합니다
func NewID() string {
	return uuid.NewString()
}

// Result는 대기 중인 호출에 전달되는 결과입니다
type Result[T any] struct {
	Value T
	Err   error
}

// Pending은 응답을 기다리는 요청 하나입니다
type Pending[T any] struct {
	ID        string
	Kind      string // 기대하는 응답 종류
	CreatedAt time.Time

	reply   chan Result[T]
	timeout *time.Timer
}

// NewPending은 대기 항목과 결과를 받을 채널을 생성합니다.
// 채널 버퍼가 1이므로 정산하는 쪽은 호출자가 떠났어도 막히지 않습니다.
func NewPending[T any](id, kind string) (*Pending[T], <-chan Result[T]) {
	reply := make(chan Result[T], 1)
	return &Pending[T]{
		ID:        id,
		Kind:      kind,
		CreatedAt: time.Now(),
		reply:     reply,
	}, reply
}

// SetTimeout은 정산 시 정지할 타이머를 연결합니다
func (p *Pending[T]) SetTimeout(timer *time.Timer) {
	p.timeout = timer
}

// Fail은 테이블에 등록되지 않은 항목을 에러로 끝냅니다.
// 등록된 항목에는 Table.Reject를 사용해야 합니다.
func (p *Pending[T]) Fail(err error) {
	if p.timeout != nil {
		p.timeout.Stop()
	}
	p.reply <- Result[T]{Err: err}
}

// Table은 상관관계 ID로 대기 항목을 관리합니다
type Table[T any] struct {
	pending map[string]*Pending[T]
}

// NewTable은 빈 테이블을 생성합니다
func NewTable[T any]() *Table[T] {
	return &Table[T]{pending: make(map[string]*Pending[T])}
}

// Add는 대기 항목을 등록합니다. 같은 ID가 이미 있으면 에러입니다.
func (t *Table[T]) Add(p *Pending[T]) error {
	if p.ID == "" {
		return fmt.Errorf("empty correlation id")
	}
	if _, exists := t.pending[p.ID]; exists {
		return fmt.Errorf("duplicate correlation id %s", p.ID)
	}
	t.pending[p.ID] = p
	return nil
}

// Resolve는 ID가 일치하는 항목을 값으로 정산합니다.
// 이미 정산됐거나 모르는 ID면 false를 반환합니다 (늦게 도착한 응답은 무시).
func (t *Table[T]) Resolve(id string, v T) bool {
	return t.settle(id, Result[T]{Value: v})
}

// Reject는 ID가 일치하는 항목을 에러로 정산합니다
func (t *Table[T]) Reject(id string, err error) bool {
	return t.settle(id, Result[T]{Err: err})
}

// ResolveKind는 해당 종류의 대기 항목이 정확히 하나일 때만 정산합니다.
// 상관관계 ID를 돌려주지 않는 상대와 직렬화 모드로 통신할 때만 사용합니다.
func (t *Table[T]) ResolveKind(kind string, v T) bool {
	var match string
	for id, p := range t.pending {
		if p.Kind != kind {
			continue
		}
		if match != "" {
			return false
		}
		match = id
	}
	if match == "" {
		return false
	}
	return t.Resolve(match, v)
}

// RejectAll은 모든 대기 항목을 에러로 정산하고 개수를 반환합니다
func (t *Table[T]) RejectAll(err error) int {
	n := 0
	for id := range t.pending {
		if t.Reject(id, err) {
			n++
		}
	}
	return n
}

// Has는 ID가 아직 대기 중인지 반환합니다
func (t *Table[T]) Has(id string) bool {
	_, ok := t.pending[id]
	return ok
}

// Len은 대기 항목 수를 반환합니다
func (t *Table[T]) Len() int {
	return len(t.pending)
}

func (t *Table[T]) settle(id string, r Result[T]) bool {
	p, ok := t.pending[id]
	if !ok {
		return false
	}
	delete(t.pending, id)
	if p.timeout != nil {
		p.timeout.Stop()
	}
	p.reply <- r
	return true
}
