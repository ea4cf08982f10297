package correlation

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_ResolveOnce(t *testing.T) {
	table := NewTable[string]()
	p, reply := NewPending[string]("id-1", "balance")
	require.NoError(t, table.Add(p))
	assert.Equal(t, 1, table.Len())

	assert.True(t, table.Resolve("id-1", "first"))
	assert.False(t, table.Resolve("id-1", "second"), "두 번 정산되면 안 됨")
	assert.False(t, table.Reject("id-1", errors.New("late")))
	assert.Equal(t, 0, table.Len())

	r := <-reply
	assert.Equal(t, "first", r.Value)
	assert.NoError(t, r.Err)
	select {
	case extra := <-reply:
		t.Fatalf("추가 결과가 전달됨: %+v", extra)
	default:
	}
}

func TestTable_DuplicateAndEmptyID(t *testing.T) {
	table := NewTable[int]()
	p1, _ := NewPending[int]("same", "orders")
	p2, _ := NewPending[int]("same", "orders")
	require.NoError(t, table.Add(p1))
	assert.Error(t, table.Add(p2))

	empty, _ := NewPending[int]("", "orders")
	assert.Error(t, table.Add(empty))
}

func TestTable_MatchesByIDNotKind(t *testing.T) {
	table := NewTable[string]()
	btc, btcReply := NewPending[string]("btc", "market_data")
	eth, ethReply := NewPending[string]("eth", "market_data")
	require.NoError(t, table.Add(btc))
	require.NoError(t, table.Add(eth))

	// 응답이 요청 순서와 반대로 도착해도 각자 자기 응답을 받음
	assert.True(t, table.Resolve("eth", "ETHUSDT"))
	assert.True(t, table.Resolve("btc", "BTCUSDT"))

	assert.Equal(t, "BTCUSDT", (<-btcReply).Value)
	assert.Equal(t, "ETHUSDT", (<-ethReply).Value)
}

func TestTable_ResolveKindRequiresSingleCandidate(t *testing.T) {
	table := NewTable[string]()
	a, _ := NewPending[string]("a", "positions")
	b, _ := NewPending[string]("b", "positions")
	require.NoError(t, table.Add(a))
	require.NoError(t, table.Add(b))

	assert.False(t, table.ResolveKind("positions", "ambiguous"))
	assert.False(t, table.ResolveKind("balance", "nobody"))

	require.True(t, table.Reject("a", errors.New("gone")))
	assert.True(t, table.ResolveKind("positions", "only-b"))
	assert.False(t, table.Has("b"))
}

func TestTable_RejectAllStopsTimers(t *testing.T) {
	table := NewTable[string]()
	fired := make(chan struct{}, 2)

	for _, id := range []string{"x", "y"} {
		p, _ := NewPending[string](id, "orders")
		p.SetTimeout(time.AfterFunc(50*time.Millisecond, func() { fired <- struct{}{} }))
		require.NoError(t, table.Add(p))
	}

	assert.Equal(t, 2, table.RejectAll(errors.New("closed")))
	assert.Equal(t, 0, table.Len())

	select {
	case <-fired:
		t.Fatal("정산된 항목의 타이머가 실행됨")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestPending_FailWithoutTable(t *testing.T) {
	p, reply := NewPending[string]("id-x", "balance")
	var fired atomic.Bool
	p.SetTimeout(time.AfterFunc(20*time.Millisecond, func() { fired.Store(true) }))

	p.Fail(errors.New("연결 없음"))
	r := <-reply
	assert.EqualError(t, r.Err, "연결 없음")

	time.Sleep(40 * time.Millisecond)
	assert.False(t, fired.Load(), "Fail은 타이머를 멈춰야 함")
}
