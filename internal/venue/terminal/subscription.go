package terminal

import "sync"

// subscriberBuffer는 구독자별 메시지 버퍼 크기입니다. 가득 차면 새 메시지는 버려집니다.
const subscriberBuffer = 64

// Subscription은 특정 종류의 수신 메시지를 받는 수동 구독입니다.
// C는 Unsubscribe나 클라이언트 종료 시 닫힙니다.
// Err로는 재연결 한도 초과 같은 치명적 에러가 최대 한 번 전달됩니다.
type Subscription struct {
	C   <-chan Message
	Err <-chan error

	msgs      chan Message
	errs      chan error
	kinds     map[string]bool // 비어 있으면 모든 종류
	fatalSent bool            // 루프 전용
	client    *Client
	once      sync.Once
}

// Subscribe는 지정한 종류의 메시지 구독을 등록합니다. 종류가 없으면 모든 메시지를 받습니다.
func (c *Client) Subscribe(kinds ...string) *Subscription {
	s := &Subscription{
		msgs:   make(chan Message, subscriberBuffer),
		errs:   make(chan error, 1),
		client: c,
	}
	s.C = s.msgs
	s.Err = s.errs

	if len(kinds) > 0 {
		s.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}

	if !c.post(subscribeReq{sub: s}) {
		close(s.msgs)
	}
	return s
}

// Unsubscribe는 구독을 해제합니다. 여러 번 호출해도 안전합니다.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.post(unsubscribeReq{sub: s})
	})
}

func (s *Subscription) wants(kind string) bool {
	return len(s.kinds) == 0 || s.kinds[kind]
}

func (s *Subscription) deliverFatal(err error) {
	if s.fatalSent {
		return
	}
	s.fatalSent = true
	s.errs <- err
}
