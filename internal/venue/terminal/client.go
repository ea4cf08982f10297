// Package terminal은 줄 단위 JSON 소켓 프로토콜로 브로커 터미널과 통신하는 어댑터입니다.
//
// 연결, 상태, 재연결 카운터, 대기 요청 테이블, 구독자 목록은 모두 이벤트 루프 고루틴 하나가 소유합니다.
// 읽기 고루틴과 다이얼 고루틴, 타이머는 결과를 이벤트로 루프에 넘길 뿐 상태를 직접 건드리지 않습니다.
package terminal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/assist-by/venuelink/internal/correlation"
	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/logger"
	"github.com/assist-by/venuelink/internal/venue"
)

// ConnectionState는 소켓 연결 상태입니다
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

// String은 상태 이름을 반환합니다
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dialer는 터미널 연결을 여는 인터페이스입니다. 기본값은 net.Dialer입니다.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

var errClosed = errors.New("client closed")

// Client는 브로커 터미널 소켓 클라이언트입니다
type Client struct {
	name              string
	addr              string
	creds             domain.Credentials
	dialer            Dialer
	reconnectInterval time.Duration
	maxAttempts       int
	queryTimeout      time.Duration
	writeTimeout      time.Duration
	loginTimeout      time.Duration
	serialized        bool
	log               *logrus.Entry

	state    atomic.Int32 // 루프가 게시하는 스냅샷
	started  atomic.Bool
	calls    chan *call
	events   chan any
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// 직렬화 모드에서 응답 종류별로 하나의 요청만 진행
	kindLocks map[string]*sync.Mutex

	// 이하 이벤트 루프 전용
	runCtx         context.Context
	conn           net.Conn
	connGen        uint64
	dialGen        uint64
	dialCancel     context.CancelFunc
	loginID        string
	loginTimer     *time.Timer
	reconnectTimer *time.Timer
	attempts       int
	lastErr        *venue.Error
	fatal          *venue.Error
	table          *correlation.Table[Message]
	subs           map[*Subscription]struct{}
	waiters        []chan error
	dropLog        *rate.Limiter
}

// call은 호출자가 루프에 넘기는 요청입니다
type call struct {
	op      string
	req     request
	pending *correlation.Pending[Message]
}

// 루프 이벤트
type (
	dialResult struct {
		gen  uint64
		conn net.Conn
		err  error
	}
	lineRead struct {
		gen  uint64
		line []byte
	}
	readFailed struct {
		gen uint64
		err error
	}
	queryExpired struct{ id string }
	loginExpired struct{ gen uint64 }
	reconnectDue struct{}
	queryCancelled struct {
		id  string
		err error
	}
	subscribeReq   struct{ sub *Subscription }
	unsubscribeReq struct{ sub *Subscription }
	waitReq        struct{ reply chan error }
	probe          struct {
		fn   func()
		done chan struct{}
	}
)

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithName은 로그와 에러에 쓰일 거래 장소 이름을 설정합니다
func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
	}
}

// WithAddr은 터미널 주소(host:port)를 설정합니다
func WithAddr(addr string) ClientOption {
	return func(c *Client) {
		c.addr = addr
	}
}

// WithDialer는 연결에 사용할 Dialer를 설정합니다
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithReconnect는 재연결 간격과 최대 시도 횟수를 설정합니다
func WithReconnect(interval time.Duration, maxAttempts int) ClientOption {
	return func(c *Client) {
		c.reconnectInterval = interval
		c.maxAttempts = maxAttempts
	}
}

// WithQueryTimeout은 응답 대기 시간을 설정합니다
func WithQueryTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.queryTimeout = timeout
	}
}

// WithWriteTimeout은 소켓 쓰기 제한 시간을 설정합니다
func WithWriteTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.writeTimeout = timeout
	}
}

// WithLoginTimeout은 로그인 응답 대기 시간을 설정합니다
func WithLoginTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.loginTimeout = timeout
	}
}

// WithLogger는 로거를 설정합니다
func WithLogger(log *logrus.Entry) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithSerializedQueries는 상관관계 ID를 돌려주지 않는 터미널용 모드를 켭니다.
// 응답 종류별로 한 번에 하나의 요청만 보내고 ID 없는 응답을 종류로 짝짓습니다.
func WithSerializedQueries(enabled bool) ClientOption {
	return func(c *Client) {
		c.serialized = enabled
	}
}

// NewClient는 새로운 터미널 클라이언트를 생성합니다. Start를 호출해야 연결합니다.
func NewClient(creds domain.Credentials, opts ...ClientOption) *Client {
	c := &Client{
		name:              "terminal",
		creds:             creds,
		dialer:            &net.Dialer{Timeout: 10 * time.Second},
		reconnectInterval: 5 * time.Second,
		maxAttempts:       10,
		queryTimeout:      time.Second,
		writeTimeout:      5 * time.Second,
		loginTimeout:      5 * time.Second,
		log:               logger.Discard(),
		calls:             make(chan *call),
		events:            make(chan any, 64),
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
		table:             correlation.NewTable[Message](),
		subs:              make(map[*Subscription]struct{}),
		dropLog:           rate.NewLimiter(rate.Every(time.Second), 5),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.kindLocks = make(map[string]*sync.Mutex)
	for _, kind := range []string{TypeBalance, TypePositions, TypeOrders, TypeOrder, TypeTrades, TypeMarketData} {
		c.kindLocks[kind] = &sync.Mutex{}
	}
	return c
}

// Name은 거래 장소 이름을 반환합니다
func (c *Client) Name() string {
	return c.name
}

// State는 현재 연결 상태를 반환합니다
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Start는 이벤트 루프를 시작하고 첫 연결을 시도합니다. 연결 완료를 기다리지 않습니다.
func (c *Client) Start(ctx context.Context) error {
	select {
	case <-c.stop:
		return venue.NewError(venue.KindConnection, c.name, "Start", errClosed)
	default:
	}
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: 이미 시작된 클라이언트입니다", c.name)
	}

	go c.run(ctx)
	return nil
}

// Close는 루프를 멈추고 연결을 닫습니다. 대기 중인 호출은 ConnectionError를 받습니다.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	if c.started.Load() {
		<-c.done
	}
	return nil
}

// WaitConnected는 로그인까지 끝나 Connected가 될 때까지 기다립니다.
// Failed가 되면 재연결 한도 초과 에러를, ctx가 끝나면 ctx 에러를 반환합니다.
func (c *Client) WaitConnected(ctx context.Context) error {
	const op = "WaitConnected"
	if !c.started.Load() {
		return venue.NewError(venue.KindConnection, c.name, op, venue.ErrNotConnected)
	}

	reply := make(chan error, 1)
	select {
	case c.events <- waitReq{reply: reply}:
	case <-ctx.Done():
		return venue.FromContext(c.name, op, ctx.Err())
	case <-c.done:
		return venue.NewError(venue.KindConnection, c.name, op, errClosed)
	}

	select {
	case err := <-reply:
		return withOp(err, op)
	case <-ctx.Done():
		return venue.FromContext(c.name, op, ctx.Err())
	case <-c.done:
		return venue.NewError(venue.KindConnection, c.name, op, errClosed)
	}
}

// query는 요청을 보내고 같은 ID의 응답을 기다립니다
func (c *Client) query(ctx context.Context, op string, req request, expect string) (Message, error) {
	if c.serialized {
		mu := c.kindLocks[expect]
		mu.Lock()
		defer mu.Unlock()
	}

	req.ID = correlation.NewID()
	p, reply := correlation.NewPending[Message](req.ID, expect)
	cl := &call{op: op, req: req, pending: p}

	select {
	case c.calls <- cl:
	case <-ctx.Done():
		return Message{}, venue.FromContext(c.name, op, ctx.Err())
	case <-c.stop:
		return Message{}, venue.NewError(venue.KindConnection, c.name, op, errClosed)
	case <-c.done:
		return Message{}, venue.NewError(venue.KindConnection, c.name, op, errClosed)
	}

	select {
	case r := <-reply:
		if r.Err != nil {
			return Message{}, withOp(r.Err, op)
		}
		if r.Value.Type != expect {
			return Message{}, venue.ProtocolError(c.name, op, "expected %s response, got %s", expect, r.Value.Type)
		}
		return r.Value, nil
	case <-ctx.Done():
		c.post(queryCancelled{id: req.ID, err: ctx.Err()})
		return Message{}, venue.FromContext(c.name, op, ctx.Err())
	}
}

// withOp는 루프에서 만든 공유 에러에 작업 이름을 붙인 사본을 반환합니다
func withOp(err error, op string) error {
	var verr *venue.Error
	if !errors.As(err, &verr) || verr.Op != "" {
		return err
	}
	cp := *verr
	cp.Op = op
	return &cp
}

// post는 이벤트를 루프에 전달합니다. 루프가 끝났으면 false를 반환합니다.
func (c *Client) post(ev any) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// inLoop는 루프 고루틴에서 fn을 실행하고 끝날 때까지 기다립니다
func (c *Client) inLoop(fn func()) bool {
	p := probe{fn: fn, done: make(chan struct{})}
	if !c.post(p) {
		return false
	}
	select {
	case <-p.done:
		return true
	case <-c.done:
		return false
	}
}

// pendingCount는 응답을 기다리는 요청 수를 반환합니다
func (c *Client) pendingCount() int {
	n := -1
	c.inLoop(func() { n = c.table.Len() })
	return n
}

func (c *Client) run(ctx context.Context) {
	c.runCtx = ctx
	defer c.shutdown()

	c.setState(Connecting)
	c.dial()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case cl := <-c.calls:
			c.handleCall(cl)
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

func (c *Client) handleEvent(ev any) {
	switch e := ev.(type) {
	case dialResult:
		c.handleDial(e)
	case lineRead:
		if e.gen == c.connGen {
			c.handleLine(e.line)
		}
	case readFailed:
		if e.gen != c.connGen {
			return
		}
		if errors.Is(e.err, io.EOF) {
			c.log.Warn("터미널이 연결을 닫았습니다")
		} else {
			c.log.WithError(e.err).Warn("터미널 읽기 실패")
		}
		c.dropConnection(venue.NewError(venue.KindConnection, c.name, "", e.err))
	case queryExpired:
		c.table.Reject(e.id, &venue.Error{
			Kind:    venue.KindTimeout,
			Venue:   c.name,
			Message: fmt.Sprintf("no response within %s", c.queryTimeout),
		})
	case queryCancelled:
		c.table.Reject(e.id, venue.FromContext(c.name, "", e.err))
	case loginExpired:
		if e.gen == c.connGen && c.State() == Connecting {
			c.log.Warn("로그인 응답 시간 초과")
			c.dropConnection(&venue.Error{Kind: venue.KindTimeout, Venue: c.name, Op: "login", Message: "no login acknowledgement"})
		}
	case reconnectDue:
		if c.State() != Reconnecting {
			return
		}
		c.attempts++
		c.log.WithFields(logrus.Fields{
			"attempt": c.attempts,
			"max":     c.maxAttempts,
		}).Info("터미널 재연결 시도")
		c.dial()
	case waitReq:
		switch c.State() {
		case Connected:
			e.reply <- nil
		case Failed:
			e.reply <- c.fatal
		default:
			c.waiters = append(c.waiters, e.reply)
		}
	case subscribeReq:
		c.subs[e.sub] = struct{}{}
		if c.fatal != nil {
			e.sub.deliverFatal(c.fatal)
		}
	case unsubscribeReq:
		if _, ok := c.subs[e.sub]; ok {
			delete(c.subs, e.sub)
			close(e.sub.msgs)
		}
	case probe:
		e.fn()
		close(e.done)
	}
}

func (c *Client) handleCall(cl *call) {
	switch c.State() {
	case Failed:
		cl.pending.Fail(c.fatal)
		return
	case Connected:
	default:
		cl.pending.Fail(c.notConnected())
		return
	}

	id := cl.req.ID
	cl.pending.SetTimeout(time.AfterFunc(c.queryTimeout, func() {
		c.post(queryExpired{id: id})
	}))
	if err := c.table.Add(cl.pending); err != nil {
		cl.pending.Fail(&venue.Error{Kind: venue.KindInvalidRequest, Venue: c.name, Err: err})
		return
	}

	if err := c.write(cl.req); err != nil {
		c.log.WithError(err).Warn("터미널 쓰기 실패")
		c.dropConnection(venue.NewError(venue.KindConnection, c.name, "", err))
	}
}

func (c *Client) notConnected() *venue.Error {
	kind := venue.KindConnection
	if c.lastErr != nil && c.lastErr.Kind == venue.KindAuthentication {
		kind = venue.KindAuthentication
	}
	return &venue.Error{Kind: kind, Venue: c.name, Err: venue.ErrNotConnected}
}

// dial은 새 다이얼 고루틴을 시작합니다. 이전 시도의 결과는 세대 번호로 걸러냅니다.
func (c *Client) dial() {
	c.dialGen++
	gen := c.dialGen

	ctx, cancel := context.WithCancel(c.runCtx)
	c.dialCancel = cancel

	go func() {
		conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
		if !c.post(dialResult{gen: gen, conn: conn, err: err}) && conn != nil {
			conn.Close()
		}
	}()
}

func (c *Client) handleDial(e dialResult) {
	if e.gen != c.dialGen {
		if e.conn != nil {
			e.conn.Close()
		}
		return
	}
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}

	if e.err != nil {
		c.log.WithError(e.err).WithField("addr", c.addr).Warn("터미널 연결 실패")
		c.lastErr = venue.NewError(venue.KindConnection, c.name, "connect", e.err)
		c.scheduleReconnect()
		return
	}

	c.conn = e.conn
	c.connGen++
	go c.readLoop(c.connGen, e.conn)
	c.setState(Connecting)

	// 다른 어떤 메시지보다 로그인이 먼저 나갑니다
	c.loginID = correlation.NewID()
	login := request{
		Type:     TypeLogin,
		ID:       c.loginID,
		Login:    c.creds.LoginID,
		Password: c.creds.Password,
		Server:   c.creds.Server,
	}
	if err := c.write(login); err != nil {
		c.dropConnection(venue.NewError(venue.KindConnection, c.name, "login", err))
		return
	}

	gen := c.connGen
	c.loginTimer = time.AfterFunc(c.loginTimeout, func() {
		c.post(loginExpired{gen: gen})
	})
}

func (c *Client) handleLine(line []byte) {
	msg, err := parseMessage(line)
	if err != nil {
		if c.dropLog.Allow() {
			c.log.WithError(err).WithField("bytes", len(line)).Warn("잘못된 메시지 무시")
		}
		return
	}

	c.broadcast(msg)

	if msg.Type == TypeLoginAck {
		c.handleLoginAck(msg)
		return
	}
	c.settle(msg)
}

func (c *Client) handleLoginAck(msg Message) {
	if c.State() != Connecting {
		return
	}
	if msg.ID != "" && msg.ID != c.loginID {
		return
	}
	if c.loginTimer != nil {
		c.loginTimer.Stop()
		c.loginTimer = nil
	}

	var ack loginAckPayload
	if err := msg.Decode(&ack); err != nil {
		c.dropConnection(venue.ProtocolError(c.name, "login", "login ack: %w", err))
		return
	}
	if !ack.Success {
		err := &venue.Error{Kind: venue.KindAuthentication, Venue: c.name, Op: "login", Message: ack.Message}
		c.log.WithField("reason", ack.Message).Error("터미널 로그인 거부")
		c.dropConnection(err)
		return
	}

	c.attempts = 0
	c.lastErr = nil
	c.setState(Connected)
	c.releaseWaiters(nil)
}

// releaseWaiters는 WaitConnected 호출자들에게 결과를 전달합니다
func (c *Client) releaseWaiters(err error) {
	for _, w := range c.waiters {
		w <- err
	}
	c.waiters = nil
}

// settle은 응답을 상관관계 ID로 대기 요청과 짝짓습니다. 짝이 없는 응답은 방송만 됩니다.
func (c *Client) settle(msg Message) {
	if msg.ID == "" {
		if c.serialized && msg.Type != TypeError {
			c.table.ResolveKind(msg.Type, msg)
		}
		return
	}

	if msg.Type == TypeError {
		var p errorPayload
		if err := msg.Decode(&p); err != nil {
			c.table.Reject(msg.ID, venue.ProtocolError(c.name, "", "error payload: %w", err))
			return
		}
		c.table.Reject(msg.ID, &venue.Error{Kind: venue.KindVenue, Venue: c.name, Code: p.Code, Message: p.Message})
		return
	}
	c.table.Resolve(msg.ID, msg)
}

func (c *Client) broadcast(msg Message) {
	for s := range c.subs {
		if !s.wants(msg.Type) {
			continue
		}
		select {
		case s.msgs <- msg:
		default:
			if c.dropLog.Allow() {
				c.log.WithField("type", msg.Type).Warn("구독자 버퍼가 가득 차 메시지를 버립니다")
			}
		}
	}
}

// dropConnection은 연결을 닫고 대기 요청을 모두 실패시킨 뒤 재연결을 예약합니다
func (c *Client) dropConnection(cause *venue.Error) {
	c.closeConn()
	c.table.RejectAll(cause)
	c.lastErr = cause

	switch c.State() {
	case Connected, Connecting:
		c.scheduleReconnect()
	}
}

func (c *Client) closeConn() {
	if c.loginTimer != nil {
		c.loginTimer.Stop()
		c.loginTimer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	// 이전 연결의 읽기 이벤트 무효화
	c.connGen++
}

func (c *Client) scheduleReconnect() {
	if c.attempts >= c.maxAttempts {
		c.fail()
		return
	}
	c.setState(Reconnecting)
	c.reconnectTimer = time.AfterFunc(c.reconnectInterval, func() {
		c.post(reconnectDue{})
	})
}

// fail은 종료 상태로 전환하고 치명적 에러를 구독자에게 한 번 알립니다
func (c *Client) fail() {
	c.setState(Failed)
	c.fatal = venue.NewError(venue.KindConnection, c.name, "reconnect", venue.ErrMaxReconnect)
	c.log.WithField("attempts", c.attempts).Error("최대 재연결 시도 횟수 초과")

	c.table.RejectAll(c.fatal)
	c.releaseWaiters(c.fatal)
	for s := range c.subs {
		s.deliverFatal(c.fatal)
	}
}

func (c *Client) write(req request) error {
	if c.conn == nil {
		return venue.ErrNotConnected
	}
	b, err := req.encode()
	if err != nil {
		return fmt.Errorf("요청 인코딩 실패: %w", err)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(b); err != nil {
		return err
	}

	// 로그인 메시지의 인증 정보는 남기지 않습니다
	c.log.WithFields(logrus.Fields{
		"type": req.Type,
		"id":   req.ID,
	}).Debug("터미널 요청 전송")
	return nil
}

// readLoop는 연결 하나에서 줄을 읽어 루프에 넘깁니다
func (c *Client) readLoop(gen uint64, conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		buf := make([]byte, len(line))
		copy(buf, line)
		if !c.post(lineRead{gen: gen, line: buf}) {
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.post(readFailed{gen: gen, err: err})
}

func (c *Client) setState(s ConnectionState) {
	old := ConnectionState(c.state.Swap(int32(s)))
	if old != s {
		c.log.WithFields(logrus.Fields{
			"from": old.String(),
			"to":   s.String(),
		}).Info("연결 상태 변경")
	}
}

func (c *Client) shutdown() {
	if c.dialCancel != nil {
		c.dialCancel()
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.closeConn()
	closed := venue.NewError(venue.KindConnection, c.name, "", errClosed)
	c.table.RejectAll(closed)
	c.releaseWaiters(closed)

	for s := range c.subs {
		close(s.msgs)
		delete(c.subs, s)
	}
	if c.State() != Failed {
		c.setState(Disconnected)
	}
	close(c.done)

	// 루프가 처리하지 못한 이벤트 정리
	for {
		select {
		case ev := <-c.events:
			switch e := ev.(type) {
			case subscribeReq:
				close(e.sub.msgs)
			case waitReq:
				e.reply <- closed
			case dialResult:
				if e.conn != nil {
					e.conn.Close()
				}
			}
		default:
			return
		}
	}
}
