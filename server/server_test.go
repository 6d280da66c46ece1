package server

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/internal/metrics"
)

func newTestAcceptor() *Acceptor {
	return NewAcceptor(zap.NewNop(), nil)
}

func testOpts() HTTPServerOptions {
	return HTTPServerOptions{
		Threads:       1,
		CodecRegistry: DefaultCodecRegistry(),
	}
}

// TestMultiBind_HandlesListenFailures mirrors HTTPServerTest.cpp's
// MultiBind.HandlesListenFailures: one address is deliberately
// unresolvable, so the whole Bind call must fail and leave no listener
// behind, even though an earlier address in the list would have bound fine.
func TestMultiBind_HandlesListenFailures(t *testing.T) {
	a := newTestAcceptor()
	reqs := []BindRequest{
		{IPConfig: IPConfig{Address: SocketAddress{Host: "127.0.0.1", Port: 0}}},
		{IPConfig: IPConfig{Address: SocketAddress{Host: "not-a-routable-host.invalid", Port: 0}}},
	}

	err := a.Bind(reqs, testOpts())
	require.Error(t, err)
	assert.Empty(t, a.Addresses(), "a failed multi-bind must roll back every listener opened so far")
}

func TestBind_UnknownPlaintextProtocolFails(t *testing.T) {
	a := newTestAcceptor()
	reqs := []BindRequest{
		{IPConfig: IPConfig{Address: SocketAddress{Host: "127.0.0.1", Port: 0}, PlaintextProtocol: "carrier-pigeon/1.0"}},
	}
	err := a.Bind(reqs, testOpts())
	assert.Error(t, err)
}

func TestBind_Succeeds(t *testing.T) {
	a := newTestAcceptor()
	reqs := []BindRequest{
		{IPConfig: IPConfig{Address: SocketAddress{Host: "127.0.0.1", Port: 0}}},
	}
	require.NoError(t, a.Bind(reqs, testOpts()))
	assert.Len(t, a.Addresses(), 1)
}

// orderingHandler records the label it was constructed with, both at
// construction and at each callback, then delegates to prev so the chain
// stays intact.
type orderingHandler struct {
	RequestHandlerAdaptor
	label string
	order *[]string
	prev  RequestHandler
}

func (h *orderingHandler) OnHeadersComplete(txn *Transaction, msg *codec.HTTPMessage) {
	*h.order = append(*h.order, h.label)
	if h.prev != nil {
		h.prev.OnHeadersComplete(txn, msg)
	}
}

func newOrderingFactory(label string, order *[]string) RequestHandlerFactory {
	return RequestHandlerFactoryFunc(func(prev RequestHandler, txn *Transaction) RequestHandler {
		return &orderingHandler{label: label, order: order, prev: prev}
	})
}

// TestBuildHandlerChain_FirstConfiguredIsOutermost matches
// HTTPServerAcceptor::newHandler's reverse-then-fold construction: the
// first-configured factory (A) ends up outermost, so it is the one that
// runs first when a Transaction fires OnHeadersComplete.
func TestBuildHandlerChain_FirstConfiguredIsOutermost(t *testing.T) {
	var order []string
	factories := []RequestHandlerFactory{
		newOrderingFactory("A", &order),
		newOrderingFactory("B", &order),
		newOrderingFactory("C", &order),
	}
	txn := &Transaction{}
	h := buildHandlerChain(txn, factories)
	require.NotNil(t, h)

	h.OnHeadersComplete(txn, &codec.HTTPMessage{})
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

// TestAcceptor_StopIsIdempotentAndCompletesOnce asserts Stop's drain
// completion fires exactly once even under concurrent callers, mirroring
// onConnectionsDrained's exactly-once guarantee.
func TestAcceptor_StopIsIdempotentAndCompletesOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewAcceptor(zap.NewNop(), metrics.NewRegistry(reg))

	reqs := []BindRequest{
		{IPConfig: IPConfig{Address: SocketAddress{Host: "127.0.0.1", Port: 0}}},
	}
	opts := testOpts()
	var drainedCount int32
	opts.OnDrained = func() { atomic.AddInt32(&drainedCount, 1) }
	require.NoError(t, a.Bind(reqs, opts))

	ready := make(chan struct{})
	a.Start(opts, func() { close(ready) }, nil)
	<-ready

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Stop()
		}()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent Stop calls did not all return")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&drainedCount), "drain completion callback must fire exactly once")
}

// TestSession_HandlerChainReceivesLifecycleEvents drives a real loopback
// connection through an Acceptor-constructed Session and asserts the
// configured handler observes the full HTTP/1.x request lifecycle.
func TestSession_HandlerChainReceivesLifecycleEvents(t *testing.T) {
	var gotBody []byte
	var completed bool
	var mu sync.Mutex

	factory := RequestHandlerFactoryFunc(func(prev RequestHandler, txn *Transaction) RequestHandler {
		return &recordingHandler{bodyOut: &gotBody, completedOut: &completed, mu: &mu}
	})

	opts := testOpts()
	opts.HandlerFactories = []RequestHandlerFactory{factory}

	a := newTestAcceptor()
	reqs := []BindRequest{
		{IPConfig: IPConfig{Address: SocketAddress{Host: "127.0.0.1", Port: 0}}},
	}
	require.NoError(t, a.Bind(reqs, opts))
	addr := a.Addresses()[0]

	ready := make(chan struct{})
	a.Start(opts, func() { close(ready) }, nil)
	<-ready
	defer a.Stop()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"))
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := completed
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, completed)
	assert.Equal(t, "hello", string(gotBody))
}

type recordingHandler struct {
	RequestHandlerAdaptor
	bodyOut      *[]byte
	completedOut *bool
	mu           *sync.Mutex
}

func (h *recordingHandler) OnBody(txn *Transaction, p []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.bodyOut = append(*h.bodyOut, p...)
}

func (h *recordingHandler) OnEOM(txn *Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.completedOut = true
}
