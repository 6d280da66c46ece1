// Command httpcored is a thin wiring example, not a generic server
// framework: it hard-codes an HTTPServerOptions (spec.md Non-goals exclude
// CLI/config-file parsing from this repo) and exercises the
// Acceptor/Session drain lifecycle end to end, the way the teacher's own
// package main did for its single hard-coded listener.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/internal/log"
	"github.com/baranov1ch/httpcore/internal/metrics"
	"github.com/baranov1ch/httpcore/server"
)

// echoHandlerFactory answers every request with the bytes it received,
// exercising the full OnHeadersComplete/OnBody/OnEOM lifecycle so the
// binary is useful for manual smoke testing of either codec.
type echoHandlerFactory struct{}

func (echoHandlerFactory) OnRequest(prev server.RequestHandler, txn *server.Transaction) server.RequestHandler {
	return &echoHandler{}
}

type echoHandler struct {
	server.RequestHandlerAdaptor
	body []byte
}

func (h *echoHandler) OnBody(txn *server.Transaction, p []byte) {
	h.body = append(h.body, p...)
}

func (h *echoHandler) OnEOM(txn *server.Transaction) {
	resp := &codec.HTTPMessage{StatusCode: 200}
	resp.Headers.Add("content-length", strconv.Itoa(len(h.body)))
	_ = txn.SendHeaders(resp, codec.SessionStreamID)
	_ = txn.SendBody(h.body, true)
}

func main() {
	logger := log.New(false)
	defer logger.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(reg)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe("127.0.0.1:9090", nil); err != nil {
			logger.Warn("metrics listener exited", zap.Error(err))
		}
	}()

	opts := server.HTTPServerOptions{
		Threads:     4,
		IdleTimeout: 2 * time.Minute,
		Verbose:     false,
		HandlerFactories: []server.RequestHandlerFactory{
			echoHandlerFactory{},
		},
		CodecRegistry: server.DefaultCodecRegistry(),
		OnDrained: func() {
			logger.Info("all sessions drained")
		},
	}

	acceptor := server.NewAcceptor(logger, metricsRegistry)
	binds := []server.BindRequest{
		{IPConfig: server.IPConfig{
			Address:           server.SocketAddress{Host: "0.0.0.0", Port: 8080},
			PlaintextProtocol: "",
		}},
		{IPConfig: server.IPConfig{
			Address:           server.SocketAddress{Host: "0.0.0.0", Port: 8443},
			PlaintextProtocol: "spdy/3.1",
		}},
	}

	if err := acceptor.Bind(binds, opts); err != nil {
		logger.Fatal("bind failed", zap.Error(err))
	}

	acceptor.Start(opts, func() {
		logger.Info("accepting connections", zap.Any("addresses", acceptor.Addresses()))
	}, func(err error) {
		logger.Error("accept loop error", zap.Error(err))
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("draining")
	acceptor.Stop()
	logger.Info("drained, exiting")
}
