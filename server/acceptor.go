package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/internal/log"
	"github.com/baranov1ch/httpcore/internal/metrics"
)

// Acceptor owns a set of bound listeners and the Sessions multiplexed over
// the connections they accept. It is grounded on
// HTTPServerAcceptor::makeConfig/make's three-step construction (resolve
// config, bind, reverse-capture handler factories) and on
// MultiBind.HandlesListenFailures / onConnectionsDrained for the atomic-bind
// and idempotent-drain behavior.
type Acceptor struct {
	logger  *zap.Logger
	metrics *metrics.Registry

	mu        sync.Mutex
	listeners []net.Listener
	configs   []AcceptorConfiguration
	sessions  map[*Session]struct{}
	draining  bool
	stopOnce  sync.Once
	wg        sync.WaitGroup
	onDrained func()
}

// NewAcceptor constructs an Acceptor. Either argument may be nil; a nil
// logger becomes a no-op logger and a nil registry disables metrics.
func NewAcceptor(logger *zap.Logger, reg *metrics.Registry) *Acceptor {
	return &Acceptor{
		logger:   log.OrNop(logger),
		metrics:  reg,
		sessions: make(map[*Session]struct{}),
	}
}

// resolveConfig turns one BindRequest plus the server-wide options into the
// AcceptorConfiguration its Session will run with, per spec.md §4.6 step 1.
func resolveConfig(req BindRequest, opts HTTPServerOptions) (AcceptorConfiguration, error) {
	registry := opts.CodecRegistry
	if registry == nil {
		registry = DefaultCodecRegistry()
	}
	factory, ok := registry[req.IPConfig.PlaintextProtocol]
	if !ok {
		return AcceptorConfiguration{}, fmt.Errorf("server: no codec registered for plaintext protocol %q", req.IPConfig.PlaintextProtocol)
	}
	return AcceptorConfiguration{
		Address:           req.IPConfig.Address,
		SSL:               req.IPConfig.SSL,
		PlaintextProtocol: req.IPConfig.PlaintextProtocol,
		IdleTimeout:       opts.IdleTimeout,
		HandlerFactories:  opts.HandlerFactories,
		CodecFactory:      factory,
	}, nil
}

// Bind resolves and opens a listener for every req, atomically: if any
// single bind fails, every listener opened so far in this call is closed
// and rolled back before returning the aggregated error (spec.md §4.6
// "Binding", MultiBind.HandlesListenFailures).
func (a *Acceptor) Bind(reqs []BindRequest, opts HTTPServerOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		newListeners []net.Listener
		newConfigs   []AcceptorConfiguration
		errs         *multierror.Error
	)
	for _, req := range reqs {
		cfg, err := resolveConfig(req, opts)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		ln, err := net.Listen("tcp", cfg.Address.String())
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("server: listen %s: %w", cfg.Address, err))
			continue
		}
		newListeners = append(newListeners, ln)
		newConfigs = append(newConfigs, cfg)
	}
	if errs.ErrorOrNil() != nil {
		for _, ln := range newListeners {
			_ = ln.Close()
		}
		return errs.ErrorOrNil()
	}
	a.listeners = append(a.listeners, newListeners...)
	a.configs = append(a.configs, newConfigs...)
	return nil
}

// Addresses returns the local address of every successfully bound listener.
func (a *Acceptor) Addresses() []net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]net.Addr, 0, len(a.listeners))
	for _, ln := range a.listeners {
		out = append(out, ln.Addr())
	}
	return out
}

// Start launches opts.Threads worker goroutines per bound listener, each
// accepting connections and serving the resulting Session pinned to that
// goroutine for its whole lifetime (spec.md §5 "Scheduling model"). onReady
// fires once every worker is running; onError fires (at most once per
// worker goroutine) if Accept fails for a reason other than the listener
// having been closed by Stop.
func (a *Acceptor) Start(opts HTTPServerOptions, onReady func(), onError func(error)) {
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	a.mu.Lock()
	a.onDrained = opts.OnDrained
	listeners := append([]net.Listener(nil), a.listeners...)
	configs := append([]AcceptorConfiguration(nil), a.configs...)
	a.mu.Unlock()

	var running sync.WaitGroup
	for i := range listeners {
		ln := listeners[i]
		cfg := configs[i]
		for t := 0; t < threads; t++ {
			a.wg.Add(1)
			running.Add(1)
			go func() {
				running.Done()
				a.acceptLoop(ln, cfg, onError)
			}()
		}
	}
	running.Wait()
	if onReady != nil {
		onReady()
	}
}

func (a *Acceptor) acceptLoop(ln net.Listener, cfg AcceptorConfiguration, onError func(error)) {
	defer a.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if a.isDraining() {
				return
			}
			if onError != nil {
				onError(err)
			}
			return
		}
		if a.metrics != nil {
			a.metrics.SessionsAccepted.Inc()
			a.metrics.ActiveSessions.Inc()
		}
		c := cfg.CodecFactory(codec.DirectionDownstream)
		sess := newSession(conn, c, cfg, a.logger, a.metrics)
		a.addSession(sess)
		sess.serve()
		a.removeSession(sess)
		if a.metrics != nil {
			a.metrics.ActiveSessions.Dec()
		}
	}
}

func (a *Acceptor) addSession(s *Session) {
	a.mu.Lock()
	a.sessions[s] = struct{}{}
	a.mu.Unlock()
}

func (a *Acceptor) removeSession(s *Session) {
	a.mu.Lock()
	delete(a.sessions, s)
	a.mu.Unlock()
}

func (a *Acceptor) isDraining() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draining
}

// Stop closes every listener, letting in-flight Sessions finish on their
// own (the teacher's CloseOnEgressComplete convention), and blocks until
// every accept-loop goroutine has returned. It is idempotent: calling it
// more than once only ever runs the shutdown sequence once, matching
// onConnectionsDrained's exactly-once completion guarantee, and invokes
// HTTPServerOptions.OnDrained (if set) exactly once after the last Session
// has closed.
func (a *Acceptor) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.draining = true
		if a.metrics != nil {
			a.metrics.Draining.Set(1)
		}
		listeners := append([]net.Listener(nil), a.listeners...)
		a.mu.Unlock()

		for _, ln := range listeners {
			_ = ln.Close()
		}
		a.wg.Wait()

		if a.metrics != nil {
			a.metrics.Draining.Set(0)
		}

		a.mu.Lock()
		onDrained := a.onDrained
		a.mu.Unlock()
		if onDrained != nil {
			onDrained()
		}
	})
}
