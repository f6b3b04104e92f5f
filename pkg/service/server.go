// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/urfave/negroni/v3"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/config"
)

const shutdownTimeout = 5 * time.Second

// AdmissionServer serves the admission API: access tokens and room lifecycle.
type AdmissionServer struct {
	conf       *config.Config
	provider   RoomProvider
	tokens     *TokenIssuer
	httpServer *http.Server
	handler    http.Handler
	creates    singleflight.Group
	running    atomic.Bool
	doneChan   chan struct{}
	closedChan chan struct{}
}

func NewAdmissionServer(conf *config.Config, provider RoomProvider, tokens *TokenIssuer) *AdmissionServer {
	s := &AdmissionServer{
		conf:     conf,
		provider: provider,
		tokens:   tokens,
	}

	middlewares := []negroni.Handler{
		// always the first
		negroni.NewRecovery(),
	}
	if len(conf.Server.CORSOrigins) > 0 {
		middlewares = append(middlewares, cors.New(cors.Options{
			AllowedOrigins: conf.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tokens", s.handleToken)
	mux.HandleFunc("GET /rooms", s.handleListRooms)
	mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	mux.HandleFunc("DELETE /rooms/{roomId}", s.handleDeleteRoom)
	mux.HandleFunc("GET /rooms/{roomId}/capacity", s.handleCapacity)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = configureMiddlewares(mux, middlewares...)
	return s
}

// Handler exposes the routed API, middlewares included.
func (s *AdmissionServer) Handler() http.Handler {
	return s.handler
}

func (s *AdmissionServer) IsRunning() bool {
	return s.running.Load()
}

// Start listens on every bind address and blocks until Stop is called.
func (s *AdmissionServer) Start() error {
	if s.running.Load() {
		return errors.New("already running")
	}

	addresses := s.conf.Server.BindAddresses
	if len(addresses) == 0 {
		addresses = []string{""}
	}

	var listeners []net.Listener
	for _, addr := range addresses {
		ln, err := net.Listen("tcp", net.JoinHostPort(addr, fmt.Sprint(s.conf.Server.Port)))
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return err
		}
		listeners = append(listeners, ln)
	}

	s.httpServer = &http.Server{
		Handler: s.handler,
	}
	s.doneChan = make(chan struct{})
	s.closedChan = make(chan struct{})

	for _, ln := range listeners {
		go func(ln net.Listener) {
			if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("could not serve admission API", err, "address", ln.Addr().String())
			}
		}(ln)
	}

	logger.Infow("starting admission server",
		"portHttp", s.conf.Server.Port,
		"bindAddresses", addresses,
		"rooms", s.provider.Kind(),
		"apiKey", s.tokens.APIKey(),
	)
	s.running.Store(true)

	<-s.doneChan

	// wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)

	close(s.closedChan)
	return nil
}

func (s *AdmissionServer) Stop(force bool) {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if force {
		_ = s.httpServer.Close()
	}
	close(s.doneChan)
	<-s.closedChan
}

func configureMiddlewares(handler http.Handler, middlewares ...negroni.Handler) *negroni.Negroni {
	n := negroni.New()
	for _, m := range middlewares {
		n.Use(m)
	}
	n.UseHandler(handler)
	return n
}
