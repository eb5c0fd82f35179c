// Copyright 2025 Apex Metrology GmbH
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

// Package api exposes the dispatch engine over HTTP: envelope submission,
// response polling, state inspection and the metrics endpoint.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/apexmetrology/trackerd/pkg/config"
	"github.com/apexmetrology/trackerd/pkg/dispatch"
	"github.com/apexmetrology/trackerd/pkg/messages"
	"github.com/apexmetrology/trackerd/pkg/metrics"
	"github.com/apexmetrology/trackerd/pkg/models"
)

// maxEnvelopeBytes bounds the accepted request body.
const maxEnvelopeBytes = 1 << 20

// Server is the HTTP gateway in front of a dispatch engine.
type Server struct {
	engine *dispatch.Engine
	server *http.Server
	logger *zap.SugaredLogger
	config config.APIConfig
}

// NewServer creates a gateway bound to an engine. Routes are registered here;
// the listener starts in Start.
func NewServer(engine *dispatch.Engine, cfg config.APIConfig, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		engine: engine,
		logger: logger,
		config: cfg,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	v1 := router.Group("/api/v1")
	v1.POST("/messages", s.handleSubmit)
	v1.GET("/messages", s.handleCatalogue)
	v1.GET("/responses", s.handlePollResponse)
	v1.GET("/state", s.handleState)

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.server = &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the routing tree, mainly for tests driving the gateway
// without a listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the listener until the server is shut down. Blocks.
func (s *Server) Start() error {
	s.logger.Infow("starting HTTP gateway", "listen", s.config.Listen)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP gateway")

	return s.server.Shutdown(ctx)
}

// handleSubmit accepts a wire envelope, enqueues it and returns the assigned
// id. With ?waitMs=N it additionally polls for the correlated response and
// returns it instead.
func (s *Server) handleSubmit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEnvelopeBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})

		return
	}

	id, err := s.engine.SendWire(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, dispatch.ErrDuplicateID) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})

		return
	}

	waitMs, _ := strconv.Atoi(c.Query("waitMs"))
	if waitMs <= 0 {
		c.JSON(http.StatusAccepted, gin.H{"id": id})

		return
	}

	resp := s.engine.WaitForResponse(id, time.Duration(waitMs)*time.Millisecond)
	if resp == nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"id": id, "error": "no response within wait window"})

		return
	}

	s.writeResponse(c, resp)
}

// handleCatalogue reports the registered message names.
func (s *Server) handleCatalogue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"names": messages.Names()})
}

// handlePollResponse pops the oldest unclaimed response, 204 when none.
func (s *Server) handlePollResponse(c *gin.Context) {
	resp := s.engine.TryGetResponse()
	if resp == nil {
		c.Status(http.StatusNoContent)

		return
	}

	s.writeResponse(c, resp)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":    s.engine.CurrentStateName(),
		"running":  s.engine.IsRunning(),
		"instance": s.engine.InstanceID().String(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.engine.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "engine stopped"})

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) writeResponse(c *gin.Context, resp *models.Response) {
	wire, err := resp.ToWire()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize response"})

		return
	}

	c.Data(http.StatusOK, "application/json", wire)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.logger.Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
