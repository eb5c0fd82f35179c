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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apexmetrology/trackerd/pkg/api"
	"github.com/apexmetrology/trackerd/pkg/config"
	"github.com/apexmetrology/trackerd/pkg/demo"
	"github.com/apexmetrology/trackerd/pkg/device"
	"github.com/apexmetrology/trackerd/pkg/dispatch"
	"github.com/apexmetrology/trackerd/pkg/logger"
	"github.com/apexmetrology/trackerd/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (defaults apply when empty)")
	runDemo := flag.Bool("demo", false, "run the scripted measurement session, then exit")
	flag.Parse()

	cfg := config.DefaultConfig()

	var cfgErr error
	if *configPath != "" {
		cfg, cfgErr = config.LoadFromFile(*configPath)
	}

	logger.InitializeWithLevel(cfg.Agent.LogLevel)
	log := logger.For(logger.ComponentCore)

	if cfgErr != nil {
		log.Errorf("failed to load config: %v", cfgErr)
		os.Exit(1)
	}

	log.Info("starting trackerd")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sim := device.NewSimulator(cfg.Device.LatencyScale, logger.For(logger.ComponentDevice))
	engine := dispatch.NewEngine(cfg.Engine, sim, logger.For(logger.ComponentDispatch))
	engine.Start()
	defer engine.Stop()

	g, gctx := errgroup.WithContext(ctx)

	var gateway *api.Server
	if cfg.API.Enabled {
		gateway = api.NewServer(engine, cfg.API, logger.For(logger.ComponentAPI))
		g.Go(gateway.Start)
	}

	var metricsSrv *http.Server
	if cfg.Agent.MetricsPort > 0 {
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Agent.MetricsPort),
			Handler: metrics.Handler(),
		}
		g.Go(func() error {
			log.Infof("standalone metrics listener on %s", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		})
	}

	if *runDemo {
		g.Go(func() error {
			defer cancel()

			harness := demo.New(engine, logger.For(logger.ComponentDemo))

			return harness.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()

		if gateway != nil {
			if err := gateway.Stop(shutdownCtx); err != nil {
				log.Errorf("failed to shut down HTTP gateway: %v", err)
			}
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Errorf("failed to shut down metrics listener: %v", err)
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("trackerd exited with error: %v", err)
		engine.Stop()
		os.Exit(1)
	}

	log.Info("trackerd stopped")
}
