/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arunj123/go-someip/config"
	"github.com/arunj123/go-someip/runtime"
	"github.com/arunj123/go-someip/stats"
	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile     string
		instanceName   string
		logLevel       string
		monitoringPort int
		clientID       int
		watchdog       bool
	)

	flag.StringVar(&configFile, "config", "", "Path to the middleware's config.json")
	flag.StringVar(&instanceName, "instance", "main", "Instance name within the config tree to run")
	flag.StringVar(&logLevel, "loglevel", "warning", "Set a log level. Can be: debug, info, warning, error")
	flag.IntVar(&monitoringPort, "monitoringport", 8888, "Port to serve JSON and Prometheus stats on")
	flag.IntVar(&clientID, "clientid", 1, "SOME/IP client id this instance stamps on originated requests")
	flag.BoolVar(&watchdog, "systemd-watchdog", false, "Ping sd_notify WATCHDOG=1 on the configured interval")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", logLevel)
	}

	if configFile == "" {
		log.Fatal("-config is required")
	}

	tree, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	inst, err := runtime.Load(tree, instanceName, uint16(clientID))
	if err != nil {
		log.Fatalf("starting instance %q: %v", instanceName, err)
	}

	st := stats.New()
	inst.Dispatcher.WithStats(st)
	statsServer := stats.NewServer(st, monitoringPort)
	go func() {
		if err := statsServer.ListenAndServe(); err != nil {
			log.WithError(err).Error("stats server exited")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Debug("sd_notify READY failed (probably not running under systemd)")
	}
	if watchdog {
		go watchdogLoop(ctx)
	}

	log.Infof("someipd running instance %q", instanceName)
	if err := inst.Dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("dispatcher exited: %v", err)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = statsServer.Shutdown(shutdownCtx)
}

func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.WithError(err).Debug("sd_notify WATCHDOG failed")
			}
		}
	}
}
