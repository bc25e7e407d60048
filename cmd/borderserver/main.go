// Copyright 2020 Juergen Enge, info-age GmbH, Basel. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/je4/bordercrop/pkg/bordercrop"
	"github.com/je4/bordercrop/pkg/util"
)

const BORDERSERVER = "borderserver v1.0, info-age GmbH Basel"

func main() {
	println(BORDERSERVER)

	configFile := flag.String("cfg", "", "config file location")
	addrFlag := flag.String("addr", "", "listen address")
	flag.Parse()

	conf, err := util.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	if *addrFlag != "" {
		conf.Server.Addr = *addrFlag
	}

	logger, logCloser, err := util.CreateLogger(&conf.Log)
	if err != nil {
		log.Fatalf("cannot create logger: %v", err)
	}
	defer logCloser.Close()

	var accesslog io.Writer
	if conf.Server.AccessLog == "" {
		accesslog = os.Stdout
	} else {
		f, err := os.OpenFile(conf.Server.AccessLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			logger.Fatal().Err(err).Msgf("cannot open file %s", conf.Server.AccessLog)
		}
		defer f.Close()
		accesslog = f
	}

	srv, err := bordercrop.NewServer(conf.Crop.Scan, conf.Server.MaxUploadSize, conf.Crop.JPEGQuality, logger, accesslog)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot initialize server")
	}

	end := make(chan bool, 2)

	go func() {
		if err := srv.ListenAndServe(conf.Server.Addr, conf.Server.CertPEM, conf.Server.KeyPEM); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server died")
			end <- true
		}
	}()

	// process waiting for interrupt signal (TERM or KILL)
	go func() {
		sigint := make(chan os.Signal, 1)

		// interrupt signal sent from terminal
		signal.Notify(sigint, os.Interrupt)

		signal.Notify(sigint, syscall.SIGTERM)

		<-sigint

		// We received an interrupt signal, shut down.
		logger.Info().Msg("shutdown requested")
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout.Duration)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("cannot shut down server")
		}

		end <- true
	}()

	<-end
	logger.Info().Msg("server stopped")
}
