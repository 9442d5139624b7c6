// Copyright 2026 The Remapd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// remapd is the remapping daemon: it consumes seized HID events from
// the grabber collaborator, runs them through the manipulator
// pipeline, and posts report frames to the virtual HID device.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/hidtools/remapd"
	"github.com/hidtools/remapd/api"
	"github.com/hidtools/remapd/config"
	"github.com/hidtools/remapd/mock"
	"github.com/hidtools/remapd/virtualhid"
)

var cli struct {
	Serve struct {
		Config   string `help:"Path to the profile configuration (JSON)." type:"path" short:"c"`
		Settings string `help:"Path to the daemon settings file (YAML)." type:"path" short:"s"`
		DryRun   bool   `help:"Record frames in memory instead of posting to the virtual HID device."`
		Debug    bool   `help:"Enable verbose logging." short:"d"`
	} `cmd:"" help:"Run the remapping daemon."`

	Check struct {
		Config string `arg:"" help:"Path to the profile configuration to validate." type:"path"`
	} `cmd:"" help:"Validate a configuration and exit."`

	Token struct {
		Secret string `help:"Secret key used to sign the token." required:"" env:"REMAPD_JWT_SECRET" name:"jwt-secret"`
	} `cmd:"" help:"Generate a control-API JWT."`
}

func main() {
	ctx := kong.Parse(&cli)

	switch ctx.Command() {
	case "serve":
		runServe()
	case "check <config>":
		runCheck()
	case "token":
		runToken()
	default:
		fmt.Fprintln(os.Stderr, "unknown command")
		os.Exit(1)
	}
}

// runToken mints a control-API bearer token valid for one year.
func runToken() {
	if cli.Token.Secret == "" {
		fmt.Fprintln(os.Stderr, "refusing to sign with an empty secret")
		os.Exit(1)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "remapd-control",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.AddDate(1, 0, 0)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(cli.Token.Secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, signed)
}

func runCheck() {
	log := logrus.New()

	cfg, err := config.Load(cli.Check.Config)
	if err != nil {
		log.WithError(err).Fatal("configuration is invalid")
	}

	problems := 0
	for _, profile := range cfg.Profiles {
		params := profile.ComplexModifications.Parameters
		for _, rule := range profile.ComplexModifications.Rules {
			problems += len(rule.DecodeErrors)
			for _, msg := range rule.DecodeErrors {
				log.Warn(msg)
			}
			for _, def := range rule.Manipulators {
				if _, err := remapd.NewBasicManipulator(def, params); err != nil {
					log.WithError(err).Warn("invalid manipulator")
					problems++
				}
			}
		}
	}
	if problems > 0 {
		log.Fatalf("configuration loaded with %d skipped manipulators", problems)
	}
	log.Info("configuration is valid")
}

func runServe() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	settings, err := config.LoadSettings(cli.Serve.Settings)
	if err != nil {
		log.WithError(err).Fatal("failed to load settings")
	}
	if cli.Serve.Debug {
		settings.LogLevel = "debug"
	}
	if level, err := logrus.ParseLevel(settings.LogLevel); err == nil {
		log.SetLevel(level)
	}

	cfg, err := config.Load(cli.Serve.Config)
	if err != nil {
		log.WithError(err).Warn("failed to load configuration; starting with defaults")
		cfg = config.DefaultConfiguration()
	}

	var sink virtualhid.Sink
	ready := false
	if cli.Serve.DryRun {
		sink = mock.NewDevice()
		ready = true
		log.Info("dry run: frames recorded in memory")
	} else {
		sender := virtualhid.NewSender(settings.VirtualHIDSocketDir, settings.Datagram)
		defer sender.Close()
		sink = sender
		ready = true
	}

	clock := func() remapd.AbsoluteTime {
		return remapd.AbsoluteTime(time.Now().UnixNano())
	}

	pipeline := remapd.NewPipeline(remapd.Options{
		Logger:          log,
		Sink:            sink,
		Configuration:   cfg,
		Clock:           clock,
		VirtualHIDReady: ready,
		Hooks: remapd.Hooks{
			RunShellCommand: func(command string) {
				runShellCommand(log, command)
			},
		},
	})
	pipeline.Start()
	defer pipeline.Stop()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration hot reload.
	if cli.Serve.Config != "" {
		watcher := config.NewWatcher(cli.Serve.Config, log, func(c *config.CoreConfiguration) {
			pipeline.SetConfiguration(c)
		})
		go func() {
			if err := watcher.Run(rootCtx); err != nil && rootCtx.Err() == nil {
				log.WithError(err).Warn("configuration watcher stopped")
			}
		}()
	}

	// Grabber inbound socket.
	listener, err := newGrabberListener(settings.GrabberSocket, pipeline, log)
	if err != nil {
		log.WithError(err).Fatal("failed to listen for grabber events")
	}
	go listener.Run(rootCtx)

	// Control API.
	if settings.API.Address != "" {
		server := api.NewServer(pipeline, settings.API.JWTSecret,
			func() uint64 { return uint64(clock()) }, log)
		mux := http.NewServeMux()
		server.Register(mux)
		go func() {
			log.WithField("address", settings.API.Address).Info("control API listening")
			if err := http.ListenAndServe(settings.API.Address, mux); err != nil {
				log.WithError(err).Error("control API failed")
			}
		}()
	}

	if sent, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady); err == nil && sent {
		log.Debug("notified systemd: ready")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
	log.Info("shutting down")
}
