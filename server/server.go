// Package server is the sealdrop HTTP service: single-use, time-bounded
// document access links, the admin surface that mints and manages them, and
// the recipient surface that resolves them.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
	"github.com/sealdrop/sealdrop/pkg/pwdhash"
	"github.com/sealdrop/sealdrop/server/auth"
	"github.com/sealdrop/sealdrop/server/docs"
	"github.com/sealdrop/sealdrop/server/linkdb"
	"github.com/sealdrop/sealdrop/server/notify"
	"github.com/sealdrop/sealdrop/server/storage"
)

type Server struct {
	HotReloadWWW bool
	Log          logs.Log

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router

	config   Config
	codec    *auth.Codec
	gate     *auth.Gate
	links    linkdb.Store
	library  *docs.Library
	storage  storage.Storage
	notifier notify.Notifier
	linkTTL  time.Duration
}

func NewServer(configFile string) (*Server, error) {
	cfg := Config{}
	if cfgB, err := os.ReadFile(configFile); err != nil {
		return nil, err
	} else {
		if err := json.Unmarshal(cfgB, &cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}

	links, err := openLinkStore(logger, cfg.LinkDB)
	if err != nil {
		return nil, err
	}

	// Open blob store
	var storageServer storage.Storage
	if cfg.DocStore.GCS != nil {
		storageServer, err = storage.NewStorageGCS(logger, cfg.DocStore.GCS.Bucket)
	} else if cfg.DocStore.S3 != nil {
		storageServer, err = storage.NewStorageS3(logger, *cfg.DocStore.S3)
	} else {
		storageServer, err = storage.NewStorageFS(logger, cfg.DocStore.Filesystem.Root)
	}
	if err != nil {
		return nil, err
	}

	library, err := docs.NewLibrary(logger, storageServer, cfg.DocStore.ManifestFile)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier, err = notify.NewSMTPNotifier(logger, cfg.SMTP)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warnf("SMTP is not configured. Link mail delivery is disabled")
	}

	codec := auth.NewCodec(cfg.SessionSecret)
	s := &Server{
		Log:      logger,
		config:   cfg,
		codec:    codec,
		gate:     auth.NewGate(codec),
		links:    links,
		library:  library,
		storage:  storageServer,
		notifier: notifier,
		linkTTL:  time.Duration(cfg.LinkExpiresHours) * time.Hour,
	}
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func openLinkStore(logger logs.Log, cfg LinkDBConfig) (linkdb.Store, error) {
	switch {
	case cfg.Sqlite != nil:
		return linkdb.NewSQLStore(logger, cfg.Sqlite.Filename)
	case cfg.Pebble != nil:
		return linkdb.NewPebbleStore(logger, cfg.Pebble.Path)
	default:
		return linkdb.NewFileStore(logger, cfg.Filesystem.Root)
	}
}

// verifyAdminPassword checks a login attempt against the configured admin
// account. Constant time on the hashed path.
func (s *Server) verifyAdminPassword(username, password string) bool {
	if username != s.config.Admin.Username {
		return false
	}
	if s.config.Admin.PasswordHash != "" {
		return pwdhash.VerifyHashBase64(password, s.config.Admin.PasswordHash)
	}
	return password == s.config.Admin.Password
}

// linkURL mints the recipient-facing URL for a token.
func (s *Server) linkURL(token string) string {
	return s.config.BaseURL + "/r/" + token
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.gate.Middleware(s.httpRouter),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig, ok := <-s.signalIn:
			if ok {
				s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
				s.Shutdown()
			} else {
				// This path gets hit when Shutdown() is called by something other than ourselves, and Shutdown() closes the signalIn channel.
				s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
			}
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	s.Log.Infof("Closing HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := s.httpServer.Shutdown(ctx)
	defer cancel()
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	}
	if err := s.links.Close(); err != nil {
		s.Log.Warnf("Error closing link store: %v", err)
	}
	s.Log.Infof("Shutdown complete")
	s.Log.Close()
}
