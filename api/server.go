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

// Package api is the daemon's HTTP control surface: status, variable
// access, and profile selection, optionally guarded by JWT bearer
// tokens.  Every mutation travels through the pipeline's inbound
// queue; the API never touches worker-owned state directly.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/hidtools/remapd"
)

// StatusResponse is the system status payload.
type StatusResponse struct {
	Profile         string            `json:"profile"`
	VirtualHIDReady bool              `json:"virtual_hid_ready"`
	ChainActive     bool              `json:"chain_active"`
	Modifiers       []string          `json:"modifiers"`
	Variables       map[string]string `json:"variables"`
}

// Server handles control API requests.
type Server struct {
	pipeline  *remapd.Pipeline
	jwtSecret []byte
	log       *logrus.Logger
	clock     func() uint64
}

// NewServer creates a control API server.  The clock must match the
// pipeline's event time scale.
func NewServer(pipeline *remapd.Pipeline, jwtSecret string, clock func() uint64, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		pipeline:  pipeline,
		jwtSecret: []byte(jwtSecret),
		log:       log,
		clock:     clock,
	}
}

// Register installs the handlers on a mux, wrapping them with auth
// when a secret is configured.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/status", s.AuthMiddleware(s.HandleStatus))
	mux.HandleFunc("/variables", s.AuthMiddleware(s.HandleVariables))
	mux.HandleFunc("/profile", s.AuthMiddleware(s.HandleProfile))
}

// AuthMiddleware enforces a JWT bearer token when a secret is set.
// Without one the handler is served as-is.
func (s *Server) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if len(s.jwtSecret) == 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.authorize(r); err != nil {
			s.log.WithError(err).WithField("remote", r.RemoteAddr).
				Warn("control API request rejected")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// authorize validates the request's bearer token against the
// configured secret.  Only HS256 is accepted; the claims payload is
// not inspected beyond the standard validity checks.
func (s *Server) authorize(r *http.Request) error {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return errors.New("missing bearer token")
	}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), jwt.MapClaims{},
		func(*jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	return nil
}

// HandleStatus serves GET /status.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.pipeline.Snapshot()
	resp := StatusResponse{
		Profile:         snap.Profile,
		VirtualHIDReady: snap.VirtualHIDReady,
		ChainActive:     snap.ChainActive,
		Modifiers:       snap.Modifiers,
		Variables:       map[string]string{},
	}
	for name, v := range snap.Variables {
		resp.Variables[name] = v.String()
	}

	writeJSON(w, resp)
}

// VariableRequest is the POST /variables payload.
type VariableRequest struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Int   *int   `json:"int_value,omitempty"`
}

// HandleVariables serves GET and POST /variables.  Setting a variable
// submits a set_variable event through the inbound queue so the
// worker applies it in event order.
func (s *Server) HandleVariables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap := s.pipeline.Snapshot()
		vars := map[string]string{}
		for name, v := range snap.Variables {
			vars[name] = v.String()
		}
		writeJSON(w, vars)

	case http.MethodPost:
		var req VariableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "Missing name", http.StatusBadRequest)
			return
		}

		value := remapd.StringVariable(req.Value)
		if req.Int != nil {
			value = remapd.IntVariable(*req.Int)
		}
		event := remapd.Single(remapd.NewSetVariableEvent(req.Name, value))
		if err := s.pipeline.SubmitEvent(remapd.DeviceVirtual, s.clock(), event); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ProfileRequest is the POST /profile payload.
type ProfileRequest struct {
	Name string `json:"name"`
}

// HandleProfile serves POST /profile: select a profile by name.
func (s *Server) HandleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !s.pipeline.SelectProfile(req.Name) {
		http.Error(w, "Unknown profile", http.StatusNotFound)
		return
	}
	s.log.WithField("profile", req.Name).Info("profile selected")
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Encoding error", http.StatusInternalServerError)
	}
}
