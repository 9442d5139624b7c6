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

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/hidtools/remapd"
	"github.com/hidtools/remapd/mock"
)

func newTestServer(t *testing.T, secret string) (*Server, *remapd.Pipeline) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	p := remapd.NewPipeline(remapd.Options{
		Logger:          log,
		Sink:            mock.NewDevice(),
		VirtualHIDReady: true,
	})
	p.Start()
	t.Cleanup(p.Stop)

	clock := func() uint64 { return uint64(time.Now().UnixNano()) }
	return NewServer(p, secret, clock, log), p
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "")
	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body decode: %v", err)
	}
	if resp.Profile != "Default profile" || !resp.VirtualHIDReady {
		t.Errorf("response = %+v", resp)
	}
}

func TestVariableRoundTrip(t *testing.T) {
	s, p := newTestServer(t, "")
	mux := http.NewServeMux()
	s.Register(mux)

	body := strings.NewReader(`{"name":"layer","int_value":3}`)
	req := httptest.NewRequest(http.MethodPost, "/variables", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("post status = %d", rec.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if v, ok := p.Snapshot().Variables["layer"]; ok {
			if n, isInt := v.Int(); isInt && n == 3 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("variable never applied")
		}
		time.Sleep(time.Millisecond)
	}

	req = httptest.NewRequest(http.MethodGet, "/variables", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var vars map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &vars); err != nil {
		t.Fatalf("body decode: %v", err)
	}
	if vars["layer"] != "3" {
		t.Errorf("variables = %v", vars)
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")
	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	// A valid bearer token opens the door.
	token := jwt.New(jwt.SigningMethodHS256)
	signed, err := token.SignedString([]byte("sekrit"))
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}

	// A token signed with the wrong key does not.
	bad, _ := jwt.New(jwt.SigningMethodHS256).SignedString([]byte("wrong"))
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", rec.Code)
	}
}

func TestUnknownProfile(t *testing.T) {
	s, _ := newTestServer(t, "")
	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(`{"name":"nope"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
