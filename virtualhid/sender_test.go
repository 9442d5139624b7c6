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

package virtualhid

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// acceptLines runs a stream endpoint that collects newline-framed
// payloads.
func acceptLines(t *testing.T, path string, lines chan<- string) net.Listener {
	t.Helper()
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen %s: %v", path, err)
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				scanner := bufio.NewScanner(c)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}(conn)
		}
	}()
	return l
}

func TestSenderStream(t *testing.T) {
	dir := t.TempDir()
	lines := make(chan string, 8)
	l := acceptLines(t, filepath.Join(dir, "keyboard.sock"), lines)
	defer l.Close()

	s := NewSender(dir, false)
	defer s.Close()

	var r KeyboardReport
	r.Modifiers = 0x01
	if err := s.PostKeyboardReport(r, 12345); err != nil {
		t.Fatalf("post: %v", err)
	}

	select {
	case line := <-lines:
		if !strings.HasPrefix(line, "12345 01") {
			t.Errorf("line = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
}

func TestSenderReconnects(t *testing.T) {
	dir := t.TempDir()
	lines := make(chan string, 64)
	path := filepath.Join(dir, "keyboard.sock")

	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	conn, connErr := make(chan net.Conn, 1), make(chan error, 1)
	go func() {
		c, err := l.Accept()
		conn <- c
		connErr <- err
	}()

	s := NewSender(dir, false)
	defer s.Close()

	if err := s.PostKeyboardReport(KeyboardReport{}, 1); err != nil {
		t.Fatalf("first post: %v", err)
	}
	if err := <-connErr; err != nil {
		t.Fatal(err)
	}

	// Kill the endpoint; the cached connection is now broken.  Bring
	// it back on the same path: the sender must reconnect rather than
	// fail forever.
	(<-conn).Close()
	l.Close()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	l2 := acceptLines(t, path, lines)
	defer l2.Close()

	// The first write after the peer vanished may be swallowed by the
	// socket buffer; keep posting until the fresh endpoint hears one.
	deadline := time.After(5 * time.Second)
	for {
		_ = s.PostKeyboardReport(KeyboardReport{}, 2)
		select {
		case line := <-lines:
			if !strings.HasPrefix(line, "2 ") {
				t.Errorf("line = %q", line)
			}
			return
		case <-deadline:
			t.Fatal("sender never reconnected")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSenderDatagramFallsBackToStream(t *testing.T) {
	dir := t.TempDir()
	lines := make(chan string, 8)
	l := acceptLines(t, filepath.Join(dir, "keyboard.sock"), lines)
	defer l.Close()

	// Datagram mode with no .dgram socket present: the frame must
	// still arrive over the stream endpoint.
	s := NewSender(dir, true)
	defer s.Close()

	if err := s.PostKeyboardReport(KeyboardReport{Modifiers: 0x02}, 7); err != nil {
		t.Fatalf("post: %v", err)
	}
	select {
	case line := <-lines:
		if !strings.HasPrefix(line, "7 02") {
			t.Errorf("line = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fallback frame received")
	}
}
