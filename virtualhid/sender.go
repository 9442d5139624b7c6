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
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Sender posts frames to the virtual HID collaborator over unix
// sockets, one endpoint per report stream.  Stream connections are
// persistent with auto-reconnect on broken pipe; datagram mode is
// fire-and-forget with a fallback to stream when the datagram socket
// does not exist.  Safe for concurrent use.
type Sender struct {
	dir      string
	datagram bool

	mu       sync.Mutex
	fds      map[Stream]int
	dgramFDs map[Stream]int
}

var _ Sink = (*Sender)(nil)

// NewSender makes a sender whose endpoints live in dir, named after
// the streams ("keyboard.sock", ...).  Datagram endpoints carry a
// ".dgram" suffix.
func NewSender(dir string, datagram bool) *Sender {
	return &Sender{
		dir:      dir,
		datagram: datagram,
		fds:      make(map[Stream]int),
		dgramFDs: make(map[Stream]int),
	}
}

// Close drops every cached connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for stream, fd := range s.fds {
		unix.Close(fd)
		delete(s.fds, stream)
	}
	for stream, fd := range s.dgramFDs {
		unix.Close(fd)
		delete(s.dgramFDs, stream)
	}
	return nil
}

// PostKeyboardReport implements Sink.
func (s *Sender) PostKeyboardReport(r KeyboardReport, timeNS uint64) error {
	return s.send(StreamKeyboard, r.Bytes(), timeNS)
}

// PostConsumerReport implements Sink.
func (s *Sender) PostConsumerReport(r ConsumerReport, timeNS uint64) error {
	return s.send(StreamConsumer, r.Bytes(), timeNS)
}

// PostAppleVendorTopCaseReport implements Sink.
func (s *Sender) PostAppleVendorTopCaseReport(r AppleVendorTopCaseReport, timeNS uint64) error {
	return s.send(StreamAppleVendorTopCase, r.Bytes(), timeNS)
}

// PostAppleVendorKeyboardReport implements Sink.
func (s *Sender) PostAppleVendorKeyboardReport(r AppleVendorKeyboardReport, timeNS uint64) error {
	return s.send(StreamAppleVendorKeyboard, r.Bytes(), timeNS)
}

// PostPointingReport implements Sink.
func (s *Sender) PostPointingReport(r PointingReport, timeNS uint64) error {
	return s.send(StreamPointing, r.Bytes(), timeNS)
}

func (s *Sender) endpoint(stream Stream) string {
	return filepath.Join(s.dir, string(stream)+".sock")
}

// send frames the payload as "<time> <hex>\n" and submits it.
func (s *Sender) send(stream Stream, payload []byte, timeNS uint64) error {
	line := []byte(fmt.Sprintf("%d %x\n", timeNS, payload))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.datagram {
		if err := s.sendDgram(stream, line); err == nil {
			return nil
		}
		// Fall back to stream mode below.
	}
	return s.sendStream(stream, line)
}

func (s *Sender) sendDgram(stream Stream, line []byte) error {
	fd, ok := s.dgramFDs[stream]
	if !ok {
		var err error
		fd, err = unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			return err
		}
		s.dgramFDs[stream] = fd
	}

	addr := &unix.SockaddrUnix{Name: s.endpoint(stream) + ".dgram"}
	if err := unix.Sendto(fd, line, 0, addr); err != nil {
		return err
	}
	return nil
}

func (s *Sender) sendStream(stream Stream, line []byte) error {
	fd, err := s.connected(stream)
	if err == nil {
		if err = s.writeAll(fd, line); err == nil {
			return nil
		}
		s.closeStream(stream)
	}

	// Reconnect and retry once.
	fd, err = s.connect(stream)
	if err != nil {
		return fmt.Errorf("virtualhid: %s: %w", stream, err)
	}
	if err := s.writeAll(fd, line); err != nil {
		s.closeStream(stream)
		return fmt.Errorf("virtualhid: %s: %w", stream, err)
	}
	return nil
}

func (s *Sender) connected(stream Stream) (int, error) {
	if fd, ok := s.fds[stream]; ok {
		return fd, nil
	}
	return s.connect(stream)
}

func (s *Sender) connect(stream Stream) (int, error) {
	s.closeStream(stream)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: s.endpoint(stream)}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	s.fds[stream] = fd
	return fd, nil
}

func (s *Sender) closeStream(stream Stream) {
	if fd, ok := s.fds[stream]; ok {
		unix.Close(fd)
		delete(s.fds, stream)
	}
}

func (s *Sender) writeAll(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return unix.EPIPE
		}
		data = data[n:]
	}
	return nil
}
