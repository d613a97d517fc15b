// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package transport owns the single UDP socket the host listens on and
// demultiplexes inbound datagrams to per-peer and broadcast subscribers.
package transport

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/ostafen/aircard/internal/proto"
)

// Handler receives an inbound datagram. Handlers run on the receive
// goroutine and must not block; the datagram slice is owned by the handler.
type Handler func(data []byte, addr *net.UDPAddr)

// maxDatagramSize fits the largest read response the protocol produces
// (14 sectors of 512 bytes plus the response header) with ample headroom.
const maxDatagramSize = 64 * 1024

// Transport is the process-wide receive socket bound to proto.HostPort.
// It is oblivious to protocol semantics and performs no header validation.
type Transport struct {
	conn *net.UDPConn
	log  *slog.Logger

	mtx       sync.RWMutex
	peers     map[string]Handler
	broadcast []Handler

	closeOnce sync.Once
	done      chan struct{}
}

// Listen binds the host UDP port and starts the receive loop.
func Listen(log *slog.Logger) (*Transport, error) {
	return ListenPort(log, proto.HostPort)
}

// ListenPort binds an explicit local port. Used by tests to avoid the
// well-known port.
func ListenPort(log *slog.Logger, port int) (*Transport, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}

	t := &Transport{
		conn:  conn,
		log:   log,
		peers: make(map[string]Handler),
		done:  make(chan struct{}),
	}
	go t.receiveLoop()
	return t, nil
}

// LocalPort returns the port the receive socket is bound to.
func (t *Transport) LocalPort() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

// Subscribe installs the handler for datagrams originating from ip,
// replacing any existing one.
func (t *Transport) Subscribe(ip net.IP, h Handler) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.peers[ip.String()] = h
}

// SubscribeAll appends a handler invoked for every inbound datagram,
// before any per-peer handler.
func (t *Transport) SubscribeAll(h Handler) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.broadcast = append(t.broadcast, h)
}

// Unsubscribe removes the per-peer handler for ip, if any.
func (t *Transport) Unsubscribe(ip net.IP) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	delete(t.peers, ip.String())
}

// Close shuts the socket down and clears all handler tables.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()

		t.mtx.Lock()
		t.peers = make(map[string]Handler)
		t.broadcast = nil
		t.mtx.Unlock()
	})
	return err
}

func (t *Transport) receiveLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.log.Warn("udp receive failed", "err", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		t.dispatch(data, addr)
	}
}

// dispatch invokes every broadcast handler in registration order, then the
// matching per-peer handler if one is installed.
func (t *Transport) dispatch(data []byte, addr *net.UDPAddr) {
	t.mtx.RLock()
	broadcast := t.broadcast
	peer := t.peers[addr.IP.String()]
	t.mtx.RUnlock()

	for _, h := range broadcast {
		h(data, addr)
	}
	if peer != nil {
		peer(data, addr)
	}
}
