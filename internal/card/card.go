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

// Package card discovers WiFi SD/CF cards on the local network and issues
// authenticated block reads against them.
package card

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ostafen/aircard/internal/proto"
	"github.com/ostafen/aircard/internal/transport"
)

// ReadTimeout is how long a block read waits for its response datagram.
const ReadTimeout = 5 * time.Second

// Transfer ids start here and grow monotonically per card.
const firstTransferID = 93

const (
	DefaultUsername = "admin"
	DefaultPassword = "admin"
)

// Config carries the per-card knobs. Zero values select the defaults.
type Config struct {
	Username string
	Password string
	Timeout  time.Duration
	Port     int // card UDP port, proto.CardPort unless overridden by tests
}

func (cfg Config) withDefaults() Config {
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = ReadTimeout
	}
	if cfg.Port == 0 {
		cfg.Port = proto.CardPort
	}
	return cfg
}

// Card is a live handle to one card's IP. It correlates read responses to
// requests by transfer id; responses may arrive in any order.
type Card struct {
	Info *proto.CardInfo // identity from discovery, nil for user-created handles

	ip  net.IP
	cfg Config
	tr  *transport.Transport
	log *slog.Logger

	mtx     sync.Mutex
	nextTID uint32
	pending map[uint32]chan []byte
}

// New connects a handle to the card at ip and subscribes it to the
// transport's stream for that peer.
func New(tr *transport.Transport, log *slog.Logger, ip net.IP, cfg Config) *Card {
	c := &Card{
		ip:      ip,
		cfg:     cfg.withDefaults(),
		tr:      tr,
		log:     log.With("card", ip.String()),
		nextTID: firstTransferID,
		pending: make(map[uint32]chan []byte),
	}
	tr.Subscribe(ip, c.handleDatagram)
	return c
}

// IP returns the card's address.
func (c *Card) IP() net.IP { return c.ip }

// Close unsubscribes the card from the transport. Outstanding reads run
// into their timeout.
func (c *Card) Close() {
	c.tr.Unsubscribe(c.ip)
}

// ReadBlocks reads count 512-byte sectors starting at lba and returns the
// raw payload. count is expected in [1, proto.MaxReadSectors]; out-of-range
// values are logged but the request is still attempted, since the protocol
// does not forbid them.
func (c *Card) ReadBlocks(ctx context.Context, lba uint32, count uint16) ([]byte, error) {
	if count < 1 || count > proto.MaxReadSectors {
		c.log.Warn("sector count outside protocol range", "count", count)
	}

	req := proto.ReadRequest{
		LBA:      lba,
		Count:    count,
		Username: c.cfg.Username,
		Password: c.cfg.Password,
	}

	slot := make(chan []byte, 1)

	c.mtx.Lock()
	req.TransferID = c.nextTID
	c.nextTID++
	c.pending[req.TransferID] = slot
	c.mtx.Unlock()

	frame, err := req.MarshalBinary()
	if err != nil {
		c.evict(req.TransferID)
		return nil, err
	}

	err = transport.SendTo(&net.UDPAddr{IP: c.ip, Port: c.cfg.Port}, frame)
	if err != nil {
		c.evict(req.TransferID)
		return nil, err
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case data := <-slot:
		c.evict(req.TransferID)
		return data, nil
	case <-ctx.Done():
		c.evict(req.TransferID)
		return nil, ctx.Err()
	case <-timer.C:
		if c.evict(req.TransferID) {
			return nil, &proto.TimeoutError{Request: frame}
		}
		// The response won the race; its payload is already in the slot.
		return <-slot, nil
	}
}

// evict removes the pending slot for tid, reporting whether it was still
// registered. Exactly one of responder and requester wins the removal.
func (c *Card) evict(tid uint32) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	_, ok := c.pending[tid]
	delete(c.pending, tid)
	return ok
}

func (c *Card) handleDatagram(data []byte, addr *net.UDPAddr) {
	_, cmd, ok := proto.FrameCmd(data)
	if !ok || cmd != proto.CmdReadData {
		return
	}

	resp, err := proto.ParseReadResponse(data)
	if err != nil {
		c.log.Warn("dropping datagram", "from", addr, "err", err)
		return
	}

	c.mtx.Lock()
	slot, ok := c.pending[resp.TransferID]
	delete(c.pending, resp.TransferID)
	c.mtx.Unlock()

	if !ok {
		// Late response after a timeout, or a transfer we never issued.
		c.log.Debug("response for unknown transfer", "tid", resp.TransferID)
		return
	}
	slot <- resp.Data
}
