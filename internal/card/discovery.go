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
package card

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ostafen/aircard/internal/proto"
	"github.com/ostafen/aircard/internal/transport"
)

const (
	DefaultBroadcastAddr = "192.168.0.255"
	DefaultProbeInterval = 10 * time.Second
)

// Discovery broadcasts periodic probes and hands out a Card handle for
// every distinct (ip, mac) pair that answers, each exactly once.
type Discovery struct {
	tr      *transport.Transport
	log     *slog.Logger
	baddr   *net.UDPAddr
	cardCfg Config
	onCard  func(*Card)

	mtx     sync.Mutex
	cards   map[string]*Card
	stop    chan struct{}
	started bool

	wg sync.WaitGroup
}

// NewDiscovery prepares a Discovery probing broadcastAddr. onCard runs on
// the transport's receive goroutine and must not block.
func NewDiscovery(tr *transport.Transport, log *slog.Logger, broadcastAddr string, cardCfg Config, onCard func(*Card)) (*Discovery, error) {
	if broadcastAddr == "" {
		broadcastAddr = DefaultBroadcastAddr
	}
	ip := net.ParseIP(broadcastAddr)
	if ip == nil {
		addrs, err := net.LookupIP(broadcastAddr)
		if err != nil {
			return nil, err
		}
		ip = addrs[0]
	}

	d := &Discovery{
		tr:      tr,
		log:     log,
		baddr:   &net.UDPAddr{IP: ip, Port: cardCfg.withDefaults().Port},
		cardCfg: cardCfg,
		onCard:  onCard,
		cards:   make(map[string]*Card),
	}
	tr.SubscribeAll(d.handleDatagram)
	return d, nil
}

// Start sends a probe immediately and then every interval until Stop.
func (d *Discovery) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	d.mtx.Lock()
	if d.started {
		d.mtx.Unlock()
		return
	}
	d.started = true
	d.stop = make(chan struct{})
	stop := d.stop
	d.mtx.Unlock()

	d.probe()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.probe()
			case <-stop:
				return
			}
		}
	}()
}

// Stop cancels the periodic probe. Already discovered cards stay usable.
func (d *Discovery) Stop() {
	d.mtx.Lock()
	if d.started {
		d.started = false
		close(d.stop)
	}
	d.mtx.Unlock()
	d.wg.Wait()
}

// Close stops probing, closes every discovered card and clears the
// callback.
func (d *Discovery) Close() {
	d.Stop()

	d.mtx.Lock()
	defer d.mtx.Unlock()
	for _, c := range d.cards {
		c.Close()
	}
	d.cards = make(map[string]*Card)
	d.onCard = nil
}

// Cards returns the cards discovered so far.
func (d *Discovery) Cards() []*Card {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	out := make([]*Card, 0, len(d.cards))
	for _, c := range d.cards {
		out = append(out, c)
	}
	return out
}

// probe sends one broadcast datagram. Failures are logged, never fatal.
func (d *Discovery) probe() {
	if err := transport.SendBroadcast(d.baddr, proto.DiscoveryProbe); err != nil {
		d.log.Warn("discovery probe failed", "addr", d.baddr, "err", err)
	}
}

func (d *Discovery) handleDatagram(data []byte, addr *net.UDPAddr) {
	_, cmd, ok := proto.FrameCmd(data)
	if !ok || cmd != proto.CmdCardInfo {
		return
	}

	info, err := proto.ParseCardInfo(data)
	if err != nil {
		d.log.Warn("dropping datagram", "from", addr, "err", err)
		return
	}

	d.mtx.Lock()
	if _, seen := d.cards[info.Key()]; seen {
		d.mtx.Unlock()
		return
	}

	c := New(d.tr, d.log, info.IP, d.cardCfg)
	c.Info = info
	d.cards[info.Key()] = c
	onCard := d.onCard
	d.mtx.Unlock()

	d.log.Info("card discovered", "card", info.String(), "capacity", info.Capacity)
	if onCard != nil {
		onCard(c)
	}
}
