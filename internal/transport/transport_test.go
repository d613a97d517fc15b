package transport_test

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ostafen/aircard/internal/transport"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mtx  sync.Mutex
	recv [][]byte
}

func (r *recorder) handle(data []byte, addr *net.UDPAddr) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.recv = append(r.recv, data)
}

func (r *recorder) datagrams() [][]byte {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([][]byte(nil), r.recv...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func sendTo(t *testing.T, port int, payload []byte) {
	t.Helper()
	err := transport.SendTo(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}, payload)
	require.NoError(t, err)
}

func TestTransport_BroadcastSubscribers(t *testing.T) {
	tr, err := transport.ListenPort(discardLogger(), 0)
	require.NoError(t, err)
	defer tr.Close()

	var first, second recorder
	tr.SubscribeAll(first.handle)
	tr.SubscribeAll(second.handle)

	sendTo(t, tr.LocalPort(), []byte("hello"))

	waitFor(t, func() bool { return len(first.datagrams()) == 1 && len(second.datagrams()) == 1 })
	require.Equal(t, []byte("hello"), first.datagrams()[0])
	require.Equal(t, []byte("hello"), second.datagrams()[0])
}

func TestTransport_PeerSubscription(t *testing.T) {
	tr, err := transport.ListenPort(discardLogger(), 0)
	require.NoError(t, err)
	defer tr.Close()

	var peer recorder
	tr.Subscribe(net.IPv4(127, 0, 0, 1), peer.handle)

	sendTo(t, tr.LocalPort(), []byte("abc"))
	waitFor(t, func() bool { return len(peer.datagrams()) == 1 })

	// A new subscription for the same peer replaces the old one.
	var replacement recorder
	tr.Subscribe(net.IPv4(127, 0, 0, 1), replacement.handle)

	sendTo(t, tr.LocalPort(), []byte("def"))
	waitFor(t, func() bool { return len(replacement.datagrams()) == 1 })
	require.Len(t, peer.datagrams(), 1)

	tr.Unsubscribe(net.IPv4(127, 0, 0, 1))
	sendTo(t, tr.LocalPort(), []byte("ghi"))

	time.Sleep(50 * time.Millisecond)
	require.Len(t, replacement.datagrams(), 1)
}

func TestTransport_CloseIsIdempotent(t *testing.T) {
	tr, err := transport.ListenPort(discardLogger(), 0)
	require.NoError(t, err)

	var rec recorder
	tr.SubscribeAll(rec.handle)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close()) // idempotent
}
