package card_test

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ostafen/aircard/internal/card"
	"github.com/ostafen/aircard/internal/proto"
	"github.com/ostafen/aircard/internal/transport"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCard listens on a loopback UDP port, records every request frame it
// receives and answers with the payload produced by respond (no answer if
// respond is nil).
type fakeCard struct {
	t        *testing.T
	conn     *net.UDPConn
	hostPort int
	respond  func(req []byte) [][]byte

	mtx      sync.Mutex
	requests [][]byte
}

func newFakeCard(t *testing.T, hostPort int, respond func(req []byte) [][]byte) *fakeCard {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	fc := &fakeCard{t: t, conn: conn, hostPort: hostPort, respond: respond}
	go fc.serve()
	t.Cleanup(func() { conn.Close() })
	return fc
}

func (fc *fakeCard) port() int {
	return fc.conn.LocalAddr().(*net.UDPAddr).Port
}

func (fc *fakeCard) seen() [][]byte {
	fc.mtx.Lock()
	defer fc.mtx.Unlock()
	return append([][]byte(nil), fc.requests...)
}

func (fc *fakeCard) serve() {
	buf := make([]byte, 2048)
	for {
		n, _, err := fc.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		req := append([]byte(nil), buf[:n]...)
		fc.mtx.Lock()
		fc.requests = append(fc.requests, req)
		fc.mtx.Unlock()

		if fc.respond == nil {
			continue
		}
		for _, resp := range fc.respond(req) {
			fc.conn.WriteToUDP(resp, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: fc.hostPort})
		}
	}
}

// readResponse crafts a CmdReadData response echoing tid with the given
// payload.
func readResponse(tid uint32, payload []byte) []byte {
	data := make([]byte, proto.ReadResponseHeaderSize+len(payload))
	copy(data[0:6], "FC1307")
	data[6] = proto.DirFromCard
	data[7] = proto.CmdReadData
	binary.BigEndian.PutUint16(data[14:16], 0x18)
	binary.BigEndian.PutUint16(data[16:18], uint16(len(payload)))
	binary.BigEndian.PutUint32(data[18:22], tid)
	copy(data[proto.ReadResponseHeaderSize:], payload)
	return data
}

func requestTID(req []byte) uint32 {
	return binary.BigEndian.Uint32(req[48:52])
}

func newTestCard(t *testing.T, respond func(req []byte) [][]byte, timeout time.Duration) (*card.Card, *fakeCard) {
	tr, err := transport.ListenPort(discardLogger(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	fc := newFakeCard(t, tr.LocalPort(), respond)

	c := card.New(tr, discardLogger(), net.IPv4(127, 0, 0, 1), card.Config{
		Port:    fc.port(),
		Timeout: timeout,
	})
	t.Cleanup(c.Close)
	return c, fc
}

func TestReadBlocks(t *testing.T) {
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}

	c, fc := newTestCard(t, func(req []byte) [][]byte {
		return [][]byte{readResponse(requestTID(req), payload)}
	}, time.Second)

	data, err := c.ReadBlocks(context.Background(), 42, 1)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	reqs := fc.seen()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0], proto.ReadRequestSize)
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(reqs[0][8:12]))
}

func TestReadBlocks_Timeout(t *testing.T) {
	c, fc := newTestCard(t, nil, 150*time.Millisecond)

	_, err := c.ReadBlocks(context.Background(), 0, 1)

	var timeoutErr *proto.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	want, merr := (&proto.ReadRequest{
		LBA:        0,
		Count:      1,
		Username:   "admin",
		Password:   "admin",
		TransferID: 93,
	}).MarshalBinary()
	require.NoError(t, merr)
	require.Equal(t, want, timeoutErr.Request)

	// The request still went out on the wire.
	require.Eventually(t, func() bool { return len(fc.seen()) == 1 },
		time.Second, 10*time.Millisecond)
}

func TestReadBlocks_TransferIDsMonotonic(t *testing.T) {
	c, fc := newTestCard(t, func(req []byte) [][]byte {
		return [][]byte{readResponse(requestTID(req), []byte{1})}
	}, time.Second)

	for i := 0; i < 3; i++ {
		_, err := c.ReadBlocks(context.Background(), uint32(i), 1)
		require.NoError(t, err)
	}

	reqs := fc.seen()
	require.Len(t, reqs, 3)
	require.Equal(t, uint32(93), requestTID(reqs[0]))
	require.Equal(t, uint32(94), requestTID(reqs[1]))
	require.Equal(t, uint32(95), requestTID(reqs[2]))
}

func TestReadBlocks_IgnoresUnknownTransferID(t *testing.T) {
	c, _ := newTestCard(t, func(req []byte) [][]byte {
		// A stale response precedes the real one; correlation is by tid,
		// not by arrival order.
		return [][]byte{
			readResponse(requestTID(req)+1000, []byte("stale")),
			readResponse(requestTID(req), []byte("fresh")),
		}
	}, time.Second)

	data, err := c.ReadBlocks(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), data)
}

func TestReadBlocks_ContextCancelled(t *testing.T) {
	c, _ := newTestCard(t, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.ReadBlocks(ctx, 0, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func cardInfoDatagram(lastIPOctet, lastMACOctet byte) []byte {
	data := make([]byte, 46)
	copy(data[0:6], "FC1307")
	data[6] = proto.DirFromCard
	data[7] = proto.CmdCardInfo
	copy(data[14:18], []byte{192, 168, 0, lastIPOctet})
	copy(data[18:24], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, lastMACOctet})
	copy(data[24:26], "SD")
	copy(data[26:37], "Ver 1.2.3\x00\x00")
	binary.BigEndian.PutUint32(data[37:41], 32768)
	data[41] = 1
	data[42] = 3
	copy(data[43:46], "abc")
	return data
}

func TestDiscovery_EmitsEachCardOnce(t *testing.T) {
	tr, err := transport.ListenPort(discardLogger(), 0)
	require.NoError(t, err)
	defer tr.Close()

	var (
		mtx   sync.Mutex
		found []*card.Card
	)
	d, err := card.NewDiscovery(tr, discardLogger(), "127.0.0.1", card.Config{}, func(c *card.Card) {
		mtx.Lock()
		found = append(found, c)
		mtx.Unlock()
	})
	require.NoError(t, err)
	defer d.Close()

	send := func(payload []byte) {
		require.NoError(t, transport.SendTo(
			&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: tr.LocalPort()}, payload))
	}

	send(cardInfoDatagram(123, 0xFF))
	send(cardInfoDatagram(123, 0xFF)) // duplicate, must not re-emit
	send(cardInfoDatagram(124, 0xFE)) // second card

	require.Eventually(t, func() bool {
		mtx.Lock()
		defer mtx.Unlock()
		return len(found) == 2
	}, time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	mtx.Lock()
	defer mtx.Unlock()
	require.Len(t, found, 2)
	require.Equal(t, "192.168.0.123", found[0].Info.IP.String())
	require.Equal(t, uint32(32768), found[0].Info.Capacity)
	require.Equal(t, "1.2.3", found[0].Info.Version)
	require.True(t, found[0].Info.APMode)
	require.Equal(t, "abc", found[0].Info.Subver)
	require.Len(t, d.Cards(), 2)
}
