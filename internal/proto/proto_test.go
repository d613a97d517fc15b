package proto_test

import (
	"encoding/binary"
	"testing"

	"github.com/ostafen/aircard/internal/proto"
	"github.com/stretchr/testify/require"
)

func cardInfoDatagram() []byte {
	data := make([]byte, 46)
	copy(data[0:6], "FC1307")
	data[6] = 0x02
	data[7] = 0x01
	copy(data[14:18], []byte{0xC0, 0xA8, 0x00, 0x7B})
	copy(data[18:24], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	copy(data[24:26], "SD")
	copy(data[26:37], "Ver 1.2.3\x00\x00")
	copy(data[37:41], []byte{0x00, 0x00, 0x80, 0x00})
	data[41] = 0x01
	data[42] = 0x03
	copy(data[43:46], "abc")
	return data
}

func TestParseCardInfo(t *testing.T) {
	info, err := proto.ParseCardInfo(cardInfoDatagram())
	require.NoError(t, err)

	require.Equal(t, "192.168.0.123", info.IP.String())
	require.Equal(t, "aa:bb:cc:dd:ee:ff", info.MAC.String())
	require.Equal(t, proto.CardTypeSD, info.Type)
	require.Equal(t, "1.2.3", info.Version)
	require.Equal(t, uint32(32768), info.Capacity)
	require.True(t, info.APMode)
	require.Equal(t, "abc", info.Subver)
}

func TestParseCardInfo_UnknownVersion(t *testing.T) {
	data := cardInfoDatagram()
	copy(data[26:37], "garbage\x00\x00\x00\x00")

	info, err := proto.ParseCardInfo(data)
	require.NoError(t, err)
	require.Equal(t, "Unknown", info.Version)
}

func TestParseCardInfo_Malformed(t *testing.T) {
	bad := cardInfoDatagram()
	bad[0] = 'X'
	_, err := proto.ParseCardInfo(bad)
	require.ErrorIs(t, err, proto.ErrMalformedPacket)

	wrongDir := cardInfoDatagram()
	wrongDir[6] = 0x01
	_, err = proto.ParseCardInfo(wrongDir)
	require.ErrorIs(t, err, proto.ErrMalformedPacket)

	wrongCmd := cardInfoDatagram()
	wrongCmd[7] = 0x04
	_, err = proto.ParseCardInfo(wrongCmd)
	require.ErrorIs(t, err, proto.ErrMalformedPacket)
}

func TestReadRequest_MarshalBinary(t *testing.T) {
	req := proto.ReadRequest{
		LBA:        0,
		Count:      1,
		Username:   "admin",
		Password:   "admin",
		TransferID: 93,
	}

	buf, err := req.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, proto.ReadRequestSize)

	require.Equal(t, "FC1307", string(buf[0:6]))
	require.Equal(t, byte(1), buf[6])
	require.Equal(t, byte(4), buf[7])
	require.Equal(t, uint32(0), binary.BigEndian.Uint32(buf[8:12]))
	require.Equal(t, uint16(1), binary.BigEndian.Uint16(buf[12:14]))
	require.Equal(t, byte(5), buf[14])
	require.Equal(t, byte(5), buf[15])
	require.Equal(t, "admin", string(buf[16:21]))
	require.Equal(t, [11]byte{}, [11]byte(buf[21:32]))
	require.Equal(t, "admin", string(buf[32:37]))
	require.Equal(t, uint32(93), binary.BigEndian.Uint32(buf[48:52]))
}

func TestReadRequest_CredentialsTooLong(t *testing.T) {
	req := proto.ReadRequest{Username: "0123456789abcdefg", Password: "admin"}
	_, err := req.MarshalBinary()
	require.Error(t, err)
}

func TestParseReadResponse(t *testing.T) {
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}

	data := make([]byte, proto.ReadResponseHeaderSize+len(payload))
	copy(data[0:6], "FC1307")
	data[6] = 0x02
	data[7] = 0x04
	binary.BigEndian.PutUint32(data[8:12], 2048)
	binary.BigEndian.PutUint16(data[12:14], 3)
	binary.BigEndian.PutUint16(data[14:16], 0x18)
	binary.BigEndian.PutUint16(data[16:18], uint16(len(payload)))
	binary.BigEndian.PutUint32(data[18:22], 95)
	copy(data[proto.ReadResponseHeaderSize:], payload)

	resp, err := proto.ParseReadResponse(data)
	require.NoError(t, err)
	require.Equal(t, uint32(2048), resp.LBA)
	require.Equal(t, uint16(3), resp.Offset)
	require.Equal(t, uint16(0x18), resp.Flags)
	require.Equal(t, uint32(95), resp.TransferID)
	require.Equal(t, payload, resp.Data)
}

func TestParseReadResponse_TruncatedData(t *testing.T) {
	data := make([]byte, proto.ReadResponseHeaderSize+10)
	copy(data[0:6], "FC1307")
	data[6] = 0x02
	data[7] = 0x04
	binary.BigEndian.PutUint16(data[16:18], 512) // declares more than the datagram holds

	_, err := proto.ParseReadResponse(data)
	require.ErrorIs(t, err, proto.ErrMalformedPacket)
}
