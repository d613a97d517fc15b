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

// Package proto implements the UDP wire format spoken by the WiFi SD/CF
// card family. All multi-byte fields on the wire are big-endian.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Network ports used by the card protocol.
const (
	CardPort = 24387 // UDP: discovery probes and read requests, card side
	HostPort = 24388 // UDP: card info and read responses, host side
)

// Magic is the 6-byte ASCII header every protocol frame starts with.
var Magic = [6]byte{'F', 'C', '1', '3', '0', '7'}

// Frame direction (byte 6).
const (
	DirToCard   = 1
	DirFromCard = 2
)

// Commands (byte 7).
const (
	CmdCardInfo = 1 // card identity, sent in response to a discovery probe
	CmdReadData = 4 // raw block read
)

// DiscoveryProbe is the raw payload broadcast to CardPort to solicit
// CmdCardInfo responses.
var DiscoveryProbe = []byte("KTC")

const (
	// HeaderSize covers magic, direction and command.
	HeaderSize = 8

	// ReadRequestSize is the size of a CmdReadData request frame.
	// One firmware revision is rumored to expect a 64-byte frame; every
	// captured packet so far carries 52 bytes, so 52 it is.
	ReadRequestSize = 52

	// ReadResponseHeaderSize is the number of bytes preceding the data
	// payload in a CmdReadData response frame.
	ReadResponseHeaderSize = 24

	// MaxReadSectors is the largest sector count a single read request
	// may carry.
	MaxReadSectors = 14

	credentialFieldSize = 16
)

// ErrMalformedPacket reports a datagram whose header, direction or command
// does not match the expected frame. Callers log and drop these.
var ErrMalformedPacket = errors.New("malformed packet")

// TimeoutError reports a block read whose response did not arrive within
// the deadline. It carries the original request frame for diagnostics.
type TimeoutError struct {
	Request []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("block read timed out (request of %d bytes)", len(e.Request))
}

// HasMagic reports whether data starts with the protocol magic.
func HasMagic(data []byte) bool {
	return len(data) >= len(Magic) && string(data[:len(Magic)]) == string(Magic[:])
}

// FrameCmd returns the direction and command bytes of a frame.
// It does not validate the magic.
func FrameCmd(data []byte) (dir, cmd byte, ok bool) {
	if len(data) < HeaderSize {
		return 0, 0, false
	}
	return data[6], data[7], true
}

// checkHeader validates magic, direction and command of an inbound frame.
func checkHeader(data []byte, wantCmd byte) error {
	if !HasMagic(data) {
		return fmt.Errorf("%w: bad magic", ErrMalformedPacket)
	}
	dir, cmd, ok := FrameCmd(data)
	if !ok {
		return fmt.Errorf("%w: truncated header", ErrMalformedPacket)
	}
	if dir != DirFromCard {
		return fmt.Errorf("%w: direction %d", ErrMalformedPacket, dir)
	}
	if cmd != wantCmd {
		return fmt.Errorf("%w: command %d, want %d", ErrMalformedPacket, cmd, wantCmd)
	}
	return nil
}

// ReadRequest is a CmdReadData request: read Count sectors starting at LBA.
type ReadRequest struct {
	LBA        uint32
	Count      uint16
	Username   string
	Password   string
	TransferID uint32
}

// MarshalBinary encodes the request into its fixed 52-byte frame.
func (r *ReadRequest) MarshalBinary() ([]byte, error) {
	if len(r.Username) > credentialFieldSize {
		return nil, fmt.Errorf("username exceeds %d bytes", credentialFieldSize)
	}
	if len(r.Password) > credentialFieldSize {
		return nil, fmt.Errorf("password exceeds %d bytes", credentialFieldSize)
	}

	buf := make([]byte, ReadRequestSize)
	copy(buf[0:6], Magic[:])
	buf[6] = DirToCard
	buf[7] = CmdReadData
	binary.BigEndian.PutUint32(buf[8:12], r.LBA)
	binary.BigEndian.PutUint16(buf[12:14], r.Count)
	buf[14] = byte(len(r.Username))
	buf[15] = byte(len(r.Password))
	copy(buf[16:32], r.Username)
	copy(buf[32:48], r.Password)
	binary.BigEndian.PutUint32(buf[48:52], r.TransferID)
	return buf, nil
}

// ReadResponse is one CmdReadData response datagram. Offset holds the
// frame's LBA offset field as sent by the card. A Card completes a read
// with the first datagram whose TransferID matches it.
type ReadResponse struct {
	LBA        uint32
	Offset     uint16
	Flags      uint16
	TransferID uint32
	Data       []byte
}

// ParseReadResponse decodes a CmdReadData response frame.
func ParseReadResponse(data []byte) (*ReadResponse, error) {
	if err := checkHeader(data, CmdReadData); err != nil {
		return nil, err
	}
	if len(data) < ReadResponseHeaderSize {
		return nil, fmt.Errorf("%w: response of %d bytes", ErrMalformedPacket, len(data))
	}

	nBytes := binary.BigEndian.Uint16(data[16:18])
	if int(ReadResponseHeaderSize)+int(nBytes) > len(data) {
		return nil, fmt.Errorf("%w: declares %d data bytes, datagram has %d",
			ErrMalformedPacket, nBytes, len(data)-ReadResponseHeaderSize)
	}

	return &ReadResponse{
		LBA:        binary.BigEndian.Uint32(data[8:12]),
		Offset:     binary.BigEndian.Uint16(data[12:14]),
		Flags:      binary.BigEndian.Uint16(data[14:16]),
		TransferID: binary.BigEndian.Uint32(data[18:22]),
		Data:       data[ReadResponseHeaderSize : ReadResponseHeaderSize+int(nBytes)],
	}, nil
}
