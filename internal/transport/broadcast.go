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
package transport

import (
	"net"
)

// SendBroadcast opens a transient UDP socket with SO_BROADCAST set, sends
// payload to addr and closes the socket.
func SendBroadcast(addr *net.UDPAddr, payload []byte) error {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var optErr error
	if err := raw.Control(func(fd uintptr) {
		optErr = setBroadcast(fd)
	}); err != nil {
		return err
	}
	if optErr != nil {
		return optErr
	}

	_, err = conn.WriteToUDP(payload, addr)
	return err
}

// SendTo opens a transient UDP socket, sends payload to addr and closes
// the socket. The card replies to the well-known host port, not to the
// transient source port, so the socket is not kept around.
func SendTo(addr *net.UDPAddr, payload []byte) error {
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write(payload)
	return err
}
