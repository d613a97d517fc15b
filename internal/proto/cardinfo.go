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
package proto

import (
	"encoding/binary"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// CardType discriminates the physical card form factor.
type CardType string

const (
	CardTypeSD CardType = "SD"
	CardTypeCF CardType = "CF"
)

// CardInfo is the identity a card announces in a CmdCardInfo response.
type CardInfo struct {
	IP      net.IP
	MAC     net.HardwareAddr
	Type    CardType
	Version string

	// Capacity is the raw block count from the wire. The field is a u32 in
	// 512-byte units and wraps for very large cards; treat it as advisory.
	Capacity uint32

	APMode bool
	Subver string
}

// Key identifies a card for deduplication purposes.
func (ci *CardInfo) Key() string {
	return ci.IP.String() + "|" + ci.MAC.String()
}

func (ci *CardInfo) String() string {
	return fmt.Sprintf("%s card %s (%s, fw %s)", ci.Type, ci.IP, ci.MAC, ci.Version)
}

// Card info response layout.
const (
	cardInfoMinSize    = 43
	cardInfoIPOffset   = 14
	cardInfoMACOffset  = 18
	cardInfoTypeOffset = 24
	cardInfoVerOffset  = 26
	cardInfoVerLen     = 11
	cardInfoCapOffset  = 37
	cardInfoAPOffset   = 41
	cardInfoSubLen     = 42
	cardInfoSubOffset  = 43
)

var versionRe = regexp.MustCompile(`Ver (\d+\.\d+\.\d+)`)

// ParseCardInfo decodes a CmdCardInfo response frame into a CardInfo.
func ParseCardInfo(data []byte) (*CardInfo, error) {
	if err := checkHeader(data, CmdCardInfo); err != nil {
		return nil, err
	}
	if len(data) < cardInfoMinSize {
		return nil, fmt.Errorf("%w: card info of %d bytes", ErrMalformedPacket, len(data))
	}

	info := &CardInfo{
		IP:  net.IPv4(data[cardInfoIPOffset], data[cardInfoIPOffset+1], data[cardInfoIPOffset+2], data[cardInfoIPOffset+3]),
		MAC: net.HardwareAddr(append([]byte(nil), data[cardInfoMACOffset:cardInfoMACOffset+6]...)),
	}

	switch string(data[cardInfoTypeOffset : cardInfoTypeOffset+2]) {
	case "CF":
		info.Type = CardTypeCF
	default:
		info.Type = CardTypeSD
	}

	ver := strings.TrimRight(string(data[cardInfoVerOffset:cardInfoVerOffset+cardInfoVerLen]), "\x00")
	if m := versionRe.FindStringSubmatch(ver); m != nil {
		info.Version = m[1]
	} else {
		info.Version = "Unknown"
	}

	info.Capacity = binary.BigEndian.Uint32(data[cardInfoCapOffset : cardInfoCapOffset+4])
	info.APMode = data[cardInfoAPOffset] == 1

	subLen := int(data[cardInfoSubLen])
	if cardInfoSubOffset+subLen > len(data) {
		subLen = len(data) - cardInfoSubOffset
	}
	info.Subver = string(data[cardInfoSubOffset : cardInfoSubOffset+subLen])

	return info, nil
}
