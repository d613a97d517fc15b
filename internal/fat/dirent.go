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
package fat

import (
	"encoding/binary"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

const dirEntrySize = 32

// Directory entry attributes and name markers.
const (
	attrLongName  = 0x0F
	attrDirectory = 0x10

	entryEnd    = 0x00 // no entry at or past this slot
	entryFree   = 0xE5 // deleted slot
	kanjiEscape = 0x05 // name actually starts with 0xE5
)

// DirEntry is a parsed FAT directory entry with its long name resolved.
type DirEntry struct {
	Name         string
	Size         uint32
	IsDir        bool
	FirstCluster uint32
	Created      time.Time
	Modified     time.Time
}

// dirParser consumes raw directory clusters and accumulates parsed
// entries. A long-name chain may straddle a cluster boundary, so the
// pending LFN bytes survive across feed calls.
type dirParser struct {
	lfn     []byte // pending long name, raw UTF-16LE
	entries []DirEntry
	done    bool
}

// feed parses the 32-byte entries of one directory cluster. It sets done
// when the end-of-directory marker is seen.
func (p *dirParser) feed(data []byte) error {
	for off := 0; off+dirEntrySize <= len(data); off += dirEntrySize {
		e := data[off : off+dirEntrySize]

		if e[0] == entryEnd {
			p.done = true
			return nil
		}
		if e[0] == entryFree {
			continue
		}

		if e[11] == attrLongName {
			// Fragments are stored highest-order first; prepending each
			// one yields the name in logical order.
			p.lfn = append(lfnFragment(e), p.lfn...)
			continue
		}

		entry, err := parseShortEntry(e, p.lfn)
		p.lfn = nil
		if err != nil {
			return err
		}
		p.entries = append(p.entries, entry)
	}
	return nil
}

// lfnFragment extracts the up-to-13 UTF-16LE characters of one long-name
// entry, truncated at the first U+0000.
func lfnFragment(e []byte) []byte {
	raw := make([]byte, 0, 26)
	raw = append(raw, e[1:11]...)
	raw = append(raw, e[14:26]...)
	raw = append(raw, e[28:32]...)

	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			return raw[:i]
		}
	}
	return raw
}

func parseShortEntry(e []byte, lfn []byte) (DirEntry, error) {
	name, err := entryName(e, lfn)
	if err != nil {
		return DirEntry{}, err
	}

	first := uint32(binary.LittleEndian.Uint16(e[20:22]))<<16 |
		uint32(binary.LittleEndian.Uint16(e[26:28]))

	return DirEntry{
		Name:         name,
		Size:         binary.LittleEndian.Uint32(e[28:32]),
		IsDir:        e[11]&attrDirectory != 0,
		FirstCluster: first,
		Created:      fatTimestamp(binary.LittleEndian.Uint16(e[16:18]), binary.LittleEndian.Uint16(e[14:16])),
		Modified:     fatTimestamp(binary.LittleEndian.Uint16(e[24:26]), binary.LittleEndian.Uint16(e[22:24])),
	}, nil
}

func entryName(e []byte, lfn []byte) (string, error) {
	if len(lfn) > 0 {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).
			NewDecoder().Bytes(lfn)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}

	base := make([]byte, 8)
	copy(base, e[0:8])
	if base[0] == kanjiEscape {
		base[0] = 0xE5
	}

	name := strings.TrimRight(string(base), " ")
	if ext := strings.TrimRight(string(e[8:11]), " "); ext != "" {
		name += "." + ext
	}
	return name, nil
}

// fatTimestamp decodes the FAT date and time words. Entries with a zero
// month or day decode to the Unix epoch.
func fatTimestamp(date, tm uint16) time.Time {
	day := int(date & 0x1F)
	month := int(date >> 5 & 0xF)
	year := 1980 + int(date>>9)

	if month == 0 || day == 0 {
		return time.Unix(0, 0).UTC()
	}

	hours := int(tm >> 11)
	minutes := int(tm >> 5 & 0x3F)
	seconds := int(tm&0x1F) * 2

	return time.Date(year, time.Month(month), day, hours, minutes, seconds, 0, time.UTC)
}

// NamesEqual compares two entry names the way FAT short names compare:
// ASCII case-insensitive. Bytes outside the ASCII letters compare
// verbatim, so non-ASCII long names match exactly.
func NamesEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
