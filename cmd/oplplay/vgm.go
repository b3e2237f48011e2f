package main

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// vgmTimebase is the rate all VGM wait counts are expressed in.
const vgmTimebase = 44100

// regEvent is one OPL register write at a position in the VGM
// timebase. Writes to the second YMF262 bank carry reg >= 0x100.
type regEvent struct {
	sample uint64
	reg    uint32
	val    uint8
}

type vgmSong struct {
	events       []regEvent
	totalSamples uint64 // song length in VGM timebase samples
}

// parseVGM extracts the OPL write stream from a VGM or gzipped VGM
// (.vgz) image. Supported chip commands: YM3812/YM3526 (0x5A/0x5B) and
// YMF262 port 0/1 (0x5E/0x5F). Writes for other chips are skipped;
// waits are kept so timing survives.
func parseVGM(data []byte) (*vgmSong, error) {
	if len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, err
		}
	}

	if len(data) < 0x40 || !bytes.Equal(data[0:4], []byte("Vgm ")) {
		return nil, fmt.Errorf("not a VGM file")
	}

	totalSamples := uint64(binary.LittleEndian.Uint32(data[0x18:0x1C]))
	dataStart := uint32(0x40)
	if off := binary.LittleEndian.Uint32(data[0x34:0x38]); off != 0 {
		dataStart = 0x34 + off
	}
	if int(dataStart) >= len(data) {
		return nil, fmt.Errorf("vgm data offset out of range")
	}

	song := &vgmSong{}
	pos := uint64(0)

	for i := int(dataStart); i < len(data); {
		cmd := data[i]
		switch {
		case cmd == 0x66:
			i = len(data)

		case cmd == 0x5A || cmd == 0x5B:
			if i+3 > len(data) {
				return nil, fmt.Errorf("vgm truncated command 0x%02X at offset %d", cmd, i)
			}
			song.events = append(song.events, regEvent{sample: pos, reg: uint32(data[i+1]), val: data[i+2]})
			i += 3
		case cmd == 0x5E || cmd == 0x5F:
			if i+3 > len(data) {
				return nil, fmt.Errorf("vgm truncated command 0x%02X at offset %d", cmd, i)
			}
			reg := uint32(data[i+1])
			if cmd == 0x5F {
				reg |= 0x100
			}
			song.events = append(song.events, regEvent{sample: pos, reg: reg, val: data[i+2]})
			i += 3

		case cmd == 0x61:
			if i+3 > len(data) {
				return nil, fmt.Errorf("vgm truncated wait at offset %d", i)
			}
			pos += uint64(binary.LittleEndian.Uint16(data[i+1 : i+3]))
			i += 3
		case cmd == 0x62:
			pos += 735
			i++
		case cmd == 0x63:
			pos += 882
			i++
		case cmd >= 0x70 && cmd <= 0x7F:
			pos += uint64(cmd&0x0F) + 1
			i++

		case cmd == 0x67:
			// Data block: 0x67 0x66 type len32 payload
			if i+7 > len(data) {
				return nil, fmt.Errorf("vgm truncated data block at offset %d", i)
			}
			blockLen := binary.LittleEndian.Uint32(data[i+3 : i+7])
			i += 7 + int(blockLen)

		// Writes for chips this player does not drive: skip by size.
		case cmd == 0x4F || cmd == 0x50:
			i += 2
		case cmd >= 0x51 && cmd <= 0x5D:
			i += 3
		case cmd >= 0x80 && cmd <= 0x8F:
			pos += uint64(cmd & 0x0F)
			i++
		case cmd >= 0xA0 && cmd <= 0xBF:
			i += 3
		case cmd >= 0xC0 && cmd <= 0xDF:
			i += 4
		case cmd >= 0xE0:
			i += 5

		default:
			return nil, fmt.Errorf("vgm unknown command 0x%02X at offset %d", cmd, i)
		}
	}

	if pos > totalSamples {
		totalSamples = pos
	}
	song.totalSamples = totalSamples
	return song, nil
}
