package main

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/user-none/go-chip-opl"
)

// vgmImage builds a minimal VGM file: a 0x40-byte header with the given
// total sample count and the command stream appended.
func vgmImage(totalSamples uint32, commands ...byte) []byte {
	hdr := make([]byte, 0x40)
	copy(hdr, "Vgm ")
	hdr[0x18] = byte(totalSamples)
	hdr[0x19] = byte(totalSamples >> 8)
	hdr[0x1A] = byte(totalSamples >> 16)
	hdr[0x1B] = byte(totalSamples >> 24)
	return append(hdr, commands...)
}

func TestParseVGMWritesAndWaits(t *testing.T) {
	song, err := parseVGM(vgmImage(2000,
		0x5A, 0x20, 0x21, // OPL2 write at sample 0
		0x61, 0xE8, 0x03, // wait 1000
		0x73, // wait 4
		0x5A, 0xB0, 0x32, // write at sample 1004
		0x62, // wait 735
		0x66,
	))
	if err != nil {
		t.Fatal(err)
	}

	want := []regEvent{
		{sample: 0, reg: 0x20, val: 0x21},
		{sample: 1004, reg: 0xB0, val: 0x32},
	}
	if len(song.events) != len(want) {
		t.Fatalf("events = %d, want %d", len(song.events), len(want))
	}
	for i, ev := range want {
		if song.events[i] != ev {
			t.Errorf("event %d = %+v, want %+v", i, song.events[i], ev)
		}
	}
	if song.totalSamples != 2000 {
		t.Errorf("totalSamples = %d, want the header value 2000", song.totalSamples)
	}
}

func TestParseVGMSecondBank(t *testing.T) {
	song, err := parseVGM(vgmImage(0,
		0x5E, 0xA0, 0x41, // YMF262 port 0
		0x5F, 0x05, 0x01, // YMF262 port 1: second register bank
		0x66,
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(song.events) != 2 {
		t.Fatalf("events = %d, want 2", len(song.events))
	}
	if song.events[0].reg != 0xA0 {
		t.Errorf("port 0 reg = 0x%X, want 0xA0", song.events[0].reg)
	}
	if song.events[1].reg != 0x105 {
		t.Errorf("port 1 reg = 0x%X, want 0x105", song.events[1].reg)
	}
}

func TestParseVGMSkipsOtherChips(t *testing.T) {
	song, err := parseVGM(vgmImage(0,
		0x50, 0x9F, // PSG write
		0x52, 0x28, 0x00, // YM2612 write
		0xC0, 0x00, 0x00, 0x00, // Sega PCM write
		0xE0, 0x01, 0x02, 0x03, 0x04, // seek
		0x67, 0x66, 0x00, 0x02, 0x00, 0x00, 0x00, 0xAA, 0xBB, // data block
		0x5A, 0x20, 0x21,
		0x66,
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(song.events) != 1 || song.events[0].reg != 0x20 {
		t.Fatalf("events = %+v, want the single OPL write", song.events)
	}
}

func TestParseVGMWaitsExtendLength(t *testing.T) {
	// The header undercounts; the command stream wins.
	song, err := parseVGM(vgmImage(10, 0x63, 0x66))
	if err != nil {
		t.Fatal(err)
	}
	if song.totalSamples != 882 {
		t.Errorf("totalSamples = %d, want 882", song.totalSamples)
	}
}

func TestParseVGMGzip(t *testing.T) {
	plain := vgmImage(0, 0x5A, 0x20, 0x21, 0x66)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	song, err := parseVGM(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(song.events) != 1 {
		t.Fatalf("events = %d, want 1 from gzipped image", len(song.events))
	}
}

func TestParseVGMErrors(t *testing.T) {
	if _, err := parseVGM([]byte("not a vgm file at all")); err == nil {
		t.Error("accepted a non-VGM image")
	}
	if _, err := parseVGM(vgmImage(0, 0x3F)); err == nil {
		t.Error("accepted an unknown command")
	}
	if _, err := parseVGM(vgmImage(0, 0x5A, 0x20)); err == nil {
		t.Error("accepted a truncated write")
	}
}

func TestSongRendererLength(t *testing.T) {
	song, err := parseVGM(vgmImage(1000,
		0x5A, 0x20, 0x21,
		0x5A, 0xB0, 0x32,
		0x66,
	))
	if err != nil {
		t.Fatal(err)
	}

	chip := opl.NewDBOPL()
	chip.Init(44100)
	r := newSongRenderer(chip, 44100, song)

	pcm, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	wantFrames := toFrames(1000+tailSamples, 44100)
	if got := uint64(len(pcm)); got != wantFrames*4 {
		t.Errorf("rendered %d bytes, want %d (4 per stereo frame)", got, wantFrames*4)
	}
}
