// oplplay plays the OPL2/OPL3 write stream of a VGM file through
// either bridge backend, or renders it to a WAV file.
package main

import (
	"encoding/binary"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/user-none/go-chip-opl"
)

// tailSamples of silence-decay rendered past the last event so release
// envelopes are not cut off, in VGM timebase samples.
const tailSamples = vgmTimebase / 2

func main() {
	core := flag.String("core", "dbopl", "emulator core: dbopl or ymf262")
	rate := flag.Uint("rate", 44100, "output sample rate in Hz (dbopl core only; ymf262 always runs at its native rate)")
	outPath := flag.String("o", "", "render to a WAV file instead of playing")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: oplplay [-core dbopl|ymf262] [-rate hz] [-o out.wav] file.vgm")
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}
	song, err := parseVGM(data)
	if err != nil {
		log.Fatalf("Failed to parse VGM: %v", err)
	}
	if len(song.events) == 0 {
		log.Fatal("No OPL writes in this VGM")
	}

	var chip opl.Chip
	sampleRate := uint32(*rate)
	switch *core {
	case "dbopl":
		chip = opl.NewDBOPL()
	case "ymf262":
		chip = opl.NewYMF262()
		sampleRate = opl.NativeSampleRate()
	default:
		log.Fatalf("Unknown core: %s (use dbopl or ymf262)", *core)
	}
	chip.Init(sampleRate)

	r := newSongRenderer(chip, sampleRate, song)

	if *outPath != "" {
		if err := writeWAV(*outPath, r, sampleRate); err != nil {
			log.Fatalf("Failed to write WAV: %v", err)
		}
		return
	}
	if err := play(r, sampleRate); err != nil {
		log.Fatalf("Audio playback failed: %v", err)
	}
}

// songRenderer streams a parsed song through the bridge, applying
// register writes at their converted frame positions. It implements
// io.Reader over little-endian int16 stereo PCM, the pull model the
// oto player consumes.
type songRenderer struct {
	chip   opl.Chip
	rate   uint32
	events []regEvent
	next   int

	frame    uint64 // frames rendered so far at the chip rate
	endFrame uint64
	scratch  []int16
	leftover []byte // rendered bytes that did not fit the last Read
}

func newSongRenderer(chip opl.Chip, rate uint32, song *vgmSong) *songRenderer {
	return &songRenderer{
		chip:     chip,
		rate:     rate,
		events:   song.events,
		endFrame: toFrames(song.totalSamples+tailSamples, rate),
		scratch:  make([]int16, 4096),
	}
}

// toFrames converts a VGM timebase position to a frame count at the
// chip rate, rounding down.
func toFrames(pos uint64, rate uint32) uint64 {
	return pos * uint64(rate) / vgmTimebase
}

func (r *songRenderer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.leftover) > 0 {
			c := copy(p[n:], r.leftover)
			r.leftover = r.leftover[c:]
			n += c
			continue
		}
		if r.frame >= r.endFrame {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}

		// Apply all writes due at the current frame, then render up to
		// the next event boundary.
		boundary := r.endFrame
		for r.next < len(r.events) {
			at := toFrames(r.events[r.next].sample, r.rate)
			if at > r.frame {
				boundary = at
				break
			}
			r.chip.WriteReg(r.events[r.next].reg, r.events[r.next].val)
			r.next++
		}

		frames := int(boundary - r.frame)
		if frames > len(r.scratch)/2 {
			frames = len(r.scratch) / 2
		}
		r.chip.Generate(r.scratch, frames)
		r.frame += uint64(frames)

		for i := 0; i < frames*2; i++ {
			r.leftover = append(r.leftover, byte(r.scratch[i]), byte(r.scratch[i]>>8))
		}
	}
	return n, nil
}

// play streams the renderer through oto until the song ends.
func play(r io.Reader, rate uint32) error {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(rate),
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	<-ready

	player := ctx.NewPlayer(r)
	player.Play()
	for player.IsPlaying() {
		time.Sleep(50 * time.Millisecond)
	}
	return player.Close()
}

// writeWAV renders the whole song and writes a 16-bit stereo RIFF WAV.
func writeWAV(path string, r io.Reader, rate uint32) error {
	pcm, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var hdr [44]byte
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+len(pcm)))
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], 2) // stereo
	binary.LittleEndian.PutUint32(hdr[24:], rate)
	binary.LittleEndian.PutUint32(hdr[28:], rate*4) // byte rate
	binary.LittleEndian.PutUint16(hdr[32:], 4)      // block align
	binary.LittleEndian.PutUint16(hdr[34:], 16)     // bits per sample
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(len(pcm)))

	if _, err := f.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := f.Write(pcm); err != nil {
		return err
	}
	return f.Close()
}
