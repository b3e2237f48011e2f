package opl

import "testing"

func TestDBOPL_GenerateZeroFrames(t *testing.T) {
	d := NewDBOPL()
	d.Init(44100)
	d.Generate(nil, 0) // must not touch the buffer or panic
}

func TestDBOPL_TableInitOnce(t *testing.T) {
	a := NewDBOPL()
	b := NewDBOPL()
	a.Init(44100)
	b.Init(48000)

	if !dboplTablesBuilt {
		t.Fatal("tables not marked built after Init")
	}
	if dboplTableBuilds != 1 {
		t.Errorf("table builds = %d, want exactly 1 per process", dboplTableBuilds)
	}

	// Both instances must still produce audio.
	for i, c := range []*DBOPL{a, b} {
		writeVoice(c, 0x30)
		buf := make([]int16, 2*256)
		c.Generate(buf, 256)
		if allZero(buf) {
			t.Errorf("instance %d silent after shared table init", i)
		}
	}
}

func TestDBOPL_MonoDuplication(t *testing.T) {
	d := NewDBOPL()
	d.Init(44100)
	writeVoice(d, 0x30)

	buf := make([]int16, 2*600) // spans a chunk boundary
	d.Generate(buf, 600)

	if allZero(buf) {
		t.Fatal("expected audio output")
	}
	for i := 0; i < 600; i++ {
		if buf[i*2] != buf[i*2+1] {
			t.Fatalf("frame %d: left %d != right %d in two-operator mode", i, buf[i*2], buf[i*2+1])
		}
	}
}

func TestDBOPL_OutputLength(t *testing.T) {
	d := NewDBOPL()
	d.Init(44100)
	writeVoice(d, 0x30)

	// Guard values past the requested range must survive.
	buf := make([]int16, 2*100+4)
	buf[200], buf[201], buf[202], buf[203] = 0x7F, 0x7F, 0x7F, 0x7F
	d.Generate(buf, 100)
	if buf[200] != 0x7F || buf[203] != 0x7F {
		t.Error("Generate wrote past 2*frames samples")
	}
	if allZero(buf[:200]) {
		t.Error("Generate left requested range empty")
	}
}

func TestDBOPL_ChunkingTransparency(t *testing.T) {
	splits := [][]int{
		{1300},
		{700, 600},
		{512, 512, 276},
		{1, 1299},
		{511, 1, 788},
	}

	var want []int16
	for si, split := range splits {
		c := NewDBOPL()
		c.Init(44100)
		writeVoice(c, 0x30)

		got := make([]int16, 2*1300)
		pos := 0
		for _, n := range split {
			c.Generate(got[pos:], n)
			pos += n * 2
		}

		if si == 0 {
			want = got
			if allZero(want) {
				t.Fatal("reference output silent")
			}
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("split %v: sample %d = %d, want %d", split, i, got[i], want[i])
			}
		}
	}
}

func TestDBOPL_ModeTransition(t *testing.T) {
	d := NewDBOPL()
	d.Init(44100)

	if d.IsOPL3() {
		t.Fatal("fresh chip reports OPL3 mode")
	}
	d.WriteReg(0x105, 0x01)
	if !d.IsOPL3() {
		t.Fatal("IsOPL3 false after writing the NEW bit")
	}

	// Channel 0 panned hard left: the stereo path must not duplicate.
	writeVoice(d, 0x10)
	buf := make([]int16, 2*256)
	d.Generate(buf, 256)

	var leftNonZero bool
	for i := 0; i < 256; i++ {
		if buf[i*2] != 0 {
			leftNonZero = true
		}
		if buf[i*2+1] != 0 {
			t.Fatalf("frame %d: right channel %d, want silence with pan left", i, buf[i*2+1])
		}
	}
	if !leftNonZero {
		t.Fatal("left channel silent")
	}

	// Mode can change mid-stream; dropping NEW returns mono duplication.
	d.WriteReg(0x105, 0x00)
	if d.IsOPL3() {
		t.Fatal("IsOPL3 true after clearing the NEW bit")
	}
	d.Generate(buf, 256)
	for i := 0; i < 256; i++ {
		if buf[i*2] != buf[i*2+1] {
			t.Fatalf("frame %d: not duplicated after leaving OPL3 mode", i)
		}
	}
}

func TestDBOPL_SteadyTonePeriod(t *testing.T) {
	d := NewDBOPL()
	d.Init(44100)
	writeVoice(d, 0x30)

	buf := make([]int16, 2*512)
	d.Generate(buf, 512)

	// fnum 577, block 4: ~437.8 Hz, ~100.7 frames per period at
	// 44100 Hz, so ~5 rising crossings in 512 frames.
	got := risingCrossings(buf)
	if got < 3 || got > 8 {
		t.Errorf("rising zero crossings = %d, want ~5 for a ~438 Hz tone", got)
	}
}

func TestDBOPL_AmplificationShift(t *testing.T) {
	// Two-operator full-volume output doubles through the volume shift:
	// every sample must be even and within int16 range.
	d := NewDBOPL()
	d.Init(44100)
	writeVoice(d, 0x30)

	buf := make([]int16, 2*512)
	d.Generate(buf, 512)
	for i, s := range buf {
		if s&1 != 0 {
			t.Fatalf("sample %d = %d, want even values under a 1-bit volume shift", i, s)
		}
	}
}
