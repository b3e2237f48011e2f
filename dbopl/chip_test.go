package dbopl

import "testing"

// newTestChip builds tables and returns an initialized chip.
func newTestChip(rate uint32) *Chip {
	InitTables()
	c := NewChip()
	c.Setup(rate)
	return c
}

// writeTestVoice programs a near-pure carrier tone on channel 0:
// fnum 577, block 4, instant attack, held sustain.
func writeTestVoice(c *Chip) {
	c.WriteReg(0x20, 0x21)
	c.WriteReg(0x40, 0x3F)
	c.WriteReg(0x60, 0xF0)
	c.WriteReg(0x80, 0x0F)
	c.WriteReg(0x23, 0x21)
	c.WriteReg(0x43, 0x00)
	c.WriteReg(0x63, 0xF0)
	c.WriteReg(0x83, 0x0F)
	c.WriteReg(0xC0, 0x30)
	c.WriteReg(0xA0, 0x41)
	c.WriteReg(0xB0, 0x32)
}

func TestTables(t *testing.T) {
	InitTables()

	// Peak of the sine quarter has near-zero attenuation; the start of
	// the quarter is strongly attenuated.
	if logsinTable[255] != 0 {
		t.Errorf("logsinTable[255] = %d, want 0", logsinTable[255])
	}
	if logsinTable[0] < 2000 {
		t.Errorf("logsinTable[0] = %d, want strong attenuation", logsinTable[0])
	}

	if got := expOut(0, false); got != 4084 {
		t.Errorf("expOut(0) = %d, want 4084", got)
	}
	if got := expOut(0, true); got != -4084 {
		t.Errorf("expOut(0, neg) = %d, want -4084", got)
	}
	// One full power of two of attenuation halves the output.
	if got := expOut(256, false); got != 2042 {
		t.Errorf("expOut(256) = %d, want 2042", got)
	}
	if got := expOut(silenceAtt, false); got != 0 {
		t.Errorf("expOut(silence) = %d, want 0", got)
	}
	// Callers may overshoot the table domain.
	if got := expOut(0x40000, false); got != 0 {
		t.Errorf("expOut(overflow) = %d, want 0", got)
	}
}

func TestWaveAttenuationForms(t *testing.T) {
	InitTables()

	// Sine: symmetric, negative in the second half.
	a1, n1 := waveAttenuation(0, 0x080)
	a2, n2 := waveAttenuation(0, 0x280)
	if a1 != a2 || n1 || !n2 {
		t.Errorf("sine symmetry broken: (%d,%v) vs (%d,%v)", a1, n1, a2, n2)
	}

	// Half sine: silent in the negative half.
	if a, _ := waveAttenuation(1, 0x280); a != silenceAtt {
		t.Errorf("half sine negative half att = %d, want silence", a)
	}
	// Absolute sine: never negative.
	if _, neg := waveAttenuation(2, 0x280); neg {
		t.Error("absolute sine reported negative")
	}
	// Square: full level either side.
	if a, neg := waveAttenuation(6, 0x000); a != 0 || neg {
		t.Errorf("square positive half = (%d,%v)", a, neg)
	}
	if a, neg := waveAttenuation(6, 0x200); a != 0 || !neg {
		t.Errorf("square negative half = (%d,%v)", a, neg)
	}
}

func TestWriteRegFrequencyDecode(t *testing.T) {
	c := newTestChip(44100)

	c.WriteReg(0xA0, 0x41)
	c.WriteReg(0xB0, 0x12) // block 4, fnum high 2, no key-on
	if c.ch[0].fnum != 0x241 {
		t.Errorf("fnum = 0x%X, want 0x241", c.ch[0].fnum)
	}
	if c.ch[0].block != 4 {
		t.Errorf("block = %d, want 4", c.ch[0].block)
	}
	if c.ch[0].keyOn {
		t.Error("key on without bit 5")
	}

	c.WriteReg(0x20, 0x01) // mult 1
	inc := c.op[0].phaseInc
	if inc == 0 {
		t.Fatal("phase increment not computed")
	}
	// Doubling the multiplier doubles the step, up to truncation.
	c.WriteReg(0x20, 0x02) // mult 2
	if got := c.op[0].phaseInc; got < inc*2 || got > inc*2+1 {
		t.Errorf("phaseInc at mult 2 = %d, want ~%d", got, inc*2)
	}
}

func TestKeyOnOff(t *testing.T) {
	c := newTestChip(44100)
	writeTestVoice(c)

	if !c.op[0].keyOn || !c.op[3].keyOn {
		t.Fatal("channel 0 operators not keyed")
	}
	if c.op[3].egState != egDecay {
		t.Errorf("carrier egState = %d, want instant attack into decay", c.op[3].egState)
	}
	if c.op[3].egLevel != 0 {
		t.Errorf("carrier egLevel = %d, want 0 after instant attack", c.op[3].egLevel)
	}

	c.WriteReg(0xB0, 0x12) // key off
	if c.op[0].keyOn || c.op[3].keyOn {
		t.Fatal("operators still keyed after key off")
	}
	if c.op[3].egState != egRelease {
		t.Errorf("carrier egState = %d, want release", c.op[3].egState)
	}
}

func TestReleaseFadesToSilence(t *testing.T) {
	c := newTestChip(44100)
	writeTestVoice(c)

	buf := make([]int32, BlockFrames)
	c.GenerateBlock2(256, buf)

	c.WriteReg(0xB0, 0x12) // key off, release rate 15
	for i := 0; i < 8; i++ {
		c.GenerateBlock2(BlockFrames, buf)
	}
	for i, s := range buf {
		if s != 0 {
			t.Fatalf("sample %d = %d after release, want silence", i, s)
		}
	}
}

func TestWaveformGating(t *testing.T) {
	c := newTestChip(44100)

	// Without waveform select or OPL3 mode everything is a sine.
	c.op[0].wave = 4
	if got := c.effWave(4); got != 0 {
		t.Errorf("effWave = %d, want 0 with waveform select off", got)
	}
	c.WriteReg(0x01, 0x20)
	if got := c.effWave(4); got != 0 { // OPL2 masks to the first four
		t.Errorf("effWave = %d, want 0 (4 & 3) in OPL2", got)
	}
	if got := c.effWave(3); got != 3 {
		t.Errorf("effWave = %d, want 3 with waveform select on", got)
	}
	c.WriteReg(0x105, 0x01)
	if got := c.effWave(7); got != 7 {
		t.Errorf("effWave = %d, want 7 in OPL3 mode", got)
	}
}

func TestFourOpPairing(t *testing.T) {
	c := newTestChip(44100)
	c.WriteReg(0x105, 0x01)
	c.WriteReg(0x104, 0x01) // pair channels 0 and 3

	if !c.ch[0].fourOpPrimary || !c.ch[3].fourOpSecondary {
		t.Fatal("pair flags not set")
	}

	// Key-on through the primary keys all four operators.
	c.WriteReg(0xA0, 0x41)
	c.WriteReg(0xB0, 0x32)
	for _, s := range []int{0, 3, 6, 9} {
		if !c.op[s].keyOn {
			t.Errorf("slot %d not keyed through 4-op primary", s)
		}
	}

	c.WriteReg(0x104, 0x00)
	if c.ch[0].fourOpPrimary || c.ch[3].fourOpSecondary {
		t.Fatal("pair flags not cleared")
	}
}

func TestSecondBankAddressing(t *testing.T) {
	c := newTestChip(44100)

	c.WriteReg(0x140, 0x3F)
	if c.op[18].tl != 0x3F {
		t.Errorf("second bank operator tl = %d, want 0x3F", c.op[18].tl)
	}
	if c.op[0].tl != 0 {
		t.Error("first bank operator modified by second bank write")
	}

	c.WriteReg(0x1A0, 0x55)
	if c.ch[9].fnum != 0x55 {
		t.Errorf("second bank channel fnum = 0x%X, want 0x55", c.ch[9].fnum)
	}
}

func TestBlockStateContinuity(t *testing.T) {
	one := newTestChip(44100)
	two := newTestChip(44100)
	writeTestVoice(one)
	writeTestVoice(two)

	a := make([]int32, BlockFrames)
	one.GenerateBlock2(512, a)

	b := make([]int32, BlockFrames)
	two.GenerateBlock2(200, b)
	tail := make([]int32, BlockFrames)
	two.GenerateBlock2(312, tail)

	for i := 0; i < 200; i++ {
		if a[i] != b[i] {
			t.Fatalf("sample %d: %d != %d", i, a[i], b[i])
		}
	}
	for i := 0; i < 312; i++ {
		if a[200+i] != tail[i] {
			t.Fatalf("sample %d: %d != %d across block boundary", 200+i, a[200+i], tail[i])
		}
	}
}

func TestSetupResets(t *testing.T) {
	c := newTestChip(44100)
	writeTestVoice(c)
	c.WriteReg(0x105, 0x01)

	c.Setup(48000)
	if c.IsOPL3() {
		t.Error("OPL3 mode survived Setup")
	}
	if c.op[3].keyOn || c.op[3].egLevel != egSilent {
		t.Error("operator state survived Setup")
	}
	if c.rate != 48000 {
		t.Errorf("rate = %d, want 48000", c.rate)
	}

	buf := make([]int32, 64)
	c.GenerateBlock2(64, buf)
	for i, s := range buf {
		if s != 0 {
			t.Fatalf("sample %d = %d after reset, want silence", i, s)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	c := newTestChip(44100)
	writeTestVoice(c)

	warm := make([]int32, BlockFrames)
	c.GenerateBlock2(300, warm)

	snap := make([]byte, SerializeSize)
	if err := c.Serialize(snap); err != nil {
		t.Fatal(err)
	}

	want := make([]int32, BlockFrames)
	c.GenerateBlock2(256, want)

	r := NewChip()
	if err := r.Deserialize(snap); err != nil {
		t.Fatal(err)
	}
	got := make([]int32, BlockFrames)
	r.GenerateBlock2(256, got)

	for i := 0; i < 256; i++ {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d after restore, want %d", i, got[i], want[i])
		}
	}
}

func TestSerializeErrors(t *testing.T) {
	c := newTestChip(44100)
	if err := c.Serialize(make([]byte, SerializeSize-1)); err == nil {
		t.Error("Serialize accepted a short buffer")
	}
	if err := c.Deserialize(make([]byte, SerializeSize-1)); err == nil {
		t.Error("Deserialize accepted a short buffer")
	}
	bad := make([]byte, SerializeSize)
	bad[0] = 0xEE
	if err := c.Deserialize(bad); err == nil {
		t.Error("Deserialize accepted an unknown version")
	}
}
