package opl

import "github.com/user-none/go-chip-opl/ymf262"

// volAmpYMF262 is the amplification shift for the YMF262 backend. Zero
// today; kept as a hook for volume parity with the DBOPL backend.
const volAmpYMF262 = 0

// YMF262 drives the per-sample streaming YMF262 core. The core always
// runs at its fixed native rate: resampling at write time would corrupt
// the sub-sample timing of buffered register writes, so hosts that need
// a different rate must rate-adapt the output stream themselves.
type YMF262 struct {
	chip *ymf262.Chip
}

// NewYMF262 creates a zeroed YMF262-backed chip. Init must be called
// before any write or generate call.
func NewYMF262() *YMF262 {
	return &YMF262{chip: ymf262.NewChip()}
}

// NativeSampleRate returns the fixed rate in Hz the YMF262 backend
// generates at, independent of any instance.
func NativeSampleRate() uint32 {
	return ymf262.RateNative
}

// Init fully resets the core at its native rate. sampleRate is ignored.
func (y *YMF262) Init(sampleRate uint32) {
	_ = sampleRate
	y.chip.Reset(ymf262.RateNative)
}

// WriteReg queues the write inside the core with a sample timestamp so
// its effect lands at the correct offset within the next generated
// block.
func (y *YMF262) WriteReg(reg uint32, val uint8) {
	y.chip.WriteRegBuffered(uint16(reg), val)
}

// IsOPL3 reports the core's NEW bit (register 0x105).
func (y *YMF262) IsOPL3() bool {
	return y.chip.IsOPL3()
}

// Generate delegates the whole request to the core's streaming
// primitive, which drains buffered writes at their recorded offsets and
// emits interleaved stereo int16 directly, then applies the volume
// parity shift and clamp in place.
func (y *YMF262) Generate(out []int16, frames int) {
	buf := out[:frames*2]
	y.chip.GenerateStream(buf)
	for i, s := range buf {
		buf[i] = clipSample(int32(s) << volAmpYMF262)
	}
}
