// Package opl provides OPL2/OPL3 FM sound generation behind a single
// bridge contract over two interchangeable emulator cores.
//
// Both backends expose the same lifecycle: construct, Init once, then a
// stream of register writes interleaved with Generate calls. Output is
// always interleaved 16-bit signed stereo PCM, left then right, exactly
// 2*frames values per Generate call.
//
// The bridge is a thin hot-path layer: it performs no locking, no
// register validation and no partial fills. Callers must drive a chip
// strictly sequentially from a single goroutine.
package opl

// Chip is the uniform contract implemented by both backend adapters.
// The backend is chosen at construction time and never switched.
type Chip interface {
	// Init configures the chip for the given output rate in Hz. It must
	// be called exactly once, after construction and before any WriteReg
	// or Generate call. The YMF262 backend ignores the argument and
	// always runs at its native rate (see NativeSampleRate).
	Init(sampleRate uint32)

	// WriteReg forwards a register write to the wrapped core. Registers
	// 0x100 and above address the second OPL3 bank. Out-of-range
	// addresses are the core's concern; the bridge does not validate.
	WriteReg(reg uint32, val uint8)

	// Generate fills out with frames interleaved stereo samples
	// (2*frames int16 values). frames == 0 is a valid no-op. out must
	// hold at least 2*frames values; the bridge never retains it.
	Generate(out []int16, frames int)

	// IsOPL3 reports whether the chip is currently in four-operator
	// OPL3 mode, as last set by register writes. Mode can change
	// mid-stream; this is never a value cached at Init time.
	IsOPL3() bool
}

// clipSample saturates a wide intermediate sample to the int16 range.
func clipSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
