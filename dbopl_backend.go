package opl

import "github.com/user-none/go-chip-opl/dbopl"

// volAmpDBOPL is the fixed amplification shift applied to DBOPL core
// output before clamping. Calibration constant matching the reference
// player's volume convention; do not re-derive.
const volAmpDBOPL = 1

// dboplTablesBuilt records whether the shared DBOPL lookup tables have
// been computed. Process-wide, write-once. The single-threaded calling
// convention makes the unlocked check-and-set safe, including for hosts
// that create several instances back to back.
var dboplTablesBuilt bool

// dboplTableBuilds counts table constructions. Test instrumentation.
var dboplTableBuilds int

// DBOPL drives the block-oriented DBOPL core. The core honors the
// caller's sample rate directly and generates at most
// dbopl.BlockFrames frames per primitive call, so Generate chunks the
// request through a fixed wide-sample scratch buffer.
type DBOPL struct {
	chip *dbopl.Chip

	// Wide intermediate samples for one block: mono uses the first
	// BlockFrames entries, stereo uses interleaved pairs. Never exposed
	// to callers.
	scratch [dbopl.BlockFrames * 2]int32
}

// NewDBOPL creates a zeroed DBOPL-backed chip. Init must be called
// before any write or generate call.
func NewDBOPL() *DBOPL {
	return &DBOPL{chip: dbopl.NewChip()}
}

// Init builds the shared lookup tables on the first initialization of
// any DBOPL instance in the process, then configures the core for the
// given output rate.
func (d *DBOPL) Init(sampleRate uint32) {
	if !dboplTablesBuilt {
		dbopl.InitTables()
		dboplTablesBuilt = true
		dboplTableBuilds++
	}
	d.chip.Setup(sampleRate)
}

// WriteReg applies a register write immediately to the core's register
// state.
func (d *DBOPL) WriteReg(reg uint32, val uint8) {
	d.chip.WriteReg(reg, val)
}

// IsOPL3 reports the core's live NEW bit (register 0x105).
func (d *DBOPL) IsOPL3() bool {
	return d.chip.IsOPL3()
}

// Generate produces frames interleaved stereo samples. The core's block
// primitive yields one wide sample per frame in two-operator mode and a
// separated left/right pair per frame in OPL3 mode; either way every
// sample is amplified, clamped and written out as stereo, duplicating
// the mono signal to both slots when needed.
func (d *DBOPL) Generate(out []int16, frames int) {
	pos := 0
	for frames > 0 {
		n := frames
		if n > dbopl.BlockFrames {
			n = dbopl.BlockFrames
		}

		if !d.chip.IsOPL3() {
			d.chip.GenerateBlock2(n, d.scratch[:])
			for i := 0; i < n; i++ {
				s := clipSample(d.scratch[i] << volAmpDBOPL)
				out[pos] = s
				out[pos+1] = s
				pos += 2
			}
		} else {
			d.chip.GenerateBlock3(n, d.scratch[:])
			for i := 0; i < n; i++ {
				out[pos] = clipSample(d.scratch[i*2] << volAmpDBOPL)
				out[pos+1] = clipSample(d.scratch[i*2+1] << volAmpDBOPL)
				pos += 2
			}
		}

		frames -= n
	}
}
