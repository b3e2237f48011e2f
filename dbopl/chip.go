// Package dbopl implements a block-oriented OPL2/OPL3 FM core.
//
// Register writes apply immediately. Generation is bounded: each
// GenerateBlock call produces at most BlockFrames frames of wide (int32)
// samples, mono in two-operator mode and interleaved stereo in OPL3
// mode. The shared output tables must be built once per process with
// InitTables before the first Setup.
package dbopl

import "math"

const (
	// BlockFrames is the largest number of frames one GenerateBlock
	// call produces.
	BlockFrames = 512

	// masterRate is the OPL sample rate the frequency registers are
	// defined against. The core rescales phase steps from it to the
	// configured output rate.
	masterRate = 49716
)

// slotIndex maps a register offset (reg & 0x1F) within an operator bank
// to an operator index, or -1 for the gaps in the map.
var slotIndex = [32]int{
	0, 1, 2, 3, 4, 5, -1, -1,
	6, 7, 8, 9, 10, 11, -1, -1,
	12, 13, 14, 15, 16, 17, -1, -1,
	-1, -1, -1, -1, -1, -1, -1, -1,
}

// slotChan maps an operator index within a bank to its channel.
var slotChan = [18]int{0, 1, 2, 0, 1, 2, 3, 4, 5, 3, 4, 5, 6, 7, 8, 6, 7, 8}

// chanSlot maps a channel within a bank to its modulator operator; the
// carrier is three slots up.
var chanSlot = [9]int{0, 1, 2, 6, 7, 8, 12, 13, 14}

// multVal holds the MULT field frequency multipliers.
var multVal = [16]float64{0.5, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 12, 12, 15, 15}

type channel struct {
	fnum     uint16
	block    uint8
	feedback uint8
	conn     bool // algorithm: false = FM (serial), true = additive
	panL     bool
	panR     bool
	keyOn    bool

	// 4-op pairing from register 0x104. The primary channel renders
	// the whole pair; the secondary is skipped during generation.
	fourOpPrimary   bool
	fourOpSecondary bool
}

// Chip is one DBOPL core instance. The zero value is the created-but-
// uninitialized state; Setup must run before writes or generation.
type Chip struct {
	op [36]operator
	ch [18]channel

	rate uint32

	opl3Mode bool  // NEW bit, register 0x105
	waveSel  bool  // OPL2 waveform select enable, register 0x01 bit 5
	noteSel  bool  // NTS bit, register 0x08 (stored)
	connSel  uint8 // 4-op connection bits, register 0x104
	rhythm   uint8 // register 0xBD

	// TODO: synthesize the five rhythm voices when 0xBD bit 5 is set;
	// melodic channels 6-8 currently keep playing regardless.
	// TODO: apply the tremolo/vibrato LFOs; the per-operator enables
	// and the 0xBD depth bits are decoded and stored only.
	tremoloDepth bool
	vibratoDepth bool
}

// NewChip allocates a zeroed chip instance.
func NewChip() *Chip {
	return &Chip{}
}

// Setup resets all chip state and configures phase scaling for the
// given output rate in Hz. Must be called once before any write or
// generate call.
func (c *Chip) Setup(rate uint32) {
	*c = Chip{rate: rate}
	for i := range c.op {
		c.op[i].egState = egRelease
		c.op[i].egLevel = egSilent
	}
	for i := range c.ch {
		c.ch[i].panL = true
		c.ch[i].panR = true
	}
}

// IsOPL3 reports the live NEW bit.
func (c *Chip) IsOPL3() bool {
	return c.opl3Mode
}

// effWave gates an operator's waveform select by chip mode: all eight
// waveforms in OPL3 mode, the first four when OPL2 waveform select is
// enabled, sine otherwise.
func (c *Chip) effWave(w uint8) uint8 {
	if c.opl3Mode {
		return w & 7
	}
	if !c.waveSel {
		return 0
	}
	return w & 3
}

// updatePhaseInc recomputes one operator's phase step from its channel
// frequency, rescaled from the OPL master rate to the output rate.
func (c *Chip) updatePhaseInc(slot int) {
	chIdx := slotChan[slot%18] + slot/18*9
	ch := &c.ch[chIdx]
	op := &c.op[slot]

	op.keyCode = ch.block<<1 | uint8(ch.fnum>>9)

	hz := float64(ch.fnum) * float64(uint32(1)<<ch.block) * masterRate / (1 << 20) * multVal[op.mult]
	step := hz / float64(c.rate) * (1 << 32)
	if step >= 1<<32 {
		step = math.Mod(step, 1<<32)
	}
	op.phaseInc = uint32(step)
}

// updateChannelFreq recomputes phase steps for both operators of a
// channel after a frequency register write.
func (c *Chip) updateChannelFreq(chIdx int) {
	base := chanSlot[chIdx%9] + chIdx/9*18
	c.updatePhaseInc(base)
	c.updatePhaseInc(base + 3)
}

// setKeyOn keys a channel on or off. The primary channel of an enabled
// 4-op pair keys all four operators; key-on writes to the secondary
// half are ignored.
func (c *Chip) setKeyOn(chIdx int, on bool) {
	ch := &c.ch[chIdx]
	if ch.fourOpSecondary {
		ch.keyOn = on
		return
	}
	ch.keyOn = on

	base := chanSlot[chIdx%9] + chIdx/9*18
	slots := []int{base, base + 3}
	if ch.fourOpPrimary {
		base2 := chanSlot[(chIdx+3)%9] + chIdx/9*18
		slots = append(slots, base2, base2+3)
	}
	for _, s := range slots {
		if on {
			c.op[s].setKeyOn()
		} else {
			c.op[s].setKeyOff()
		}
	}
}

// WriteReg decodes and applies a register write. Registers 0x100 and
// above address the second bank. Unknown addresses are ignored.
func (c *Chip) WriteReg(reg uint32, val uint8) {
	bank := 0
	if reg&0x100 != 0 {
		bank = 1
	}
	low := uint8(reg)

	switch {
	case low == 0x01 && bank == 0:
		c.waveSel = val&0x20 != 0
	case low == 0x08 && bank == 0:
		c.noteSel = val&0x40 != 0
	case low == 0x04 && bank == 1:
		c.writeConnectionSel(val)
	case low == 0x05 && bank == 1:
		c.opl3Mode = val&0x01 != 0
	case low == 0xBD && bank == 0:
		c.rhythm = val
		c.tremoloDepth = val&0x80 != 0
		c.vibratoDepth = val&0x40 != 0

	case low >= 0x20 && low <= 0x35:
		if slot := slotIndex[low&0x1F]; slot >= 0 {
			s := slot + bank*18
			op := &c.op[s]
			op.am = val&0x80 != 0
			op.vib = val&0x40 != 0
			op.sus = val&0x20 != 0
			op.ksr = val&0x10 != 0
			op.mult = val & 0x0F
			c.updatePhaseInc(s)
		}
	case low >= 0x40 && low <= 0x55:
		if slot := slotIndex[low&0x1F]; slot >= 0 {
			op := &c.op[slot+bank*18]
			op.ksl = val >> 6
			op.tl = val & 0x3F
		}
	case low >= 0x60 && low <= 0x75:
		if slot := slotIndex[low&0x1F]; slot >= 0 {
			op := &c.op[slot+bank*18]
			op.ar = val >> 4
			op.dr = val & 0x0F
		}
	case low >= 0x80 && low <= 0x95:
		if slot := slotIndex[low&0x1F]; slot >= 0 {
			op := &c.op[slot+bank*18]
			op.sl = val >> 4
			op.rr = val & 0x0F
		}
	case low >= 0xE0 && low <= 0xF5:
		if slot := slotIndex[low&0x1F]; slot >= 0 {
			c.op[slot+bank*18].wave = val & 0x07
		}

	case low >= 0xA0 && low <= 0xA8:
		chIdx := int(low&0x0F) + bank*9
		c.ch[chIdx].fnum = c.ch[chIdx].fnum&0x300 | uint16(val)
		c.updateChannelFreq(chIdx)
	case low >= 0xB0 && low <= 0xB8:
		chIdx := int(low&0x0F) + bank*9
		ch := &c.ch[chIdx]
		ch.fnum = ch.fnum&0x0FF | uint16(val&0x03)<<8
		ch.block = val >> 2 & 0x07
		c.updateChannelFreq(chIdx)
		c.setKeyOn(chIdx, val&0x20 != 0)
	case low >= 0xC0 && low <= 0xC8:
		chIdx := int(low&0x0F) + bank*9
		ch := &c.ch[chIdx]
		ch.conn = val&0x01 != 0
		ch.feedback = val >> 1 & 0x07
		// Pan bits are stored always but only gate output in OPL3 mode.
		ch.panL = val&0x10 != 0
		ch.panR = val&0x20 != 0
	}
}

// writeConnectionSel recomputes the 4-op pair flags from register
// 0x104. Pairs are (0,3), (1,4), (2,5) in each bank.
func (c *Chip) writeConnectionSel(val uint8) {
	c.connSel = val & 0x3F
	for i := 0; i < 6; i++ {
		on := c.connSel&(1<<i) != 0
		first := i%3 + i/3*9
		c.ch[first].fourOpPrimary = on
		c.ch[first+3].fourOpSecondary = on
	}
}

// runChannel2op produces one sample for a two-operator channel.
func (c *Chip) runChannel2op(chIdx int) int32 {
	ch := &c.ch[chIdx]
	base := chanSlot[chIdx%9] + chIdx/9*18
	mod := &c.op[base]
	car := &c.op[base+3]

	modOut := mod.output(c.effWave(mod.wave), mod.feedbackMod(ch.feedback))
	if ch.conn {
		return modOut + car.output(c.effWave(car.wave), 0)
	}
	return car.output(c.effWave(car.wave), modOut)
}

// runChannel4op produces one sample for an enabled 4-op pair, rooted at
// the primary channel. The two conn bits select one of four algorithms.
func (c *Chip) runChannel4op(chIdx int) int32 {
	first := &c.ch[chIdx]
	second := &c.ch[chIdx+3]
	baseA := chanSlot[chIdx%9] + chIdx/9*18
	baseB := chanSlot[(chIdx+3)%9] + chIdx/9*18
	o1 := &c.op[baseA]
	o2 := &c.op[baseA+3]
	o3 := &c.op[baseB]
	o4 := &c.op[baseB+3]

	out1 := o1.output(c.effWave(o1.wave), o1.feedbackMod(first.feedback))
	switch {
	case !first.conn && !second.conn: // 1>2>3>4
		out2 := o2.output(c.effWave(o2.wave), out1)
		out3 := o3.output(c.effWave(o3.wave), out2)
		return o4.output(c.effWave(o4.wave), out3)
	case first.conn && !second.conn: // 1 + (2>3>4)
		out2 := o2.output(c.effWave(o2.wave), 0)
		out3 := o3.output(c.effWave(o3.wave), out2)
		return out1 + o4.output(c.effWave(o4.wave), out3)
	case !first.conn && second.conn: // (1>2) + (3>4)
		out2 := o2.output(c.effWave(o2.wave), out1)
		out3 := o3.output(c.effWave(o3.wave), 0)
		return out2 + o4.output(c.effWave(o4.wave), out3)
	default: // 1 + (2>3) + 4
		out2 := o2.output(c.effWave(o2.wave), 0)
		out3 := o3.output(c.effWave(o3.wave), out2)
		return out1 + out3 + o4.output(c.effWave(o4.wave), 0)
	}
}

// GenerateBlock2 renders frames mono wide samples into out. Used in
// two-operator mode; only the first bank's nine channels sound. frames
// must not exceed BlockFrames and out must hold at least frames values;
// neither is validated.
func (c *Chip) GenerateBlock2(frames int, out []int32) {
	for i := 0; i < frames; i++ {
		out[i] = 0
	}
	for chIdx := 0; chIdx < 9; chIdx++ {
		for i := 0; i < frames; i++ {
			out[i] += c.runChannel2op(chIdx)
		}
	}
}

// GenerateBlock3 renders frames interleaved stereo wide sample pairs
// into out. Used in OPL3 mode; all eighteen channels sound, with the
// secondary half of each enabled 4-op pair folded into its primary.
// frames must not exceed BlockFrames and out must hold at least
// 2*frames values; neither is validated.
func (c *Chip) GenerateBlock3(frames int, out []int32) {
	for i := 0; i < frames*2; i++ {
		out[i] = 0
	}
	for chIdx := 0; chIdx < 18; chIdx++ {
		ch := &c.ch[chIdx]
		if ch.fourOpSecondary {
			continue
		}
		for i := 0; i < frames; i++ {
			var s int32
			if ch.fourOpPrimary {
				s = c.runChannel4op(chIdx)
			} else {
				s = c.runChannel2op(chIdx)
			}
			if ch.panL {
				out[i*2] += s
			}
			if ch.panR {
				out[i*2+1] += s
			}
		}
	}
}
