// Package ymf262 implements a per-sample streaming YMF262 (OPL3) core.
//
// The core always generates at the chip's native rate, RateNative.
// Register writes are buffered with a sample timestamp and drained by
// GenerateStream at their recorded offsets, preserving sub-block write
// timing for rapid consecutive writes. Output is interleaved 16-bit
// stereo; the chip separates channels natively even in compatibility
// mode, so there is no mono path.
package ymf262

// RateNative is the YMF262's native output rate in Hz.
const RateNative = 49716

// writeDelay is the minimum spacing in samples between buffered writes,
// modeling the chip's bus turnaround between consecutive writes.
const writeDelay = 2

// numSlots and numChans are fixed by the chip: 36 operator slots
// feeding 18 two-operator channels.
const (
	numSlots = 36
	numChans = 18
)

type bufferedWrite struct {
	at  uint64 // sample count at which the write becomes audible
	reg uint16
	val uint8
}

type slot struct {
	trem  bool // tremolo enable (stored; LFOs not applied, see TODO)
	vibr  bool // vibrato enable (stored)
	hold  bool // sustain the envelope while keyed
	scale bool // KSR fast rate scaling

	fmult   uint8 // frequency multiplier field
	ksl     uint8 // key scale level (stored)
	level   uint8 // total level, 6-bit
	attack  uint8
	decay   uint8
	sustain uint8
	release uint8
	form    uint8 // waveform select

	counter uint32 // 19-bit phase counter; top 10 bits index the wave
	step    uint32

	adsr  uint8 // envelope state
	att   int32 // envelope attenuation, 0..attSilent
	accum uint32
	keyed bool
	note  uint8 // key code for rate scaling

	fbOut [2]int32
}

type chanState struct {
	fnum uint16
	oct  uint8
	fb   uint8
	add  bool // connection bit: additive instead of serial FM
	left bool
	right bool
	keyed bool

	pairLead bool // leading half of an enabled 4-op pair
	pairTail bool
}

// Chip is one YMF262 core instance. The zero value is created but
// uninitialized; Reset must run before writes or generation.
type Chip struct {
	slots [numSlots]slot
	chans [numChans]chanState

	rate    uint32
	newMode bool  // NEW bit, register 0x105
	fourOp  uint8 // register 0x104
	percReg uint8 // register 0xBD
	// TODO: rhythm voices and the tremolo/vibrato LFOs are not
	// synthesized; the register fields are decoded and stored.

	sampleCount uint64
	lastWriteAt uint64
	writeQueue  []bufferedWrite
}

// NewChip allocates a zeroed chip instance.
func NewChip() *Chip {
	return &Chip{}
}

// Reset performs a full reset of all chip state, dropping any buffered
// writes, and records the stream rate. Generation is defined at
// RateNative; callers that need another rate resample the output.
func (c *Chip) Reset(rate uint32) {
	*c = Chip{rate: rate}
	for i := range c.slots {
		c.slots[i].adsr = adsrRelease
		c.slots[i].att = attSilent
	}
}

// IsOPL3 reports the NEW bit. The bit is decoded as soon as the write
// is queued so mode queries are current; synthesis picks the write up
// when it drains at its recorded offset.
func (c *Chip) IsOPL3() bool {
	return c.newMode
}

// WriteRegBuffered queues a register write stamped with the sample
// offset at which it becomes audible. Writes keep their order and are
// spaced at least writeDelay samples apart.
func (c *Chip) WriteRegBuffered(reg uint16, val uint8) {
	at := c.lastWriteAt + writeDelay
	if at < c.sampleCount {
		at = c.sampleCount
	}
	c.lastWriteAt = at
	c.writeQueue = append(c.writeQueue, bufferedWrite{at: at, reg: reg, val: val})

	if reg&0x1FF == 0x105 {
		c.newMode = val&0x01 != 0
	}
}

// GenerateStream renders len(buf)/2 frames of interleaved stereo int16
// at the native rate, applying buffered writes at their timestamps.
func (c *Chip) GenerateStream(buf []int16) {
	frames := len(buf) / 2
	for i := 0; i < frames; i++ {
		c.drainWrites()
		l, r := c.sample()
		buf[i*2] = limshort(l)
		buf[i*2+1] = limshort(r)
		c.sampleCount++
	}
}

func (c *Chip) drainWrites() {
	n := 0
	for n < len(c.writeQueue) && c.writeQueue[n].at <= c.sampleCount {
		c.applyReg(c.writeQueue[n].reg, c.writeQueue[n].val)
		n++
	}
	if n > 0 {
		c.writeQueue = c.writeQueue[:copy(c.writeQueue, c.writeQueue[n:])]
	}
}

func limshort(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// slotOf maps a bank and operator register offset to a slot index, or
// -1 for gaps in the register map.
func slotOf(bank int, off uint8) int {
	off &= 0x1F
	if off&0x07 >= 6 || off >= 0x16 {
		return -1
	}
	return int(off>>3)*6 + int(off&0x07) + bank*numSlots/2
}

// chanSlots returns the modulator and carrier slot indices of a channel.
func chanSlots(ch int) (int, int) {
	local := ch % 9
	base := local/3*6 + local%3 + ch/9*numSlots/2
	return base, base + 3
}

// applyReg decodes one drained register write.
func (c *Chip) applyReg(reg uint16, val uint8) {
	bank := 0
	if reg&0x100 != 0 {
		bank = 1
	}
	low := uint8(reg)

	if low < 0x20 {
		switch {
		case low == 0x04 && bank == 1:
			c.writeFourOp(val)
		case low == 0x05 && bank == 1:
			c.newMode = val&0x01 != 0
		}
		return
	}

	if s := slotOf(bank, low); s >= 0 && low < 0xA0 {
		sl := &c.slots[s]
		switch low & 0xE0 {
		case 0x20:
			sl.trem = val&0x80 != 0
			sl.vibr = val&0x40 != 0
			sl.hold = val&0x20 != 0
			sl.scale = val&0x10 != 0
			sl.fmult = val & 0x0F
			c.refreshSlotStep(s)
		case 0x40:
			sl.ksl = val >> 6
			sl.level = val & 0x3F
		case 0x60:
			sl.attack = val >> 4
			sl.decay = val & 0x0F
		case 0x80:
			sl.sustain = val >> 4
			sl.release = val & 0x0F
		}
		return
	}
	if low >= 0xE0 && low <= 0xF5 {
		if s := slotOf(bank, low); s >= 0 {
			c.slots[s].form = val & 0x07
		}
		return
	}

	if low == 0xBD && bank == 0 {
		c.percReg = val
		return
	}

	chIdx := int(low&0x0F) + bank*9
	if low&0x0F > 8 {
		return
	}
	switch low & 0xF0 {
	case 0xA0:
		c.chans[chIdx].fnum = c.chans[chIdx].fnum&0x300 | uint16(val)
		c.refreshChanSteps(chIdx)
	case 0xB0:
		ch := &c.chans[chIdx]
		ch.fnum = ch.fnum&0x0FF | uint16(val&0x03)<<8
		ch.oct = val >> 2 & 0x07
		c.refreshChanSteps(chIdx)
		c.keyChan(chIdx, val&0x20 != 0)
	case 0xC0:
		ch := &c.chans[chIdx]
		ch.add = val&0x01 != 0
		ch.fb = val >> 1 & 0x07
		ch.left = val&0x10 != 0
		ch.right = val&0x20 != 0
	}
}

// writeFourOp recomputes pair flags from register 0x104.
func (c *Chip) writeFourOp(val uint8) {
	c.fourOp = val & 0x3F
	for i := 0; i < 6; i++ {
		on := c.fourOp&(1<<i) != 0
		lead := i%3 + i/3*9
		c.chans[lead].pairLead = on
		c.chans[lead+3].pairTail = on
	}
}

// refreshSlotStep recomputes one slot's phase step. At the native rate
// the step is exact integer math: (fnum << oct) * mult / 2 in 19-bit
// phase units per sample.
func (c *Chip) refreshSlotStep(s int) {
	chIdx := s % (numSlots / 2)
	chIdx = chIdx/6*3 + chIdx%3 + s/(numSlots/2)*9
	ch := &c.chans[chIdx]
	sl := &c.slots[s]

	sl.note = ch.oct<<1 | uint8(ch.fnum>>9)
	sl.step = uint32(ch.fnum) << ch.oct * fmultX2[sl.fmult] >> 2
}

func (c *Chip) refreshChanSteps(chIdx int) {
	m, k := chanSlots(chIdx)
	c.refreshSlotStep(m)
	c.refreshSlotStep(k)
}

// keyChan keys a channel on or off. The lead channel of an enabled
// 4-op pair keys all four slots; key-on writes to the tail half only
// record state.
func (c *Chip) keyChan(chIdx int, on bool) {
	ch := &c.chans[chIdx]
	ch.keyed = on
	if ch.pairTail {
		return
	}

	m, k := chanSlots(chIdx)
	c.keySlot(m, on)
	c.keySlot(k, on)
	if ch.pairLead {
		m2, k2 := chanSlots(chIdx + 3)
		c.keySlot(m2, on)
		c.keySlot(k2, on)
	}
}
