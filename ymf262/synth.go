package ymf262

import "math"

// Envelope states.
const (
	adsrAttack = iota
	adsrDecay
	adsrSustain
	adsrRelease
)

// attSilent is the maximum 9-bit envelope attenuation; muteLevel is a
// combined log-domain attenuation beyond which output underflows to 0.
const (
	attSilent = 0x1FF
	muteLevel = 0x1FFF
)

// fmultX2 holds the MULT field multipliers doubled, so the 0.5 entry
// stays integral.
var fmultX2 = [16]uint32{1, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 20, 24, 24, 30, 30}

// Output pipeline tables, built at package load. Unlike the DBOPL core
// there is no external gating contract; nothing here is reachable
// before init runs.
var (
	quarterSin [256]uint16 // -256*log2(sin) over the ascending quarter
	expLevel   [256]uint16 // (2^(i/256)-1)*1024
)

func init() {
	for i := 0; i < 256; i++ {
		quarterSin[i] = uint16(math.Round(-256 * math.Log2(math.Sin((float64(i)+0.5)*math.Pi/512))))
		expLevel[i] = uint16(math.Round((math.Exp2(float64(i)/256) - 1) * 1024))
	}
}

// formAttenuation returns log-domain attenuation and sign for one of
// the eight OPL3 waveforms at a 10-bit phase index.
func formAttenuation(form uint8, idx uint16) (uint16, bool) {
	idx &= 0x3FF
	neg := idx&0x200 != 0
	q := idx & 0xFF
	if idx&0x100 != 0 {
		q ^= 0xFF
	}

	switch form {
	case 1:
		if neg {
			return muteLevel, false
		}
		return quarterSin[q], false
	case 2:
		return quarterSin[q], false
	case 3:
		if idx&0x100 != 0 {
			return muteLevel, false
		}
		return quarterSin[q], false
	case 4:
		if neg {
			return muteLevel, false
		}
		return formAttenuation(0, idx<<1)
	case 5:
		if neg {
			return muteLevel, false
		}
		a, _ := formAttenuation(0, idx<<1)
		return a, false
	case 6:
		return 0, neg
	case 7:
		p := idx & 0x1FF
		if neg {
			p ^= 0x1FF
		}
		return p << 3, neg
	default:
		return quarterSin[q], neg
	}
}

// linearOut converts a combined log-domain attenuation back to a
// linear sample in the +/-4084 range.
func linearOut(att uint32, neg bool) int32 {
	if att > muteLevel {
		att = muteLevel
	}
	v := int32(expLevel[(att&0xFF)^0xFF]+1024) << 1 >> (att >> 8)
	if neg {
		return -v
	}
	return v
}

// keySlot keys one slot on or off.
func (c *Chip) keySlot(s int, on bool) {
	sl := &c.slots[s]
	if on {
		if sl.keyed {
			return
		}
		sl.keyed = true
		sl.counter = 0
		sl.accum = 0
		sl.adsr = adsrAttack
		if sl.rateOf(sl.attack) >= 60 {
			sl.att = 0
			sl.adsr = adsrDecay
		}
		return
	}
	if sl.keyed {
		sl.keyed = false
		sl.adsr = adsrRelease
	}
}

// rateOf applies key scaling to a 4-bit register rate, yielding the
// 6-bit effective rate. Zero register rates never advance.
func (sl *slot) rateOf(rate uint8) uint8 {
	if rate == 0 {
		return 0
	}
	ks := sl.note
	if !sl.scale {
		ks >>= 2
	}
	r := int(rate)*4 + int(ks)
	if r > 63 {
		r = 63
	}
	return uint8(r)
}

// rateStep is the Q16 per-sample envelope accumulator increment for a
// 6-bit effective rate.
func rateStep(r uint8) uint32 {
	if r == 0 {
		return 0
	}
	return uint32(4|(r&3)) << (r >> 2)
}

func (sl *slot) sustainAt() int32 {
	if sl.sustain == 15 {
		return attSilent
	}
	return int32(sl.sustain) << 4
}

// tickEnvelope advances one slot's envelope one sample and returns the
// 9-bit attenuation.
func (sl *slot) tickEnvelope() int32 {
	switch sl.adsr {
	case adsrAttack:
		sl.accum += rateStep(sl.rateOf(sl.attack))
		for sl.accum >= 1<<16 && sl.adsr == adsrAttack {
			sl.accum -= 1 << 16
			sl.att -= sl.att>>2 + 1
			if sl.att <= 0 {
				sl.att = 0
				sl.adsr = adsrDecay
			}
		}
	case adsrDecay:
		sl.accum += rateStep(sl.rateOf(sl.decay))
		for sl.accum >= 1<<16 && sl.adsr == adsrDecay {
			sl.accum -= 1 << 16
			sl.att++
			if sl.att >= sl.sustainAt() {
				sl.att = sl.sustainAt()
				sl.adsr = adsrSustain
			}
		}
	case adsrSustain:
		if sl.hold {
			break
		}
		sl.fadeAt(sl.release)
	case adsrRelease:
		sl.fadeAt(sl.release)
	}
	return sl.att
}

func (sl *slot) fadeAt(rate uint8) {
	sl.accum += rateStep(sl.rateOf(rate))
	for sl.accum >= 1<<16 {
		sl.accum -= 1 << 16
		if sl.att < attSilent {
			sl.att++
		}
	}
}

// run produces one linear sample for a slot with the given phase
// modulation input. form gating by chip mode happens in the caller.
func (sl *slot) run(form uint8, mod int32) int32 {
	env := sl.tickEnvelope()
	idx := uint16((int32(sl.counter>>9) + mod) & 0x3FF)
	sl.counter = (sl.counter + sl.step) & 0x7FFFF

	att, neg := formAttenuation(form, idx)
	out := linearOut(uint32(att)+uint32(env+int32(sl.level)<<2)<<3, neg)

	sl.fbOut[1] = sl.fbOut[0]
	sl.fbOut[0] = out
	return out
}

func (sl *slot) selfMod(fb uint8) int32 {
	if fb == 0 {
		return 0
	}
	return (sl.fbOut[0] + sl.fbOut[1]) >> (9 - fb)
}

// effForm gates waveform select: all eight forms in NEW mode, the
// OPL2-compatible first four otherwise.
func (c *Chip) effForm(form uint8) uint8 {
	if c.newMode {
		return form & 7
	}
	return form & 3
}

// pairChan renders one sample of an enabled 4-op pair rooted at its
// lead channel.
func (c *Chip) pairChan(chIdx int) int32 {
	lead := &c.chans[chIdx]
	tail := &c.chans[chIdx+3]
	m1, k1 := chanSlots(chIdx)
	m2, k2 := chanSlots(chIdx + 3)
	s1 := &c.slots[m1]
	s2 := &c.slots[k1]
	s3 := &c.slots[m2]
	s4 := &c.slots[k2]

	o1 := s1.run(c.effForm(s1.form), s1.selfMod(lead.fb))
	switch {
	case !lead.add && !tail.add:
		return s4.run(c.effForm(s4.form), s3.run(c.effForm(s3.form), s2.run(c.effForm(s2.form), o1)))
	case lead.add && !tail.add:
		return o1 + s4.run(c.effForm(s4.form), s3.run(c.effForm(s3.form), s2.run(c.effForm(s2.form), 0)))
	case !lead.add && tail.add:
		return s2.run(c.effForm(s2.form), o1) + s4.run(c.effForm(s4.form), s3.run(c.effForm(s3.form), 0))
	default:
		o3 := s3.run(c.effForm(s3.form), s2.run(c.effForm(s2.form), 0))
		return o1 + o3 + s4.run(c.effForm(s4.form), 0)
	}
}

// twoOpChan renders one sample of a two-operator channel.
func (c *Chip) twoOpChan(chIdx int) int32 {
	ch := &c.chans[chIdx]
	m, k := chanSlots(chIdx)
	mod := &c.slots[m]
	car := &c.slots[k]

	o := mod.run(c.effForm(mod.form), mod.selfMod(ch.fb))
	if ch.add {
		return o + car.run(c.effForm(car.form), 0)
	}
	return car.run(c.effForm(car.form), o)
}

// sample evaluates all channels for one native-rate frame. In
// compatibility mode the pan bits are ignored and every channel feeds
// both outputs, matching the chip's behavior before NEW is set.
func (c *Chip) sample() (int32, int32) {
	var left, right int32
	for chIdx := 0; chIdx < numChans; chIdx++ {
		ch := &c.chans[chIdx]
		if ch.pairTail {
			continue
		}
		var s int32
		if ch.pairLead {
			s = c.pairChan(chIdx)
		} else {
			s = c.twoOpChan(chIdx)
		}
		if !c.newMode || ch.left {
			left += s
		}
		if !c.newMode || ch.right {
			right += s
		}
	}
	return left, right
}
