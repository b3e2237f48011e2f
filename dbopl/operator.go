package dbopl

// Envelope generator states.
const (
	egAttack = iota
	egDecay
	egSustain
	egRelease
)

// egSilent is the maximum 9-bit envelope attenuation.
const egSilent = 0x1FF

type operator struct {
	// Register fields
	am  bool // tremolo enable (stored; see Chip LFO note)
	vib bool // vibrato enable (stored; see Chip LFO note)
	sus bool // EGT: hold at the sustain level while keyed
	ksr bool // fast key scaling of envelope rates

	mult uint8 // frequency multiplier, 4-bit
	ksl  uint8 // key scale level, stored
	tl   uint8 // total level attenuation, 6-bit
	ar   uint8 // attack rate, 4-bit
	dr   uint8 // decay rate, 4-bit
	sl   uint8 // sustain level, 4-bit
	rr   uint8 // release rate, 4-bit
	wave uint8 // waveform select, 3-bit

	// Phase generator: the top 10 bits of phase index the waveform.
	phase    uint32
	phaseInc uint32

	// Envelope generator
	egState   uint8
	egLevel   int32  // attenuation, 0 (loudest) .. egSilent
	egCounter uint32 // Q16 step accumulator
	keyOn     bool
	keyCode   uint8 // from block/fnum, scales envelope rates

	// Last two outputs, for modulator self-feedback.
	prevOut [2]int32
}

// setKeyOn starts the attack phase. Rates 60-63 attack instantly.
func (op *operator) setKeyOn() {
	if op.keyOn {
		return
	}
	op.keyOn = true
	op.phase = 0
	op.egCounter = 0
	op.egState = egAttack
	if op.effectiveRate(op.ar) >= 60 {
		op.egLevel = 0
		op.egState = egDecay
	}
}

// setKeyOff transitions a keyed operator into release.
func (op *operator) setKeyOff() {
	if !op.keyOn {
		return
	}
	op.keyOn = false
	op.egState = egRelease
}

// effectiveRate computes the 6-bit envelope rate including key scaling.
// A register rate of zero never advances.
func (op *operator) effectiveRate(rate uint8) uint8 {
	if rate == 0 {
		return 0
	}
	rks := op.keyCode
	if !op.ksr {
		rks >>= 2
	}
	r := int(rate)*4 + int(rks)
	if r > 63 {
		r = 63
	}
	return uint8(r)
}

// egRateInc returns the Q16 per-sample step increment for a 6-bit
// effective rate.
func egRateInc(r uint8) uint32 {
	if r == 0 {
		return 0
	}
	return uint32(4|(r&3)) << (r >> 2)
}

func (op *operator) sustainLevel() int32 {
	if op.sl == 15 {
		return egSilent
	}
	return int32(op.sl) << 4
}

// envelopeStep advances the envelope by one sample and returns the
// current 9-bit attenuation.
func (op *operator) envelopeStep() int32 {
	switch op.egState {
	case egAttack:
		op.egCounter += egRateInc(op.effectiveRate(op.ar))
		for op.egCounter >= 1<<16 && op.egState == egAttack {
			op.egCounter -= 1 << 16
			op.egLevel -= op.egLevel>>2 + 1
			if op.egLevel <= 0 {
				op.egLevel = 0
				op.egState = egDecay
			}
		}
	case egDecay:
		op.egCounter += egRateInc(op.effectiveRate(op.dr))
		for op.egCounter >= 1<<16 && op.egState == egDecay {
			op.egCounter -= 1 << 16
			op.egLevel++
			if op.egLevel >= op.sustainLevel() {
				op.egLevel = op.sustainLevel()
				op.egState = egSustain
			}
		}
	case egSustain:
		if op.sus {
			break
		}
		// EGT clear: keep decaying at the release rate while keyed.
		op.attenuateAt(op.rr)
	case egRelease:
		op.attenuateAt(op.rr)
	}
	return op.egLevel
}

func (op *operator) attenuateAt(rate uint8) {
	op.egCounter += egRateInc(op.effectiveRate(rate))
	for op.egCounter >= 1<<16 {
		op.egCounter -= 1 << 16
		if op.egLevel < egSilent {
			op.egLevel++
		}
	}
}

// output computes one linear sample for the operator given a phase
// modulation input, advancing its phase and envelope. wave is the
// effective waveform after chip-level gating.
func (op *operator) output(wave uint8, mod int32) int32 {
	env := op.envelopeStep()
	idx := uint16((int32(op.phase>>22) + mod) & 0x3FF)
	op.phase += op.phaseInc

	att, neg := waveAttenuation(wave, idx)
	total := uint32(att) + uint32(env+int32(op.tl)<<2)<<3
	out := expOut(total, neg)

	op.prevOut[1] = op.prevOut[0]
	op.prevOut[0] = out
	return out
}

// feedbackMod returns the self-feedback phase input for a modulator.
func (op *operator) feedbackMod(fb uint8) int32 {
	if fb == 0 {
		return 0
	}
	return (op.prevOut[0] + op.prevOut[1]) >> (9 - fb)
}
