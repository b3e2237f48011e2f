package dbopl

import "math"

// silenceAtt is a log-domain attenuation large enough that expOut
// shifts the output to zero.
const silenceAtt = 0x1FFF

// Shared output pipeline tables. Computed once per process by
// InitTables; the caller owns the gating and must build them before the
// first Setup.
var (
	// logsinTable[i] = -256*log2(sin((i+0.5)*pi/512)), the ascending
	// quarter of a sine wave in log space.
	logsinTable [256]uint16
	// expTable[i] = (2^(i/256) - 1) * 1024, used to convert attenuation
	// back to a linear sample.
	expTable [256]uint16
)

// InitTables computes the shared log-sine and exponential tables. It is
// idempotent but not cheap; callers gate it to run once per process.
func InitTables() {
	for i := 0; i < 256; i++ {
		logsinTable[i] = uint16(math.Round(-256 * math.Log2(math.Sin((float64(i)+0.5)*math.Pi/512))))
		expTable[i] = uint16(math.Round((math.Exp2(float64(i)/256) - 1) * 1024))
	}
}

// waveAttenuation returns the log-domain attenuation and sign of the
// given waveform at a 10-bit phase index.
func waveAttenuation(wave uint8, phase uint16) (uint16, bool) {
	phase &= 0x3FF
	neg := phase&0x200 != 0
	idx := phase & 0xFF
	if phase&0x100 != 0 {
		idx ^= 0xFF // descending quarter
	}

	switch wave {
	case 1: // half sine: negative half silent
		if neg {
			return silenceAtt, false
		}
		return logsinTable[idx], false
	case 2: // absolute sine
		return logsinTable[idx], false
	case 3: // pulse sine: ascending quarters only
		if phase&0x100 != 0 {
			return silenceAtt, false
		}
		return logsinTable[idx], false
	case 4: // double-speed sine in the first half, second half silent
		if neg {
			return silenceAtt, false
		}
		return waveAttenuation(0, phase<<1)
	case 5: // double-speed absolute sine in the first half
		if neg {
			return silenceAtt, false
		}
		att, _ := waveAttenuation(0, phase<<1)
		return att, false
	case 6: // square
		return 0, neg
	case 7: // logarithmic sawtooth
		p := phase & 0x1FF
		if neg {
			p ^= 0x1FF
		}
		return p << 3, neg
	default: // sine
		return logsinTable[idx], neg
	}
}

// expOut converts a total log-domain attenuation to a linear sample in
// the +/-4084 range. The attenuation saturates internally, so callers
// may pass sums wider than the table domain.
func expOut(att uint32, neg bool) int32 {
	if att > silenceAtt {
		att = silenceAtt
	}
	out := int32(expTable[(att&0xFF)^0xFF]+1024) << 1 >> (att >> 8)
	if neg {
		return -out
	}
	return out
}
