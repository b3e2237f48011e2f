package dbopl

import (
	"encoding/binary"
	"errors"
)

const (
	serializeVersion = 1
	// Per-operator:
	// am(1) + vib(1) + sus(1) + ksr(1) + mult(1) + ksl(1) + tl(1) +
	// ar(1) + dr(1) + sl(1) + rr(1) + wave(1) + phase(4) + phaseInc(4) +
	// egState(1) + egLevel(2) + egCounter(4) + keyOn(1) + keyCode(1) +
	// prevOut(8) = 37
	operatorSerializeSize = 37
	// Per-channel:
	// fnum(2) + block(1) + feedback(1) + conn(1) + panL(1) + panR(1) +
	// keyOn(1) + fourOpPrimary(1) + fourOpSecondary(1) = 10
	channelSerializeSize = 10
	// Global: rate(4) + opl3Mode(1) + waveSel(1) + noteSel(1) +
	// connSel(1) + rhythm(1) + tremoloDepth(1) + vibratoDepth(1) = 11
	globalSerializeSize = 11

	// SerializeSize is the number of bytes Serialize needs:
	// version(1) + 36 operators + 18 channels + global.
	SerializeSize = 1 + 36*operatorSerializeSize + 18*channelSerializeSize + globalSerializeSize
)

// Serialize writes all mutable chip state into buf in a compact
// little-endian format. buf must be at least SerializeSize bytes. The
// shared lookup tables are process state, not chip state, and are not
// included.
func (c *Chip) Serialize(buf []byte) error {
	if len(buf) < SerializeSize {
		return errors.New("dbopl: serialize buffer too small")
	}

	buf[0] = serializeVersion
	offset := 1
	for i := range c.op {
		offset = serializeOperator(&c.op[i], buf, offset)
	}
	for i := range c.ch {
		offset = serializeChannel(&c.ch[i], buf, offset)
	}

	binary.LittleEndian.PutUint32(buf[offset:], c.rate)
	offset += 4
	buf[offset] = boolByte(c.opl3Mode)
	buf[offset+1] = boolByte(c.waveSel)
	buf[offset+2] = boolByte(c.noteSel)
	buf[offset+3] = c.connSel
	buf[offset+4] = c.rhythm
	buf[offset+5] = boolByte(c.tremoloDepth)
	buf[offset+6] = boolByte(c.vibratoDepth)
	return nil
}

// Deserialize restores all mutable chip state from buf, which must have
// been produced by Serialize. InitTables must still have run in this
// process before the chip generates.
func (c *Chip) Deserialize(buf []byte) error {
	if len(buf) < SerializeSize {
		return errors.New("dbopl: deserialize buffer too small")
	}
	if buf[0] != serializeVersion {
		return errors.New("dbopl: unsupported serialize version")
	}

	offset := 1
	for i := range c.op {
		offset = deserializeOperator(&c.op[i], buf, offset)
	}
	for i := range c.ch {
		offset = deserializeChannel(&c.ch[i], buf, offset)
	}

	c.rate = binary.LittleEndian.Uint32(buf[offset:])
	offset += 4
	c.opl3Mode = buf[offset] != 0
	c.waveSel = buf[offset+1] != 0
	c.noteSel = buf[offset+2] != 0
	c.connSel = buf[offset+3]
	c.rhythm = buf[offset+4]
	c.tremoloDepth = buf[offset+5] != 0
	c.vibratoDepth = buf[offset+6] != 0
	return nil
}

func serializeOperator(op *operator, buf []byte, offset int) int {
	buf[offset] = boolByte(op.am)
	buf[offset+1] = boolByte(op.vib)
	buf[offset+2] = boolByte(op.sus)
	buf[offset+3] = boolByte(op.ksr)
	buf[offset+4] = op.mult
	buf[offset+5] = op.ksl
	buf[offset+6] = op.tl
	buf[offset+7] = op.ar
	buf[offset+8] = op.dr
	buf[offset+9] = op.sl
	buf[offset+10] = op.rr
	buf[offset+11] = op.wave
	offset += 12
	binary.LittleEndian.PutUint32(buf[offset:], op.phase)
	binary.LittleEndian.PutUint32(buf[offset+4:], op.phaseInc)
	offset += 8
	buf[offset] = op.egState
	binary.LittleEndian.PutUint16(buf[offset+1:], uint16(op.egLevel))
	binary.LittleEndian.PutUint32(buf[offset+3:], op.egCounter)
	buf[offset+7] = boolByte(op.keyOn)
	buf[offset+8] = op.keyCode
	offset += 9
	binary.LittleEndian.PutUint32(buf[offset:], uint32(op.prevOut[0]))
	binary.LittleEndian.PutUint32(buf[offset+4:], uint32(op.prevOut[1]))
	return offset + 8
}

func deserializeOperator(op *operator, buf []byte, offset int) int {
	op.am = buf[offset] != 0
	op.vib = buf[offset+1] != 0
	op.sus = buf[offset+2] != 0
	op.ksr = buf[offset+3] != 0
	op.mult = buf[offset+4]
	op.ksl = buf[offset+5]
	op.tl = buf[offset+6]
	op.ar = buf[offset+7]
	op.dr = buf[offset+8]
	op.sl = buf[offset+9]
	op.rr = buf[offset+10]
	op.wave = buf[offset+11]
	offset += 12
	op.phase = binary.LittleEndian.Uint32(buf[offset:])
	op.phaseInc = binary.LittleEndian.Uint32(buf[offset+4:])
	offset += 8
	op.egState = buf[offset]
	op.egLevel = int32(binary.LittleEndian.Uint16(buf[offset+1:]))
	op.egCounter = binary.LittleEndian.Uint32(buf[offset+3:])
	op.keyOn = buf[offset+7] != 0
	op.keyCode = buf[offset+8]
	offset += 9
	op.prevOut[0] = int32(binary.LittleEndian.Uint32(buf[offset:]))
	op.prevOut[1] = int32(binary.LittleEndian.Uint32(buf[offset+4:]))
	return offset + 8
}

func serializeChannel(ch *channel, buf []byte, offset int) int {
	binary.LittleEndian.PutUint16(buf[offset:], ch.fnum)
	buf[offset+2] = ch.block
	buf[offset+3] = ch.feedback
	buf[offset+4] = boolByte(ch.conn)
	buf[offset+5] = boolByte(ch.panL)
	buf[offset+6] = boolByte(ch.panR)
	buf[offset+7] = boolByte(ch.keyOn)
	buf[offset+8] = boolByte(ch.fourOpPrimary)
	buf[offset+9] = boolByte(ch.fourOpSecondary)
	return offset + channelSerializeSize
}

func deserializeChannel(ch *channel, buf []byte, offset int) int {
	ch.fnum = binary.LittleEndian.Uint16(buf[offset:])
	ch.block = buf[offset+2]
	ch.feedback = buf[offset+3]
	ch.conn = buf[offset+4] != 0
	ch.panL = buf[offset+5] != 0
	ch.panR = buf[offset+6] != 0
	ch.keyOn = buf[offset+7] != 0
	ch.fourOpPrimary = buf[offset+8] != 0
	ch.fourOpSecondary = buf[offset+9] != 0
	return offset + channelSerializeSize
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
