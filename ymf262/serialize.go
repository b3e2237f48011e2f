package ymf262

import (
	"encoding/binary"
	"errors"
)

const (
	serializeVersion = 1
	// Per-slot:
	// trem(1) + vibr(1) + hold(1) + scale(1) + fmult(1) + ksl(1) +
	// level(1) + attack(1) + decay(1) + sustain(1) + release(1) +
	// form(1) + counter(4) + step(4) + adsr(1) + att(2) + accum(4) +
	// keyed(1) + note(1) + fbOut(8) = 37
	slotSerializeSize = 37
	// Per-channel:
	// fnum(2) + oct(1) + fb(1) + add(1) + left(1) + right(1) +
	// keyed(1) + pairLead(1) + pairTail(1) = 10
	chanSerializeSize = 10
	// Global: rate(4) + newMode(1) + fourOp(1) + percReg(1) +
	// sampleCount(8) + lastWriteAt(8) = 23
	globalSerializeSize = 23

	// SerializeSize is the number of bytes Serialize needs:
	// version(1) + 36 slots + 18 channels + global.
	SerializeSize = 1 + numSlots*slotSerializeSize + numChans*chanSerializeSize + globalSerializeSize
)

// Serialize writes all mutable chip state into buf in a compact
// little-endian format. buf must be at least SerializeSize bytes.
// The write queue is not serialized; snapshot between generate calls,
// when it has drained.
func (c *Chip) Serialize(buf []byte) error {
	if len(buf) < SerializeSize {
		return errors.New("ymf262: serialize buffer too small")
	}

	buf[0] = serializeVersion
	offset := 1
	for i := range c.slots {
		offset = serializeSlot(&c.slots[i], buf, offset)
	}
	for i := range c.chans {
		offset = serializeChan(&c.chans[i], buf, offset)
	}

	binary.LittleEndian.PutUint32(buf[offset:], c.rate)
	buf[offset+4] = flagByte(c.newMode)
	buf[offset+5] = c.fourOp
	buf[offset+6] = c.percReg
	binary.LittleEndian.PutUint64(buf[offset+7:], c.sampleCount)
	binary.LittleEndian.PutUint64(buf[offset+15:], c.lastWriteAt)
	return nil
}

// Deserialize restores all mutable chip state from buf, which must
// have been produced by Serialize. Any queued writes on the receiving
// chip are dropped.
func (c *Chip) Deserialize(buf []byte) error {
	if len(buf) < SerializeSize {
		return errors.New("ymf262: deserialize buffer too small")
	}
	if buf[0] != serializeVersion {
		return errors.New("ymf262: unsupported serialize version")
	}

	offset := 1
	for i := range c.slots {
		offset = deserializeSlot(&c.slots[i], buf, offset)
	}
	for i := range c.chans {
		offset = deserializeChan(&c.chans[i], buf, offset)
	}

	c.rate = binary.LittleEndian.Uint32(buf[offset:])
	c.newMode = buf[offset+4] != 0
	c.fourOp = buf[offset+5]
	c.percReg = buf[offset+6]
	c.sampleCount = binary.LittleEndian.Uint64(buf[offset+7:])
	c.lastWriteAt = binary.LittleEndian.Uint64(buf[offset+15:])
	c.writeQueue = c.writeQueue[:0]
	return nil
}

func serializeSlot(sl *slot, buf []byte, offset int) int {
	buf[offset] = flagByte(sl.trem)
	buf[offset+1] = flagByte(sl.vibr)
	buf[offset+2] = flagByte(sl.hold)
	buf[offset+3] = flagByte(sl.scale)
	buf[offset+4] = sl.fmult
	buf[offset+5] = sl.ksl
	buf[offset+6] = sl.level
	buf[offset+7] = sl.attack
	buf[offset+8] = sl.decay
	buf[offset+9] = sl.sustain
	buf[offset+10] = sl.release
	buf[offset+11] = sl.form
	offset += 12
	binary.LittleEndian.PutUint32(buf[offset:], sl.counter)
	binary.LittleEndian.PutUint32(buf[offset+4:], sl.step)
	offset += 8
	buf[offset] = sl.adsr
	binary.LittleEndian.PutUint16(buf[offset+1:], uint16(sl.att))
	binary.LittleEndian.PutUint32(buf[offset+3:], sl.accum)
	buf[offset+7] = flagByte(sl.keyed)
	buf[offset+8] = sl.note
	offset += 9
	binary.LittleEndian.PutUint32(buf[offset:], uint32(sl.fbOut[0]))
	binary.LittleEndian.PutUint32(buf[offset+4:], uint32(sl.fbOut[1]))
	return offset + 8
}

func deserializeSlot(sl *slot, buf []byte, offset int) int {
	sl.trem = buf[offset] != 0
	sl.vibr = buf[offset+1] != 0
	sl.hold = buf[offset+2] != 0
	sl.scale = buf[offset+3] != 0
	sl.fmult = buf[offset+4]
	sl.ksl = buf[offset+5]
	sl.level = buf[offset+6]
	sl.attack = buf[offset+7]
	sl.decay = buf[offset+8]
	sl.sustain = buf[offset+9]
	sl.release = buf[offset+10]
	sl.form = buf[offset+11]
	offset += 12
	sl.counter = binary.LittleEndian.Uint32(buf[offset:])
	sl.step = binary.LittleEndian.Uint32(buf[offset+4:])
	offset += 8
	sl.adsr = buf[offset]
	sl.att = int32(binary.LittleEndian.Uint16(buf[offset+1:]))
	sl.accum = binary.LittleEndian.Uint32(buf[offset+3:])
	sl.keyed = buf[offset+7] != 0
	sl.note = buf[offset+8]
	offset += 9
	sl.fbOut[0] = int32(binary.LittleEndian.Uint32(buf[offset:]))
	sl.fbOut[1] = int32(binary.LittleEndian.Uint32(buf[offset+4:]))
	return offset + 8
}

func serializeChan(ch *chanState, buf []byte, offset int) int {
	binary.LittleEndian.PutUint16(buf[offset:], ch.fnum)
	buf[offset+2] = ch.oct
	buf[offset+3] = ch.fb
	buf[offset+4] = flagByte(ch.add)
	buf[offset+5] = flagByte(ch.left)
	buf[offset+6] = flagByte(ch.right)
	buf[offset+7] = flagByte(ch.keyed)
	buf[offset+8] = flagByte(ch.pairLead)
	buf[offset+9] = flagByte(ch.pairTail)
	return offset + chanSerializeSize
}

func deserializeChan(ch *chanState, buf []byte, offset int) int {
	ch.fnum = binary.LittleEndian.Uint16(buf[offset:])
	ch.oct = buf[offset+2]
	ch.fb = buf[offset+3]
	ch.add = buf[offset+4] != 0
	ch.left = buf[offset+5] != 0
	ch.right = buf[offset+6] != 0
	ch.keyed = buf[offset+7] != 0
	ch.pairLead = buf[offset+8] != 0
	ch.pairTail = buf[offset+9] != 0
	return offset + chanSerializeSize
}

func flagByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
