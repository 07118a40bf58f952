package zune

// FCS-16 (CRC-16/X-25): polynomial 0x1021 reflected to 0x8408, initial
// value 0xFFFF, complemented on output, LSB-first — the checksum PPP frames
// carry per RFC 1662 §10.

var fcs16Table [256]uint16

func init() {
	const poly = 0x8408
	for i := 0; i < 256; i++ {
		var crc = uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc = crc >> 1
			}
		}
		fcs16Table[i] = crc
	}
}

const fcs16Init = 0xFFFF

// fcs16Update folds one more byte into a running FCS accumulator.
func fcs16Update(fcs uint16, b byte) uint16 {
	return (fcs >> 8) ^ fcs16Table[(fcs^uint16(b))&0xFF]
}

// fcs16Calc computes the FCS-16 of data, starting from the standard initial
// value, without the final complement (see fcs16Final for that).
func fcs16Calc(data []byte) uint16 {
	var fcs uint16 = fcs16Init
	for _, b := range data {
		fcs = fcs16Update(fcs, b)
	}
	return fcs
}

// fcs16Final complements the running accumulator to produce the value
// transmitted on the wire.
func fcs16Final(fcs uint16) uint16 {
	return fcs ^ 0xFFFF
}
