// Package zephyr implements the Zephyr OBC wire format: CRC16 framing,
// outbound message construction, and the START/END telemetry section
// markers shared with the onboard storage format.
package zephyr

// CRCSeed is the CRC16-CCITT seed used by the Zephyr link.
const CRCSeed = 0x1021

// Telemetry binary section markers.
var (
	SectionStart = []byte("START")
	SectionEnd   = []byte("END")
)

// CRC16 computes the Zephyr CRC16-CCITT over data with the standard seed.
func CRC16(data []byte) uint16 {
	return CRC16With(CRCSeed, data)
}

// CRC16With computes CRC16-CCITT starting from an explicit crc value.
// Bit-exact with the StratoCore flight implementation.
func CRC16With(crc uint16, data []byte) uint16 {
	msb := crc >> 8
	lsb := crc & 0xFF

	for _, c := range data {
		x := uint16(c) ^ msb
		x ^= x >> 4
		msb = (lsb ^ (x >> 3) ^ (x << 4)) & 0xFF
		lsb = (x ^ (x << 5)) & 0xFF
	}
	return msb<<8 + lsb
}
