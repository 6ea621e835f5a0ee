package crypto

import "encoding/binary"

// PacketChecksum computes the PRUDP trailer checksum (spec §4.2.1).
//
// Let K be the low byte of the stream's access-key-derived value. Sum the
// first floor(L/4)*4 bytes as little-endian 32-bit words into S (mod
// 2^32); reduce S's four bytes to one by addition (mod 256); add the
// remaining 0..3 tail bytes (mod 256); add K (mod 256).
func PacketChecksum(data []byte, accessKeyByte byte) byte {
	var sum uint32
	n := len(data)
	words := n - n%4
	for i := 0; i < words; i += 4 {
		sum += binary.LittleEndian.Uint32(data[i : i+4])
	}

	var b byte
	b += byte(sum)
	b += byte(sum >> 8)
	b += byte(sum >> 16)
	b += byte(sum >> 24)

	for i := words; i < n; i++ {
		b += data[i]
	}

	b += accessKeyByte
	return b
}

// VerifyPacketChecksum recomputes the checksum over data and compares it
// against want.
func VerifyPacketChecksum(data []byte, accessKeyByte byte, want byte) bool {
	return PacketChecksum(data, accessKeyByte) == want
}

// AccessKeyByte reduces the configured textual access key down to the
// single checksum byte PacketChecksum expects, by summing its bytes
// mod 256.
func AccessKeyByte(accessKey string) byte {
	var b byte
	for i := 0; i < len(accessKey); i++ {
		b += accessKey[i]
	}
	return b
}
