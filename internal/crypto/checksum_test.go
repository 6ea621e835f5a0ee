package crypto

import "testing"

func TestPacketChecksumDeterministic(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	c1 := PacketChecksum(data, 0x42)
	c2 := PacketChecksum(data, 0x42)
	if c1 != c2 {
		t.Fatalf("checksum not deterministic: %x vs %x", c1, c2)
	}
	if !VerifyPacketChecksum(data, 0x42, c1) {
		t.Fatal("verify failed for freshly computed checksum")
	}
}

func TestPacketChecksumDetectsPayloadFlip(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30, 0x40, 0x50}
	c := PacketChecksum(data, 0x07)

	flipped := make([]byte, len(data))
	copy(flipped, data)
	flipped[2] ^= 0xFF

	if VerifyPacketChecksum(flipped, 0x07, c) {
		t.Fatal("checksum failed to detect a flipped payload byte (spec P3)")
	}
}

func TestPacketChecksumDetectsChecksumByteFlip(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC}
	c := PacketChecksum(data, 0x01)
	flippedChecksum := c ^ 0xFF
	if VerifyPacketChecksum(data, 0x01, flippedChecksum) {
		t.Fatal("checksum verification must fail when checksum byte itself is flipped (spec P3)")
	}
}

func TestPacketChecksumEmptyInput(t *testing.T) {
	c := PacketChecksum(nil, 0x05)
	if c != 0x05 {
		t.Fatalf("checksum of empty payload with key 0x05: got %x, want 0x05", c)
	}
}
