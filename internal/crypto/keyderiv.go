package crypto

import "crypto/md5"

// passwordSalt is the fixed salt mixed into the iterated-MD5 key
// derivation (spec §4.6: "iterated-MD5(password || fixed salt, N)").
var passwordSalt = []byte{0x9d, 0x6d, 0x4e, 0x1b, 0x3c, 0x8f, 0x21, 0x76}

// DeriveLongTermKey derives a principal's long-term key by iterating MD5
// over (password || fixed salt) N times (spec §4.6 "Per-user key
// derivation"). The derived key is used as the RC4 key for the
// request-payload decryption inside CONNECT and for sealing the
// client-visible ticket.
func DeriveLongTermKey(password string, iterations int) []byte {
	sum := md5.Sum(append([]byte(password), passwordSalt...))
	key := sum[:]
	for i := 1; i < iterations; i++ {
		sum = md5.Sum(key)
		key = sum[:]
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out
}
