// Package codec implements the little-endian byte codec shared by every
// layer above the PRUDP transport (spec §4.1, "Byte Codec (L1)"). Every
// encode function appends to a caller-owned buffer; every decode function
// takes a remaining-bytes slice and returns the decoded value plus the
// unconsumed tail.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when a decode would read past the end of the
// input (spec §4.1 "Error": "<TruncatedInput> on short input").
var ErrTruncated = errors.New("codec: truncated input")

// ErrInvalidValue is returned when a decoded discriminant is out of range
// (spec §4.1 "Error": "<InvalidValue> when a discriminant is out of range").
var ErrInvalidValue = errors.New("codec: invalid value")

func need(rest []byte, n int) error {
	if len(rest) < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(rest))
	}
	return nil
}

// PutUint8 appends a single byte.
func PutUint8(buf []byte, v uint8) []byte { return append(buf, v) }

// GetUint8 decodes a single byte.
func GetUint8(rest []byte) (uint8, []byte, error) {
	if err := need(rest, 1); err != nil {
		return 0, rest, err
	}
	return rest[0], rest[1:], nil
}

// PutBool appends a byte-encoded boolean (0 or 1).
func PutBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// GetBool decodes a byte-encoded boolean. Any nonzero byte is true.
func GetBool(rest []byte) (bool, []byte, error) {
	b, rest, err := GetUint8(rest)
	if err != nil {
		return false, rest, err
	}
	return b != 0, rest, nil
}

// PutUint16 appends a little-endian u16.
func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// GetUint16 decodes a little-endian u16.
func GetUint16(rest []byte) (uint16, []byte, error) {
	if err := need(rest, 2); err != nil {
		return 0, rest, err
	}
	return binary.LittleEndian.Uint16(rest), rest[2:], nil
}

// PutInt16 appends a little-endian i16.
func PutInt16(buf []byte, v int16) []byte { return PutUint16(buf, uint16(v)) }

// GetInt16 decodes a little-endian i16.
func GetInt16(rest []byte) (int16, []byte, error) {
	v, rest, err := GetUint16(rest)
	return int16(v), rest, err
}

// PutUint32 appends a little-endian u32.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// GetUint32 decodes a little-endian u32.
func GetUint32(rest []byte) (uint32, []byte, error) {
	if err := need(rest, 4); err != nil {
		return 0, rest, err
	}
	return binary.LittleEndian.Uint32(rest), rest[4:], nil
}

// PutInt32 appends a little-endian i32.
func PutInt32(buf []byte, v int32) []byte { return PutUint32(buf, uint32(v)) }

// GetInt32 decodes a little-endian i32.
func GetInt32(rest []byte) (int32, []byte, error) {
	v, rest, err := GetUint32(rest)
	return int32(v), rest, err
}

// PutUint64 appends a little-endian u64.
func PutUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// GetUint64 decodes a little-endian u64.
func GetUint64(rest []byte) (uint64, []byte, error) {
	if err := need(rest, 8); err != nil {
		return 0, rest, err
	}
	return binary.LittleEndian.Uint64(rest), rest[8:], nil
}

// PutDouble appends a little-endian IEEE-754 double.
func PutDouble(buf []byte, v float64) []byte {
	return PutUint64(buf, math.Float64bits(v))
}

// GetDouble decodes a little-endian IEEE-754 double.
func GetDouble(rest []byte) (float64, []byte, error) {
	bits, rest, err := GetUint64(rest)
	if err != nil {
		return 0, rest, err
	}
	return math.Float64frombits(bits), rest, nil
}

// PutString appends a length-prefixed string: a 2-byte unsigned length
// (bytes, including a trailing NUL) followed by that many bytes (§4.1).
func PutString(buf []byte, s string) []byte {
	b := append([]byte(s), 0)
	buf = PutUint16(buf, uint16(len(b)))
	return append(buf, b...)
}

// GetString decodes a length-prefixed string, stripping the trailing NUL
// if present.
func GetString(rest []byte) (string, []byte, error) {
	n, rest, err := GetUint16(rest)
	if err != nil {
		return "", rest, err
	}
	if err := need(rest, int(n)); err != nil {
		return "", rest, err
	}
	raw := rest[:n]
	rest = rest[n:]
	if len(raw) > 0 && raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-1]
	}
	return string(raw), rest, nil
}

// PutQString appends a 1-byte-length-prefixed string, the shorter
// "qstring" flavor some RMC structures use (§4.1 "1-byte lengths for some
// flavors").
func PutQString(buf []byte, s string) []byte {
	b := append([]byte(s), 0)
	if len(b) > 0xFF {
		b = b[:0xFF]
	}
	buf = PutUint8(buf, uint8(len(b)))
	return append(buf, b...)
}

// GetQString decodes a 1-byte-length-prefixed string.
func GetQString(rest []byte) (string, []byte, error) {
	n, rest, err := GetUint8(rest)
	if err != nil {
		return "", rest, err
	}
	if err := need(rest, int(n)); err != nil {
		return "", rest, err
	}
	raw := rest[:n]
	rest = rest[n:]
	if len(raw) > 0 && raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-1]
	}
	return string(raw), rest, nil
}

// PutBuffer appends a 4-byte-length-prefixed byte buffer (§4.1 "Buffer").
func PutBuffer(buf []byte, data []byte) []byte {
	buf = PutUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// GetBuffer decodes a 4-byte-length-prefixed byte buffer.
func GetBuffer(rest []byte) ([]byte, []byte, error) {
	n, rest, err := GetUint32(rest)
	if err != nil {
		return nil, rest, err
	}
	if err := need(rest, int(n)); err != nil {
		return nil, rest, err
	}
	out := make([]byte, n)
	copy(out, rest[:n])
	return out, rest[n:], nil
}

// PutQBuffer appends a 2-byte-length-prefixed byte buffer (§4.1 "QBuffer").
func PutQBuffer(buf []byte, data []byte) []byte {
	buf = PutUint16(buf, uint16(len(data)))
	return append(buf, data...)
}

// GetQBuffer decodes a 2-byte-length-prefixed byte buffer.
func GetQBuffer(rest []byte) ([]byte, []byte, error) {
	n, rest, err := GetUint16(rest)
	if err != nil {
		return nil, rest, err
	}
	if err := need(rest, int(n)); err != nil {
		return nil, rest, err
	}
	out := make([]byte, n)
	copy(out, rest[:n])
	return out, rest[n:], nil
}

// PutListLen appends the 4-byte "QList" length prefix used to open a
// List<T>/Map<K,V> encoding (§4.1).
func PutListLen(buf []byte, n int) []byte {
	return PutUint32(buf, uint32(n))
}

// GetListLen decodes a QList length prefix.
func GetListLen(rest []byte) (int, []byte, error) {
	n, rest, err := GetUint32(rest)
	if err != nil {
		return 0, rest, err
	}
	return int(n), rest, nil
}

// DateTime is the packed (year, month, day, hour, minute, second) bit
// field matching the original layout (§4.1 "DateTime").
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// packedDateTime mirrors the original bit layout: seconds(6) | minutes(6)
// | hours(5) | day(5) | month(4) | year(22), packed LSB-first into a u64.
func (d DateTime) pack() uint64 {
	var v uint64
	v |= uint64(d.Second) & 0x3F
	v |= (uint64(d.Minute) & 0x3F) << 6
	v |= (uint64(d.Hour) & 0x1F) << 12
	v |= (uint64(d.Day) & 0x1F) << 17
	v |= (uint64(d.Month) & 0xF) << 22
	v |= (uint64(d.Year) & 0x3FFFFF) << 26
	return v
}

func unpackDateTime(v uint64) DateTime {
	return DateTime{
		Second: int(v & 0x3F),
		Minute: int((v >> 6) & 0x3F),
		Hour:   int((v >> 12) & 0x1F),
		Day:    int((v >> 17) & 0x1F),
		Month:  int((v >> 22) & 0xF),
		Year:   int((v >> 26) & 0x3FFFFF),
	}
}

// PutDateTime appends a packed 64-bit DateTime (§4.1).
func PutDateTime(buf []byte, d DateTime) []byte {
	return PutUint64(buf, d.pack())
}

// GetDateTime decodes a packed 64-bit DateTime.
func GetDateTime(rest []byte) (DateTime, []byte, error) {
	v, rest, err := GetUint64(rest)
	if err != nil {
		return DateTime{}, rest, err
	}
	return unpackDateTime(v), rest, nil
}

// PutStationURL appends a StationURL, which is encoded as a plain String
// at the wire level (§4.1 "StationURL: encoded as a String").
func PutStationURL(buf []byte, url string) []byte {
	return PutString(buf, url)
}

// GetStationURL decodes a StationURL.
func GetStationURL(rest []byte) (string, []byte, error) {
	return GetString(rest)
}
