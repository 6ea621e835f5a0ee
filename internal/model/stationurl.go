package model

import "strings"

// ParsedStationURL is the structured form of a station URL string
// (spec §6 "StationURL string grammar":
// `scheme ";" key "=" value (";" key "=" value)*`). Keys are
// case-sensitive and unknown keys round-trip unchanged — this type
// preserves key order so a parse-then-build round trip is byte-identical
// even for keys the core does not otherwise interpret.
type ParsedStationURL struct {
	Scheme string
	Pairs  []StationURLPair
}

// StationURLPair is one "key=value" segment of a station URL. HasEquals
// distinguishes a bare key ("foo") from a key with an empty value
// ("foo="), so String() round-trips both exactly.
type StationURLPair struct {
	Key       string
	Value     string
	HasEquals bool
}

// ParseStationURL parses a station URL string into its scheme and
// ordered key/value pairs. Malformed segments (missing "=") are kept
// verbatim as a bare-key pair, so round-tripping never loses data even
// for URLs this core doesn't fully understand.
func ParseStationURL(s string) ParsedStationURL {
	parts := strings.Split(s, ";")
	out := ParsedStationURL{}
	if len(parts) == 0 {
		return out
	}
	out.Scheme = parts[0]
	for _, seg := range parts[1:] {
		if seg == "" {
			continue
		}
		k, v, found := strings.Cut(seg, "=")
		if !found {
			out.Pairs = append(out.Pairs, StationURLPair{Key: k})
			continue
		}
		out.Pairs = append(out.Pairs, StationURLPair{Key: k, Value: v, HasEquals: true})
	}
	return out
}

// Get returns the value of the first pair with the given key.
func (p ParsedStationURL) Get(key string) (string, bool) {
	for _, pair := range p.Pairs {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// String rebuilds the station URL string.
func (p ParsedStationURL) String() string {
	var b strings.Builder
	b.WriteString(p.Scheme)
	for _, pair := range p.Pairs {
		b.WriteByte(';')
		b.WriteString(pair.Key)
		if pair.HasEquals {
			b.WriteByte('=')
			b.WriteString(pair.Value)
		}
	}
	return b.String()
}
