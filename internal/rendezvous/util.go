package rendezvous

import (
	"time"

	"github.com/rdv2go/rdv2go/internal/codec"
)

// dateTimeOf converts a time.Time to the wire-packed DateTime used by
// RMC structures that embed timestamps (spec §4.1 "DateTime").
func dateTimeOf(t time.Time) codec.DateTime {
	return codec.DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}
