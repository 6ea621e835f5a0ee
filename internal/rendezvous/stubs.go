package rendezvous

import (
	"context"

	"github.com/rdv2go/rdv2go/internal/prudp"
	"github.com/rdv2go/rdv2go/internal/rmc"
)

// stub builds a HandlerFunc that decodes nothing, logs the attempted
// call, and always reports UnimplementedMethod — the friends/accounts/
// news/stats surface is out of scope beyond acknowledging the call
// without tearing down the connection (spec §4.5 "Friends/accounts/
// news/stats"; SUPPLEMENTED FEATURES "Friend-list stub surface").
func (h *Handlers) stub(name string) rmc.HandlerFunc {
	return func(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
		h.logger().Debug("unimplemented method called", "method", name, "params_len", len(params))
		return nil, rmc.NotImplemented
	}
}
