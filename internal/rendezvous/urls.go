package rendezvous

import (
	"context"
	"fmt"

	"github.com/rdv2go/rdv2go/internal/codec"
	"github.com/rdv2go/rdv2go/internal/model"
	"github.com/rdv2go/rdv2go/internal/prudp"
	"github.com/rdv2go/rdv2go/internal/rmc"
)

// RegisterUrls atomically replaces the caller's station URL set (spec
// §4.5). Parameters: (station_urls List<StationURL>).
func (h *Handlers) RegisterUrls(ctx context.Context, rec *prudp.ConnectionRecord, params []byte) ([]byte, error) {
	if !rec.HasPrincipal {
		return nil, rmc.NotAuthenticated
	}
	n, rest, err := codec.GetListLen(params)
	if err != nil {
		return nil, fmt.Errorf("decoding station url list length: %w", err)
	}
	urls := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var url string
		url, rest, err = codec.GetStationURL(rest)
		if err != nil {
			return nil, fmt.Errorf("decoding station url: %w", err)
		}
		if model.ParseStationURL(url).Scheme == "" {
			return nil, rmc.InvalidArgument
		}
		urls = append(urls, url)
	}

	if err := h.Store.RegisterUrls(ctx, rec.PrincipalID, urls); err != nil {
		return nil, fmt.Errorf("registering station urls for %d: %w", rec.PrincipalID, err)
	}
	return nil, nil
}
