package db

import (
	"context"
	"fmt"
)

// RegisterUrls atomically replaces a principal's registered station
// URLs (spec §3 "StationURL"; §6 "station_urls unique per
// (user_id, url)"). The prior set is fully discarded — rendezvous
// clients re-announce their full reachability set on every registration.
func (d *DB) RegisterUrls(ctx context.Context, principalID uint32, urls []string) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("registering urls for %d: %w", principalID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM station_urls WHERE user_id = $1`, principalID); err != nil {
		return fmt.Errorf("registering urls for %d: %w", principalID, err)
	}
	for _, url := range urls {
		if _, err := tx.Exec(ctx,
			`INSERT INTO station_urls (user_id, url) VALUES ($1, $2) ON CONFLICT (user_id, url) DO NOTHING`,
			principalID, url,
		); err != nil {
			return fmt.Errorf("registering url %q for %d: %w", url, principalID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("registering urls for %d: %w", principalID, err)
	}
	return nil
}

// GetStationURLs returns a principal's currently registered station
// URLs.
func (d *DB) GetStationURLs(ctx context.Context, principalID uint32) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT url FROM station_urls WHERE user_id = $1`, principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching station urls for %d: %w", principalID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scanning station url row: %w", err)
		}
		out = append(out, url)
	}
	return out, rows.Err()
}

// ClearStationURLs removes all of a principal's station URLs, called
// when its PRUDP connection tears down.
func (d *DB) ClearStationURLs(ctx context.Context, principalID uint32) error {
	if _, err := d.pool.Exec(ctx, `DELETE FROM station_urls WHERE user_id = $1`, principalID); err != nil {
		return fmt.Errorf("clearing station urls for %d: %w", principalID, err)
	}
	return nil
}
