package db

import (
	"context"

	"parkwatch/internal/types"
)

// GarageInfoRepository keeps garage_info in step with the latest scrape.
type GarageInfoRepository struct {
	db DBTX
}

func NewGarageInfoRepository(db DBTX) *GarageInfoRepository {
	return &GarageInfoRepository{db: db}
}

// Upsert inserts or refreshes a garage's descriptive fields. An empty map URL
// does not erase a previously stored one.
func (r *GarageInfoRepository) Upsert(ctx context.Context, info types.GarageInfo) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO garage_info (garage_id, garage_name, address, map_url, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
		 ON CONFLICT (garage_id) DO UPDATE SET
		   garage_name = EXCLUDED.garage_name,
		   address = EXCLUDED.address,
		   map_url = COALESCE(EXCLUDED.map_url, garage_info.map_url),
		   updated_at = EXCLUDED.updated_at`,
		info.GarageID,
		info.GarageName,
		info.Address,
		info.MapURL,
	)
	if err != nil {
		return dbError("failed to upsert garage info", err)
	}
	return nil
}
