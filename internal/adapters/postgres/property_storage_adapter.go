package postgres

import (
	"context"
	"fmt"

	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mmcloughlin/geohash"
)

const geohashPrecision = 6

// locationGeohash buckets a coordinate pair for area-level grouping.
// Either coordinate missing means no bucket at all, not a zero-island one.
func locationGeohash(lat, lng *float64) *string {
	if lat == nil || lng == nil {
		return nil
	}
	gh := geohash.EncodeWithPrecision(*lat, *lng, geohashPrecision)
	return &gh
}

// PropertyStorageAdapter implements PropertySinkPort for PostgreSQL.
type PropertyStorageAdapter struct {
	dbPool *pgxpool.Pool
}

// NewPropertyStorageAdapter creates a new property store over the given pool.
func NewPropertyStorageAdapter(dbPool *pgxpool.Pool) (*PropertyStorageAdapter, error) {
	if dbPool == nil {
		return nil, fmt.Errorf("postgres property store: dbPool cannot be nil")
	}
	return &PropertyStorageAdapter{dbPool: dbPool}, nil
}

// Emit upserts one merged property keyed by (source, listing_key).
// A later scrape of the same listing refreshes the volatile fields
// (price, title, media, agent); address and coordinates keep their
// first observed values.
func (a *PropertyStorageAdapter) Emit(ctx context.Context, property domain.Property, taskID uuid.UUID) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PropertyStorageAdapter",
		"method":    "Emit",
	})

	key := property.Identity()
	if key == "" {
		return fmt.Errorf("postgres property store: property from source '%s' carries no identity", property.Source)
	}

	query := `
        INSERT INTO properties (
            source, listing_key, listing_id, task_id, url, title,
            price_text, price_value, price_currency,
            address, street_address, locality, region, postal_code, country,
            property_type, beds, baths, floor_area, tenure,
            description, features, images, agent_name, agent_url,
            latitude, longitude, geohash, scraped_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
            $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29
        )
        ON CONFLICT (source, listing_key) DO UPDATE SET
            updated_at = NOW(),
            task_id = EXCLUDED.task_id,
            url = EXCLUDED.url,
            title = EXCLUDED.title,
            price_text = EXCLUDED.price_text,
            price_value = EXCLUDED.price_value,
            price_currency = EXCLUDED.price_currency,
            beds = EXCLUDED.beds,
            baths = EXCLUDED.baths,
            description = EXCLUDED.description,
            features = EXCLUDED.features,
            images = EXCLUDED.images,
            agent_name = EXCLUDED.agent_name,
            agent_url = EXCLUDED.agent_url,
            scraped_at = EXCLUDED.scraped_at
        RETURNING (xmax = 0) AS inserted
    `

	var inserted bool
	err := a.dbPool.QueryRow(ctx, query,
		property.Source, key, property.ListingID, taskID, property.URL, property.Title,
		property.Price, property.PriceValue, property.PriceCurrency,
		property.Address, property.StreetAddress, property.Locality, property.Region, property.PostalCode, property.Country,
		property.PropertyType, property.Beds, property.Baths, property.FloorArea, property.Tenure,
		property.Description, property.Features, property.Images, property.AgentName, property.AgentURL,
		property.Latitude, property.Longitude, locationGeohash(property.Latitude, property.Longitude), property.ScrapedAt,
	).Scan(&inserted)
	if err != nil {
		repoLogger.Error("Failed to store property", err, port.Fields{
			"listing_key": key,
			"source":      property.Source,
		})
		return fmt.Errorf("postgres property store: storing listing '%s': %w", key, err)
	}

	if inserted {
		repoLogger.Debug("Stored new property", port.Fields{"listing_key": key, "source": property.Source})
	} else {
		repoLogger.Debug("Refreshed existing property", port.Fields{"listing_key": key, "source": property.Source})
	}
	return nil
}

// CREATE TABLE IF NOT EXISTS properties (
//     id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//     source VARCHAR(32) NOT NULL,
//     listing_key TEXT NOT NULL,
//     listing_id TEXT,
//     task_id UUID,
//     url TEXT,
//     title TEXT,
//     price_text TEXT,
//     price_value DOUBLE PRECISION,
//     price_currency VARCHAR(8),
//     address TEXT,
//     street_address TEXT,
//     locality TEXT,
//     region TEXT,
//     postal_code TEXT,
//     country TEXT,
//     property_type TEXT,
//     beds SMALLINT,
//     baths SMALLINT,
//     floor_area TEXT,
//     tenure TEXT,
//     description TEXT,
//     features TEXT[],
//     images TEXT[],
//     agent_name TEXT,
//     agent_url TEXT,
//     latitude DOUBLE PRECISION,
//     longitude DOUBLE PRECISION,
//     geohash VARCHAR(12),
//     scraped_at TIMESTAMPTZ NOT NULL,
//     created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//     updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//     UNIQUE (source, listing_key)
// );

// CREATE INDEX IF NOT EXISTS idx_properties_geohash ON properties(geohash);
// CREATE INDEX IF NOT EXISTS idx_properties_scraped_at ON properties(scraped_at DESC);
