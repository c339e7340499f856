package domain

import "context"

type PropertyRepository interface {
	// Write paths
	UpsertProperty(ctx context.Context, p Property) error
	DeleteProperty(ctx context.Context, id string) error
	LogIngest(ctx context.Context, run IngestRun) error

	// Read paths
	GetProperty(ctx context.Context, id string) (Property, error)
	GetPropertyByStandardName(ctx context.Context, standardName string) (Property, error)
	ListProperties(ctx context.Context, q PropertiesQuery) (PropertiesPage, error)
}

// ListingScraper is the external collaborator that turns a listing URL into
// a best-effort snapshot.
type ListingScraper interface {
	GetListing(ctx context.Context, url string) (ListingSnapshot, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
