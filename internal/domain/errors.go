package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNoSources     = errors.New("property has no data sources")
	ErrInvalidWindow = errors.New("invalid reporting window")
	ErrEmptyName     = errors.New("property name is empty")
	ErrNoListingURL  = errors.New("property has no listing url")
)
