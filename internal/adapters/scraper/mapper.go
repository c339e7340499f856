package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"rental_insights/internal/domain"
)

/********** alias registry (single source of truth) **********/

var listingAliases = map[string][]string{
	"title":     {"title", "name", "listing.title", "listing.name"},
	"price":     {"nightly_price", "nightlyPrice", "price.nightly", "price.amount", "pricing.nightly", "price"},
	"currency":  {"currency", "price.currency", "pricing.currency"},
	"reviews":   {"review_count", "reviewCount", "reviews_count", "reviews.count", "reviewsCount"},
	"rating":    {"rating", "rating.value", "avg_rating", "averageRating", "reviews.rating"},
	"amenities": {"amenities", "listing.amenities", "features"},
	"host":      {"host.name", "host_name", "hostName", "host"},
	"superhost": {"host.is_superhost", "host.isSuperhost", "is_superhost", "isSuperhost", "superhost"},
}

var (
	priceRegex  = regexp.MustCompile(`([\d,]+(?:\.\d{1,2})?)`)
	nightsRegex = regexp.MustCompile(`for\s+(\d+)\s+night`)
	ratingRegex = regexp.MustCompile(`(\d(?:\.\d{1,2})?)`)
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstAlias returns the first non-nil, non-empty value for a named alias set.
func firstAlias(m map[string]any, key string) any {
	for _, p := range listingAliases[key] {
		v := lookupAny(m, p)
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func asString(v any) *string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return &s
	case map[string]any:
		if n, ok := t["name"].(string); ok && n != "" {
			return &n
		}
	}
	return nil
}

func asFloat(v any, parse func(string) *float64) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		return parse(t)
	case map[string]any:
		if f, ok := t["value"].(float64); ok {
			return &f
		}
	}
	return nil
}

func asInt(v any) *int {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return nil
		}
		n := int(t)
		return &n
	case string:
		n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(t), ",", ""))
		if err != nil || n < 0 {
			return nil
		}
		return &n
	case []any:
		n := len(t)
		return &n
	}
	return nil
}

func asBool(v any) *bool {
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &b
	}
	return nil
}

// parsePrice reads "$180", "$1,020 for 3 nights" (per-night) or "180.50".
func parsePrice(raw string) *float64 {
	cleaned := strings.ReplaceAll(raw, ",", "")
	m := priceRegex.FindStringSubmatch(cleaned)
	if len(m) < 2 {
		return nil
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if n := nightsRegex.FindStringSubmatch(cleaned); len(n) >= 2 {
		if nights, err := strconv.ParseFloat(n[1], 64); err == nil && nights > 0 {
			val /= nights
		}
	}
	return &val
}

// parseRating reads "4.82 out of 5"; anything above 5 is not a rating.
func parseRating(raw string) *float64 {
	m := ratingRegex.FindStringSubmatch(raw)
	if len(m) < 2 {
		return nil
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil || val > 5 {
		return nil
	}
	return &val
}

func amenities(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := asString(it); s != nil && *s != "" {
			out = append(out, *s)
		}
	}
	return out
}

// MapListing turns the service's loose JSON into a snapshot. Anything not
// recognized stays nil.
func MapListing(m map[string]any) domain.ListingSnapshot {
	if m == nil {
		return domain.ListingSnapshot{}
	}
	snap := domain.ListingSnapshot{
		Title:        asString(firstAlias(m, "title")),
		NightlyPrice: asFloat(firstAlias(m, "price"), parsePrice),
		Currency:     asString(firstAlias(m, "currency")),
		ReviewCount:  asInt(firstAlias(m, "reviews")),
		Rating:       asFloat(firstAlias(m, "rating"), parseRating),
		Amenities:    amenities(firstAlias(m, "amenities")),
		HostName:     asString(firstAlias(m, "host")),
		IsSuperhost:  asBool(firstAlias(m, "superhost")),
	}
	if snap.Currency != nil {
		up := strings.ToUpper(*snap.Currency)
		snap.Currency = &up
	}
	return snap
}
