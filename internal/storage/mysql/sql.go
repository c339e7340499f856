package mysql

// created_at is kept from the first insert; everything else follows the
// latest merge. standard_key is domain.NameKey(standard_name) and carries the
// identity index.
const upsertPropertySQL = `
INSERT INTO properties
  (id, name, standard_name, standard_key, airbnb_url, data_sources, metrics, health, data_completeness, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name              = VALUES(name),
  standard_name     = VALUES(standard_name),
  standard_key      = VALUES(standard_key),
  airbnb_url        = VALUES(airbnb_url),
  data_sources      = VALUES(data_sources),
  metrics           = VALUES(metrics),
  health            = VALUES(health),
  data_completeness = VALUES(data_completeness),
  updated_at        = VALUES(updated_at)
`

const deletePropertySQL = `DELETE FROM properties WHERE id = ?`

const insertIngestRunSQL = `
INSERT INTO ingest_runs (source, rows_seen, rows_dropped, properties, status, detail)
VALUES (?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const selectPropertyCols = `
SELECT
  p.id,
  p.name,
  p.standard_name,
  p.airbnb_url,
  p.data_sources,
  p.metrics,
  p.health,
  p.data_completeness,
  p.created_at,
  p.updated_at
FROM properties p
`

const getPropertySQL = selectPropertyCols + `WHERE p.id = ?`

const getPropertyByStandardNameSQL = selectPropertyCols + `WHERE p.standard_key = ?`

// Keyset pagination on id; one extra row is fetched to detect a next page.
const listPropertiesSQL = selectPropertyCols + `
WHERE p.id > ?
ORDER BY p.id
LIMIT ?`
