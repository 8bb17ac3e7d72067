package sqlite

// Schema is defined from the ReviewRecord model directly; the location
// triple is flattened into three nullable columns that are written and read
// as a unit.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS reports (
  id            TEXT PRIMARY KEY,
  user_id       TEXT NOT NULL,
  user_name     TEXT NOT NULL DEFAULT '',
  winery_name   TEXT NOT NULL DEFAULT '',
  content       TEXT NOT NULL DEFAULT '',
  image_url     TEXT NOT NULL DEFAULT '',
  rating        INTEGER NOT NULL DEFAULT 0,
  created_at    INTEGER NOT NULL,
  location_name TEXT,
  location_lat  REAL,
  location_lng  REAL
);
CREATE INDEX IF NOT EXISTS idx_reports_user_created
  ON reports (user_id, created_at DESC);
`

const upsertReportSQL = `
INSERT INTO reports
  (id, user_id, user_name, winery_name, content, image_url, rating, created_at,
   location_name, location_lat, location_lng)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  user_id       = excluded.user_id,
  user_name     = excluded.user_name,
  winery_name   = excluded.winery_name,
  content       = excluded.content,
  image_url     = excluded.image_url,
  rating        = excluded.rating,
  created_at    = excluded.created_at,
  location_name = excluded.location_name,
  location_lat  = excluded.location_lat,
  location_lng  = excluded.location_lng
`

const selectColumns = `
  id, user_id, user_name, winery_name, content, image_url, rating, created_at,
  location_name, location_lat, location_lng`

const selectAllSQL = `
SELECT` + selectColumns + `
FROM reports
ORDER BY created_at DESC, id DESC`

const selectByUserSQL = `
SELECT` + selectColumns + `
FROM reports
WHERE user_id = ?
ORDER BY created_at DESC, id DESC`

const selectByIDSQL = `
SELECT` + selectColumns + `
FROM reports
WHERE id = ?`

const deleteByIDSQL = `DELETE FROM reports WHERE id = ?`

const deleteByUserSQL = `DELETE FROM reports WHERE user_id = ?`
