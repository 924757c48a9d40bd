package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"elainedb.dev/geotube/model"
)

type PostgresInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type Postgres struct {
	db *sql.DB
	notifier
}

func NewPostgres(info PostgresInfo) (*Postgres, error) {
	db, err := sql.Open("postgres", fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		info.Host, info.Port, info.User, info.Password, info.Database))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	p := &Postgres{db: db}
	if err := p.migrate(pgMigration); err != nil {
		return nil, err
	}

	return p, nil
}

var pgMigration = []string{
	`CREATE TABLE video (
id VARCHAR(255) PRIMARY KEY,
title TEXT NOT NULL DEFAULT '',
channel_name VARCHAR(255) NOT NULL DEFAULT '',
channel_id VARCHAR(255) NOT NULL DEFAULT '',
published_at VARCHAR(255) NOT NULL DEFAULT '',
thumbnail_url TEXT NOT NULL DEFAULT '',
description TEXT NOT NULL DEFAULT '',
tags TEXT NOT NULL DEFAULT '',
location_city VARCHAR(255),
location_country VARCHAR(255),
location_latitude DOUBLE PRECISION,
location_longitude DOUBLE PRECISION,
recording_date VARCHAR(255),
cache_timestamp BIGINT NOT NULL
)`,
	`CREATE INDEX video_cache_timestamp_idx ON video (cache_timestamp)`,
	`CREATE INDEX video_channel_name_idx ON video (channel_name)`,
	`CREATE INDEX video_location_country_idx ON video (location_country)`,
}

const videoColumns = `id, title, channel_name, channel_id, published_at, thumbnail_url,
description, tags, location_city, location_country, location_latitude, location_longitude,
recording_date`

func (p *Postgres) UpsertAll(videos []model.Video, cachedAt time.Time) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range videos {
		var lat, lon sql.NullFloat64
		if v.HasCoordinates() {
			lat = sql.NullFloat64{Float64: *v.LocationLatitude, Valid: true}
			lon = sql.NullFloat64{Float64: *v.LocationLongitude, Valid: true}
		}
		_, err := tx.Exec(`
INSERT INTO video (`+videoColumns+`, cache_timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
title = EXCLUDED.title,
channel_name = EXCLUDED.channel_name,
channel_id = EXCLUDED.channel_id,
published_at = EXCLUDED.published_at,
thumbnail_url = EXCLUDED.thumbnail_url,
description = EXCLUDED.description,
tags = EXCLUDED.tags,
location_city = EXCLUDED.location_city,
location_country = EXCLUDED.location_country,
location_latitude = EXCLUDED.location_latitude,
location_longitude = EXCLUDED.location_longitude,
recording_date = EXCLUDED.recording_date,
cache_timestamp = EXCLUDED.cache_timestamp`,
			v.ID, v.Title, v.ChannelName, v.ChannelID, v.PublishedAt, v.ThumbnailURL,
			v.Description, strings.Join(v.Tags, ","), nullString(v.LocationCity),
			nullString(v.LocationCountry), lat, lon, nullString(v.RecordingDate),
			cachedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to upsert video %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	p.notify()

	return nil
}

func (p *Postgres) FindNewerThan(threshold time.Time) ([]model.Video, error) {
	rows, err := p.db.Query(`
SELECT `+videoColumns+`
FROM video
WHERE cache_timestamp > $1
ORDER BY published_at DESC, id`, threshold.UnixMilli())
	if err != nil {
		return nil, err
	}

	return scanVideos(rows)
}

func (p *Postgres) List(filter model.FilterOptions, sort model.SortOption) ([]model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM video`
	where := []string{}
	args := []any{}
	if filter.ChannelName != "" {
		args = append(args, filter.ChannelName)
		where = append(where, fmt.Sprintf("channel_name = $%d", len(args)))
	}
	if filter.Country != "" {
		args = append(args, filter.Country)
		where = append(where, fmt.Sprintf("location_country = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(sort)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}

	return scanVideos(rows)
}

// orderClause maps a sort option to SQL. Dates are stored in their RFC 3339
// textual form, which sorts lexicographically in chronological order.
// Records missing the recording date sort last regardless of direction.
func orderClause(sort model.SortOption) string {
	switch sort {
	case model.SortPublishedOldest:
		return "published_at ASC, id"
	case model.SortRecordedNewest:
		return "recording_date IS NULL, recording_date DESC, id"
	case model.SortRecordedOldest:
		return "recording_date IS NULL, recording_date ASC, id"
	default:
		return "published_at DESC, id"
	}
}

func (p *Postgres) DistinctChannels() ([]string, error) {
	return p.queryStrings(`SELECT DISTINCT channel_name FROM video ORDER BY channel_name`)
}

func (p *Postgres) DistinctCountries() ([]string, error) {
	return p.queryStrings(`
SELECT DISTINCT location_country FROM video
WHERE location_country IS NOT NULL AND location_country != ''
ORDER BY location_country`)
}

func (p *Postgres) Count() (int, error) {
	var count int
	if err := p.db.QueryRow(`SELECT COUNT(*) FROM video`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *Postgres) Delete(id string) error {
	if _, err := p.db.Exec(`DELETE FROM video WHERE id = $1`, id); err != nil {
		return err
	}
	p.notify()
	return nil
}

func (p *Postgres) DeleteAll() error {
	if _, err := p.db.Exec(`DELETE FROM video`); err != nil {
		return err
	}
	p.notify()
	return nil
}

func (p *Postgres) DeleteOlderThan(threshold time.Time) error {
	if _, err := p.db.Exec(`DELETE FROM video WHERE cache_timestamp < $1`, threshold.UnixMilli()); err != nil {
		return err
	}
	p.notify()
	return nil
}

func (p *Postgres) queryStrings(query string) ([]string, error) {
	rows, err := p.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

func scanVideos(rows *sql.Rows) ([]model.Video, error) {
	defer rows.Close()

	videos := []model.Video{}
	for rows.Next() {
		var (
			v             model.Video
			tags          string
			city, country sql.NullString
			lat, lon      sql.NullFloat64
			recordingDate sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Title, &v.ChannelName, &v.ChannelID, &v.PublishedAt,
			&v.ThumbnailURL, &v.Description, &tags, &city, &country, &lat, &lon,
			&recordingDate); err != nil {
			return nil, err
		}
		v.Tags = splitTags(tags)
		v.LocationCity = city.String
		v.LocationCountry = country.String
		if lat.Valid && lon.Valid {
			v.LocationLatitude = &lat.Float64
			v.LocationLongitude = &lon.Float64
		}
		v.RecordingDate = recordingDate.String
		videos = append(videos, v)
	}

	return videos, rows.Err()
}

func splitTags(tags string) []string {
	if tags == "" {
		return []string{}
	}
	return strings.Split(tags, ",")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (p *Postgres) migrate(wanted []string) error {
	query := `CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT)`
	_, err := p.db.Exec(query)
	if err != nil {
		return err
	}

	// find existing
	rows, err := p.db.Query(`SELECT query FROM migration ORDER BY id`)
	if err != nil {
		return err
	}

	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()

	// compare
	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	// execute missing
	for _, query := range missing {
		if _, err := p.db.Exec(query); err != nil {
			return err
		}

		// register
		if _, err := p.db.Exec(`
INSERT INTO migration
(query) VALUES ($1)
`, query); err != nil {
			return err
		}
	}

	return nil
}

func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return []string{}, fmt.Errorf("not enough migrations")
	}

	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want == existing[i]:
			// do nothing
		case want != existing[i]:
			return []string{}, fmt.Errorf("incompatible migration: %v", want)
		}
	}

	return needed, nil
}
