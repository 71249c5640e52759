package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/jackc/pgx/v5/pgconn"
    _ "github.com/jackc/pgx/v5/stdlib"

    "github.com/yourorg/tokko-sync/internal/canon"
)

type Postgres struct { DB *sql.DB }

func Open(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil { return nil, err }
    db.SetMaxOpenConns(10)
    db.SetMaxIdleConns(5)
    db.SetConnMaxLifetime(30 * time.Minute)
    return &Postgres{DB: db}, nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Postgres) Close() error { return s.DB.Close() }

func (s *Postgres) Migrate(ctx context.Context) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS post_types (
            name        TEXT PRIMARY KEY,
            created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE TABLE IF NOT EXISTS records (
            id                 BIGSERIAL PRIMARY KEY,
            post_type          TEXT NOT NULL REFERENCES post_types(name),
            title              TEXT NOT NULL,
            body               TEXT NOT NULL DEFAULT '',
            status             TEXT NOT NULL DEFAULT 'publish',
            featured_media_id  BIGINT,
            created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE INDEX IF NOT EXISTS idx_records_post_type ON records(post_type);`,
        `CREATE TABLE IF NOT EXISTS record_meta (
            record_id   BIGINT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
            meta_key    TEXT NOT NULL,
            meta_value  TEXT NOT NULL,
            PRIMARY KEY (record_id, meta_key)
        );`,
        `CREATE INDEX IF NOT EXISTS idx_record_meta_lookup ON record_meta(meta_key, meta_value);`,
        // one record per external id, whatever the post type
        `CREATE UNIQUE INDEX IF NOT EXISTS ux_record_meta_external ON record_meta(meta_value) WHERE meta_key = '_external_id';`,
        `CREATE TABLE IF NOT EXISTS terms (
            id          BIGSERIAL PRIMARY KEY,
            taxonomy    TEXT NOT NULL,
            name        TEXT NOT NULL,
            slug        TEXT NOT NULL,
            created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE UNIQUE INDEX IF NOT EXISTS ux_terms_taxonomy_slug ON terms(taxonomy, slug);`,
        `CREATE TABLE IF NOT EXISTS term_assignments (
            record_id   BIGINT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
            taxonomy    TEXT NOT NULL,
            term_id     BIGINT NOT NULL REFERENCES terms(id),
            position    INTEGER NOT NULL DEFAULT 0,
            PRIMARY KEY (record_id, term_id)
        );`,
        `CREATE INDEX IF NOT EXISTS idx_term_assignments_tax ON term_assignments(record_id, taxonomy);`,
        `CREATE TABLE IF NOT EXISTS media_assets (
            id            BIGSERIAL PRIMARY KEY,
            owner_id      BIGINT NOT NULL REFERENCES records(id),
            source_url    TEXT NOT NULL,
            filename      TEXT NOT NULL,
            content_type  TEXT,
            size_bytes    INTEGER NOT NULL,
            data          BYTEA NOT NULL,
            created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE UNIQUE INDEX IF NOT EXISTS ux_media_source_url ON media_assets(source_url);`,
        `CREATE TABLE IF NOT EXISTS sync_runs (
            id           UUID PRIMARY KEY,
            post_type    TEXT NOT NULL,
            started_at   TIMESTAMPTZ NOT NULL,
            finished_at  TIMESTAMPTZ NOT NULL,
            imported     INT NOT NULL DEFAULT 0,
            updated      INT NOT NULL DEFAULT 0,
            error_count  INT NOT NULL DEFAULT 0,
            errors       JSONB NOT NULL DEFAULT '[]'::jsonb
        );`,
        `CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at DESC);`,
    }
    for _, q := range stmts {
        if _, err := s.DB.ExecContext(ctx, q); err != nil { return err }
    }
    return nil
}

// EnsurePostType registers a post type so records of that type can be created.
func (s *Postgres) EnsurePostType(ctx context.Context, postType string) error {
    _, err := s.DB.ExecContext(ctx, `INSERT INTO post_types (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, postType)
    return err
}

func (s *Postgres) PostTypeExists(ctx context.Context, postType string) (bool, error) {
    var ok bool
    err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM post_types WHERE name=$1)`, postType).Scan(&ok)
    return ok, err
}

func (s *Postgres) FindByMeta(ctx context.Context, postType, key, value string) (RecordID, bool, error) {
    var id int64
    err := s.DB.QueryRowContext(ctx, `
        SELECT r.id FROM records r
        JOIN record_meta m ON m.record_id = r.id
        WHERE r.post_type=$1 AND m.meta_key=$2 AND m.meta_value=$3
        ORDER BY r.id
        LIMIT 1`, postType, key, value).Scan(&id)
    if errors.Is(err, sql.ErrNoRows) { return 0, false, nil }
    if err != nil { return 0, false, err }
    return RecordID(id), true, nil
}

func (s *Postgres) CreateRecord(ctx context.Context, in NewRecord) (RecordID, error) {
    status := in.Status
    if status == "" { status = "publish" }

    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil { return 0, err }
    defer func() { if err != nil { _ = tx.Rollback() } }()

    var id int64
    err = tx.QueryRowContext(ctx, `
        INSERT INTO records (post_type, title, body, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id`, in.PostType, in.Title, in.Body, status).Scan(&id)
    if err != nil { return 0, rejected(err) }

    for k, v := range in.Meta {
        if _, err = tx.ExecContext(ctx, `INSERT INTO record_meta (record_id, meta_key, meta_value) VALUES ($1,$2,$3)`, id, k, v); err != nil {
            return 0, rejected(err)
        }
    }
    if err = tx.Commit(); err != nil { return 0, err }
    return RecordID(id), nil
}

func (s *Postgres) UpdateRecord(ctx context.Context, id RecordID, in RecordUpdate) error {
    res, err := s.DB.ExecContext(ctx, `UPDATE records SET title=$2, body=$3, updated_at=now() WHERE id=$1`, int64(id), in.Title, in.Body)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return fmt.Errorf("record %d: %w", id, ErrNotFound) }
    return nil
}

func (s *Postgres) SetMeta(ctx context.Context, id RecordID, key, value string) error {
    _, err := s.DB.ExecContext(ctx, `
        INSERT INTO record_meta (record_id, meta_key, meta_value) VALUES ($1,$2,$3)
        ON CONFLICT (record_id, meta_key) DO UPDATE SET meta_value=EXCLUDED.meta_value`, int64(id), key, value)
    return rejected(err)
}

func (s *Postgres) GetOrCreateTerm(ctx context.Context, taxonomy, name string) (TermID, error) {
    slug := canon.Slug(name)
    if slug == "" { return 0, fmt.Errorf("empty term name: %w", ErrRejected) }
    var id int64
    // no-op update so RETURNING yields the existing row on conflict
    err := s.DB.QueryRowContext(ctx, `
        INSERT INTO terms (taxonomy, name, slug) VALUES ($1,$2,$3)
        ON CONFLICT (taxonomy, slug) DO UPDATE SET slug=EXCLUDED.slug
        RETURNING id`, taxonomy, canon.CleanLabel(name), slug).Scan(&id)
    if err != nil { return 0, rejected(err) }
    return TermID(id), nil
}

func (s *Postgres) AssignTerms(ctx context.Context, id RecordID, taxonomy string, terms []TermID) error {
    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func() { if err != nil { _ = tx.Rollback() } }()

    if _, err = tx.ExecContext(ctx, `DELETE FROM term_assignments WHERE record_id=$1 AND taxonomy=$2`, int64(id), taxonomy); err != nil { return err }
    for i, t := range terms {
        if _, err = tx.ExecContext(ctx, `
            INSERT INTO term_assignments (record_id, taxonomy, term_id, position) VALUES ($1,$2,$3,$4)
            ON CONFLICT (record_id, term_id) DO UPDATE SET taxonomy=EXCLUDED.taxonomy, position=EXCLUDED.position`,
            int64(id), taxonomy, int64(t), i); err != nil {
            return rejected(err)
        }
    }
    return tx.Commit()
}

func (s *Postgres) FindMediaBySourceURL(ctx context.Context, sourceURL string) (MediaID, bool, error) {
    var id int64
    err := s.DB.QueryRowContext(ctx, `SELECT id FROM media_assets WHERE source_url=$1`, sourceURL).Scan(&id)
    if errors.Is(err, sql.ErrNoRows) { return 0, false, nil }
    if err != nil { return 0, false, err }
    return MediaID(id), true, nil
}

func (s *Postgres) CreateMedia(ctx context.Context, owner RecordID, in NewMedia) (MediaID, error) {
    var id int64
    err := s.DB.QueryRowContext(ctx, `
        INSERT INTO media_assets (owner_id, source_url, filename, content_type, size_bytes, data)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`, int64(owner), in.SourceURL, in.Filename, nullString(in.ContentType), len(in.Data), in.Data).Scan(&id)
    if err != nil { return 0, rejected(err) }
    return MediaID(id), nil
}

func (s *Postgres) SetFeaturedMedia(ctx context.Context, id RecordID, media MediaID) error {
    res, err := s.DB.ExecContext(ctx, `UPDATE records SET featured_media_id=$2, updated_at=now() WHERE id=$1`, int64(id), int64(media))
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return fmt.Errorf("record %d: %w", id, ErrNotFound) }
    return nil
}

func (s *Postgres) RecordRun(ctx context.Context, run Run) error {
    errs := run.Errors
    if errs == nil { errs = []string{} }
    payload, err := json.Marshal(errs)
    if err != nil { return err }
    _, err = s.DB.ExecContext(ctx, `
        INSERT INTO sync_runs (id, post_type, started_at, finished_at, imported, updated, error_count, errors)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO NOTHING`,
        run.ID, run.PostType, run.StartedAt, run.FinishedAt, run.Imported, run.Updated, len(run.Errors), string(payload))
    return err
}

func nullString(s string) sql.NullString {
    if s == "" { return sql.NullString{} }
    return sql.NullString{String: s, Valid: true}
}

// rejected maps constraint violations onto ErrRejected.
func rejected(err error) error {
    if err == nil { return nil }
    var pgErr *pgconn.PgError
    if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
        return fmt.Errorf("%s: %w", pgErr.Message, ErrRejected)
    }
    return err
}
