package postgres

import (
	"context"
	"database/sql"

	"github.com/grepdeck/authgate/internal/domain"
)

// EnsureSchema creates the tables this service owns. Restart safe; real
// deployments may manage the schema externally and skip this.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const q = `
CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    email      TEXT NOT NULL UNIQUE,
    name       TEXT,
    image      TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orgs (
    id     BIGINT PRIMARY KEY,
    domain TEXT NOT NULL UNIQUE,
    name   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS org_memberships (
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    org_id     BIGINT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
    role       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, org_id)
);
`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

// EnsureOrg upserts the deployment's org row so memberships have something
// to reference in single-tenant mode.
func EnsureOrg(ctx context.Context, db *sql.DB, id int64, orgDomain, name string) error {
	const q = `
INSERT INTO orgs (id, domain, name)
VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET domain = EXCLUDED.domain, name = EXCLUDED.name;
`
	if _, err := db.ExecContext(ctx, q, id, orgDomain, name); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
