package storage

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS certificates (
	id                UUID PRIMARY KEY,
	user_id           UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title             TEXT NOT NULL DEFAULT '',
	issuing_authority TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT 'Other',
	notes             TEXT NOT NULL DEFAULT '',
	issue_date        DATE,
	expiry_date       DATE,
	is_private        BOOLEAN NOT NULL DEFAULT TRUE,
	storage_path      TEXT NOT NULL,
	file_name         TEXT NOT NULL DEFAULT '',
	file_size         BIGINT NOT NULL DEFAULT 0,
	mime_type         TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (issue_date IS NULL OR expiry_date IS NULL OR issue_date <= expiry_date)
);

CREATE INDEX IF NOT EXISTS certificates_user_created_idx
	ON certificates (user_id, created_at DESC, id DESC);
`
