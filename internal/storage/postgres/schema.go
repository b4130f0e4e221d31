package postgres

const schema = `
CREATE TABLE IF NOT EXISTS authors (
	id BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL CHECK (name <> ''),
	born_date TEXT,
	born_location TEXT,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quotes (
	id BIGSERIAL PRIMARY KEY,
	text TEXT NOT NULL CHECK (text <> ''),
	author_id BIGINT REFERENCES authors (id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tags (
	id BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quote_tags (
	quote_id BIGINT NOT NULL REFERENCES quotes (id),
	tag_id BIGINT NOT NULL REFERENCES tags (id),
	PRIMARY KEY (quote_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_quotes_author_id ON quotes (author_id);
CREATE INDEX IF NOT EXISTS idx_quote_tags_tag_id ON quote_tags (tag_id);
`

const quoteViewQuery = `
SELECT q.id, q.text,
	COALESCE(a.name, ''), COALESCE(a.born_date, ''),
	COALESCE(a.born_location, ''), COALESCE(a.description, ''),
	COALESCE(string_agg(t.name, chr(31)), '')
FROM quotes q
LEFT JOIN authors a ON q.author_id = a.id
LEFT JOIN quote_tags qt ON q.id = qt.quote_id
LEFT JOIN tags t ON qt.tag_id = t.id
%s
GROUP BY q.id, a.id
ORDER BY q.id`

const (
	whereAuthorLike = `WHERE a.name ILIKE $1 ESCAPE '\'`
	whereTagLike    = `WHERE q.id IN (
	SELECT qt2.quote_id FROM quote_tags qt2
	JOIN tags t2 ON qt2.tag_id = t2.id
	WHERE t2.name ILIKE $1 ESCAPE '\')`
)
