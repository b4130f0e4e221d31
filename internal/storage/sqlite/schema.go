package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS authors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL CHECK (name <> ''),
	born_date TEXT,
	born_location TEXT,
	description TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS quotes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL CHECK (text <> ''),
	author_id INTEGER REFERENCES authors (id),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS quote_tags (
	quote_id INTEGER NOT NULL REFERENCES quotes (id),
	tag_id INTEGER NOT NULL REFERENCES tags (id),
	PRIMARY KEY (quote_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_quotes_author_id ON quotes (author_id);
CREATE INDEX IF NOT EXISTS idx_quote_tags_tag_id ON quote_tags (tag_id);
`

// quoteViewQuery joins each quote with its author and aggregated tag names.
// The %s slot takes an optional WHERE clause.
const quoteViewQuery = `
SELECT q.id, q.text,
	COALESCE(a.name, ''), COALESCE(a.born_date, ''),
	COALESCE(a.born_location, ''), COALESCE(a.description, ''),
	COALESCE(GROUP_CONCAT(t.name, char(31)), '')
FROM quotes q
LEFT JOIN authors a ON q.author_id = a.id
LEFT JOIN quote_tags qt ON q.id = qt.quote_id
LEFT JOIN tags t ON qt.tag_id = t.id
%s
GROUP BY q.id
ORDER BY q.id`

const (
	whereAuthorLike = `WHERE a.name LIKE ? ESCAPE '\'`
	whereTagLike    = `WHERE q.id IN (
	SELECT qt2.quote_id FROM quote_tags qt2
	JOIN tags t2 ON qt2.tag_id = t2.id
	WHERE t2.name LIKE ? ESCAPE '\')`
)
