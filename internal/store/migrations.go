package store

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    password TEXT NOT NULL DEFAULT '',
    domain TEXT NOT NULL DEFAULT '',
    inbox TEXT NOT NULL DEFAULT 'INBOX',
    email_distinction TEXT NOT NULL DEFAULT '',
    past_emails TEXT NOT NULL DEFAULT '[]',
    unread_total INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(username, domain, inbox)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id SERIAL PRIMARY KEY,
    username TEXT NOT NULL,
    password TEXT NOT NULL DEFAULT '',
    domain TEXT NOT NULL DEFAULT '',
    inbox TEXT NOT NULL DEFAULT 'INBOX',
    email_distinction TEXT NOT NULL DEFAULT '',
    past_emails TEXT NOT NULL DEFAULT '[]',
    unread_total INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(username, domain, inbox)
);
`
