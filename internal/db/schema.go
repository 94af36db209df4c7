package db

const schemaSQL = `
-- ===========================================================================
-- SETTINGS
-- ===========================================================================

CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- ===========================================================================
-- STORED PLAYLISTS
-- ===========================================================================

CREATE TABLE IF NOT EXISTS playlists (
  playlist_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  entry_ids TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL DEFAULT (datetime('now')),
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_playlists_updated_at ON playlists(updated_at);

-- ===========================================================================
-- FAVORITES
-- ===========================================================================

CREATE TABLE IF NOT EXISTS favorites (
  media_id TEXT PRIMARY KEY,
  type TEXT NOT NULL CHECK (type IN ('album', 'track')),
  when_favorited TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_favorites_type ON favorites(type);

-- ===========================================================================
-- ENRICHMENT CACHES (lyrics, external links)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS lyrics (
  media_id TEXT PRIMARY KEY,
  artist TEXT,
  title TEXT,
  chunks TEXT NOT NULL DEFAULT '[]',
  is_valid INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS links (
  media_id TEXT PRIMARY KEY,
  payload TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
