package storage

const schema = `
-- The 'sessions' table stores per-visitor quiz progress, keyed by the session cookie.
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    current_level INTEGER NOT NULL DEFAULT 0, -- 0: none, 1: true/false, 2: recall, 3: matching
    score INTEGER NOT NULL DEFAULT 0,
    questions_answered INTEGER NOT NULL DEFAULT 0,
    total_questions INTEGER NOT NULL DEFAULT 0,
    level1_completed INTEGER NOT NULL DEFAULT 0,
    level2_completed INTEGER NOT NULL DEFAULT 0,
    level3_completed INTEGER NOT NULL DEFAULT 0,
    deck TEXT NOT NULL DEFAULT '',
    matching TEXT NOT NULL DEFAULT '{}', -- JSON encoded level 3 holding area
    updated_at DATETIME NOT NULL
);
`
