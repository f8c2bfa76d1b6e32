package storage

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id          TEXT PRIMARY KEY,
		status              TEXT    NOT NULL DEFAULT 'not_started',
		quick_mode          INTEGER NOT NULL DEFAULT 0,
		created_at          TEXT    NOT NULL,
		started_at          TEXT,
		completed_at        TEXT,
		error_message       TEXT    NOT NULL DEFAULT '',

		task_type           TEXT    NOT NULL,
		task_prompt         TEXT    NOT NULL,
		prompt_time_limit   INTEGER NOT NULL DEFAULT 0,
		word_count_min      INTEGER NOT NULL DEFAULT 0,
		word_count_max      INTEGER NOT NULL DEFAULT 0,
		time_limit          INTEGER,

		user_response_text  TEXT    NOT NULL DEFAULT '',
		user_word_count     INTEGER NOT NULL DEFAULT 0,
		time_taken          INTEGER,
		submitted_at        TEXT,

		overall_score              REAL,
		task_achievement_score     REAL,
		coherence_cohesion_score   REAL,
		lexical_resource_score     REAL,
		grammatical_range_score    REAL,
		general_feedback           TEXT,
		detailed_feedback          TEXT,
		recommendations            TEXT,
		assessor_model             TEXT,
		assessed_at                TEXT,
		assessment_metadata        TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_status  ON sessions(status);

	CREATE TABLE IF NOT EXISTS criteria_assessments (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id            TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		criterion_name        TEXT NOT NULL,
		score                 REAL NOT NULL,
		feedback              TEXT NOT NULL DEFAULT '',
		strengths             TEXT,
		areas_for_improvement TEXT,
		UNIQUE (session_id, criterion_name)
	);

	CREATE INDEX IF NOT EXISTS idx_criteria_session ON criteria_assessments(session_id);
`
