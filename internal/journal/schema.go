package journal

// Schema creates the actions table. Every controller action adds one row.
const Schema = `
CREATE TABLE IF NOT EXISTS actions (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    image TEXT NOT NULL,
    image_id INTEGER,
    changed INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    error_message TEXT,
    driver_url TEXT NOT NULL,
    started_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_image ON actions(image);
CREATE INDEX IF NOT EXISTS idx_actions_started_at ON actions(started_at);
`

// Entry is one recorded action.
type Entry struct {
	ID        string
	Action    string
	Image     string
	ImageID   int
	Changed   bool
	Outcome   string
	Error     string
	DriverURL string
	StartedAt string
	Duration  int64
}
