package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Recordings table - one row per finalized take
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			root TEXT NOT NULL,
			frame_rate REAL NOT NULL,
			channel_mode TEXT NOT NULL CHECK(channel_mode IN ('rotation', 'position')),
			rotation_order TEXT NOT NULL,
			samples INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Recording joints table - hierarchy and rest-pose offsets in insertion order
		`CREATE TABLE IF NOT EXISTS recording_joints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			parent TEXT NOT NULL DEFAULT '',
			offset_x REAL NOT NULL,
			offset_y REAL NOT NULL,
			offset_z REAL NOT NULL,
			channels TEXT NOT NULL DEFAULT ''
		)`,

		// Recording samples table - one row of channel values per accepted frame
		`CREATE TABLE IF NOT EXISTS recording_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			channel_values TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_recording_joints_recording_id ON recording_joints(recording_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recording_samples_recording_id ON recording_samples(recording_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
