package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/ayusman/handmocap/internal/motion"
	"github.com/ayusman/handmocap/internal/skeleton"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Recording is the metadata of a stored take.
type Recording struct {
	ID            string
	Name          string
	Root          string
	FrameRate     float64
	ChannelMode   skeleton.ChannelMode
	RotationOrder string
	Samples       int
	CreatedAt     time.Time
}

// RecordingRepository provides CRUD operations for recordings.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Create stores d under name in a single transaction and returns the new
// recording's metadata.
func (r *RecordingRepository) Create(name string, d *motion.Data) (*Recording, error) {
	if d == nil || d.Skeleton == nil {
		return nil, errors.New("recording has no skeleton")
	}

	rec := &Recording{
		ID:            uuid.New().String(),
		Name:          name,
		Root:          d.Root,
		FrameRate:     d.FrameRate,
		ChannelMode:   d.Skeleton.Mode,
		RotationOrder: d.Skeleton.RotationOrder.String(),
		Samples:       d.Len(),
		CreatedAt:     time.Now(),
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO recordings (id, name, root, frame_rate, channel_mode, rotation_order, samples, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Root, rec.FrameRate, string(rec.ChannelMode), rec.RotationOrder, rec.Samples, rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	jointStmt, err := tx.Prepare(
		`INSERT INTO recording_joints (recording_id, position, name, parent, offset_x, offset_y, offset_z, channels)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer jointStmt.Close()

	for i, j := range d.Skeleton.Joints() {
		channels := make([]string, len(j.Channels))
		for k, c := range j.Channels {
			channels[k] = string(c)
		}
		_, err := jointStmt.Exec(rec.ID, i, j.Name, j.Parent,
			j.Offset.X, j.Offset.Y, j.Offset.Z, strings.Join(channels, " "))
		if err != nil {
			return nil, err
		}
	}

	sampleStmt, err := tx.Prepare(
		`INSERT INTO recording_samples (recording_id, sequence, elapsed_us, channel_values) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer sampleStmt.Close()

	for i, row := range d.Values {
		values, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode sample %d: %w", i, err)
		}
		if _, err := sampleStmt.Exec(rec.ID, i, d.Index[i].Microseconds(), string(values)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByID retrieves a recording's metadata by its ID.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	rec := &Recording{}
	var mode string

	err := r.db.QueryRow(
		`SELECT id, name, root, frame_rate, channel_mode, rotation_order, samples, created_at
		 FROM recordings WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.Name, &rec.Root, &rec.FrameRate, &mode, &rec.RotationOrder, &rec.Samples, &rec.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec.ChannelMode = skeleton.ChannelMode(mode)
	return rec, nil
}

// List retrieves all recordings, newest first.
func (r *RecordingRepository) List() ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, name, root, frame_rate, channel_mode, rotation_order, samples, created_at
		 FROM recordings ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec := &Recording{}
		var mode string

		err := rows.Scan(&rec.ID, &rec.Name, &rec.Root, &rec.FrameRate, &mode, &rec.RotationOrder, &rec.Samples, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}

		rec.ChannelMode = skeleton.ChannelMode(mode)
		recordings = append(recordings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// Load rebuilds the full motion data of a recording: its skeleton with rest
// offsets and the channel table.
func (r *RecordingRepository) Load(id string) (*motion.Data, error) {
	rec, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	order, err := skeleton.ParseRotationOrder(rec.RotationOrder)
	if err != nil {
		return nil, err
	}

	specs, offsets, err := r.joints(id)
	if err != nil {
		return nil, err
	}

	skel, err := skeleton.New(skeleton.Config{
		Mode:          rec.ChannelMode,
		RotationOrder: order,
		FrameRate:     rec.FrameRate,
		Joints:        specs,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild skeleton of %s: %w", id, err)
	}
	for i, spec := range specs {
		if err := skel.SetOffset(spec.Name, offsets[i]); err != nil {
			return nil, err
		}
	}

	d := motion.New(skel)
	rows, err := r.db.Query(
		`SELECT elapsed_us, channel_values FROM recording_samples
		 WHERE recording_id = ? ORDER BY sequence`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var elapsedUs int64
		var raw string
		if err := rows.Scan(&elapsedUs, &raw); err != nil {
			return nil, err
		}
		var values []float64
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		if err := d.Append(time.Duration(elapsedUs)*time.Microsecond, values); err != nil {
			return nil, err
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return d, nil
}

func (r *RecordingRepository) joints(id string) ([]skeleton.JointSpec, []r3.Vector, error) {
	rows, err := r.db.Query(
		`SELECT name, parent, offset_x, offset_y, offset_z FROM recording_joints
		 WHERE recording_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var specs []skeleton.JointSpec
	var offsets []r3.Vector
	for rows.Next() {
		var spec skeleton.JointSpec
		var off r3.Vector
		if err := rows.Scan(&spec.Name, &spec.Parent, &off.X, &off.Y, &off.Z); err != nil {
			return nil, nil, err
		}
		specs = append(specs, spec)
		offsets = append(offsets, off)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return specs, offsets, nil
}

// Rename changes a recording's display name.
func (r *RecordingRepository) Rename(id, name string) error {
	result, err := r.db.Exec(`UPDATE recordings SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a recording and its joints and samples.
func (r *RecordingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
