// Package plp implements the native project container: an SQLite file
// holding the full labels graph. It is the only format that round-trips
// every model field, including per-instance tracking scores, and exposes
// a header-only fast path for inspection.
package plp

import (
	"database/sql"
	"encoding/json"
	_ "embed"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

//go:embed schema.sql
var schema string

// FormatID is the container's self-declared format id, stored in the
// metadata table.
const FormatID = "poselab.labels"

// Version of the schema written by this adaptor.
const Version = 1

// Adaptor reads and writes the native .plp container.
type Adaptor struct{}

func init() {
	format.RegisterDefault(Adaptor{}, 10)
}

func (Adaptor) Handles() format.ObjectType { return format.LabelsObject }
func (Adaptor) Name() string               { return "plp" }
func (Adaptor) DefaultExt() string         { return "plp" }
func (Adaptor) AllExts() []string          { return []string{"plp", "plp.db"} }
func (Adaptor) DoesRead() bool             { return true }
func (Adaptor) DoesWrite() bool            { return true }

// CanRead matches SQLite files declaring our format id.
func (Adaptor) CanRead(h *format.FileHandle) bool {
	return h.IsSQLite() && h.FormatID() == FormatID
}

// Read materializes the full labels graph, or only the header tables
// when opts.HeadersOnly is set.
func (a Adaptor) Read(h *format.FileHandle, opts *format.ReadOptions) (*labels.Labels, error) {
	db, err := h.DB()
	if err != nil {
		return nil, fmt.Errorf("open container %s: %w", h.Path, err)
	}
	lb, videos, skeletons, tracks, err := readHeaders(db)
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.HeadersOnly {
		return lb, nil
	}
	if err := readFrames(db, lb, videos, skeletons, tracks); err != nil {
		return nil, err
	}
	return lb, nil
}

// ReadHeaders is the version 1 fast path: videos, skeletons and tracks
// without any frame data.
func ReadHeaders(h *format.FileHandle) (*labels.Labels, error) {
	return Adaptor{}.Read(h, &format.ReadOptions{HeadersOnly: true})
}

// Write serializes lb into a fresh container at path.
func (a Adaptor) Write(path string, lb *labels.Labels, opts *format.WriteOptions) error {
	if err := lb.Validate(); err != nil {
		return &format.InvalidModelError{Reason: err.Error()}
	}
	// Replace, never append: the container is a complete snapshot.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("create container %s: %w", path, err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	if err := writeAll(tx, lb); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func writeAll(tx *sql.Tx, lb *labels.Labels) error {
	for _, kv := range [][2]string{
		{"format", FormatID},
		{"version", fmt.Sprint(Version)},
	} {
		if _, err := tx.Exec(`INSERT INTO metadata (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}

	videoIDs := make(map[*labels.Video]int64, len(lb.Videos))
	for _, v := range lb.Videos {
		names := v.Backend.Filenames
		if v.Backend.Kind == labels.BackendMedia {
			names = []string{v.Backend.Filename}
		}
		enc, err := json.Marshal(names)
		if err != nil {
			return err
		}
		res, err := tx.Exec(`INSERT INTO videos (uid, kind, filenames) VALUES (?, ?, ?)`,
			v.ID.String(), string(v.Backend.Kind), string(enc))
		if err != nil {
			return fmt.Errorf("write video: %w", err)
		}
		videoIDs[v], _ = res.LastInsertId()
	}

	skeletonIDs := make(map[*labels.Skeleton]int64, len(lb.Skeletons))
	for _, s := range lb.Skeletons {
		res, err := tx.Exec(`INSERT INTO skeletons (name) VALUES (?)`, s.Name)
		if err != nil {
			return fmt.Errorf("write skeleton: %w", err)
		}
		id, _ := res.LastInsertId()
		skeletonIDs[s] = id
		for i, n := range s.Nodes {
			if _, err := tx.Exec(`INSERT INTO skeleton_nodes (skeleton_id, idx, name) VALUES (?, ?, ?)`, id, i, n); err != nil {
				return fmt.Errorf("write skeleton node: %w", err)
			}
		}
		for _, e := range s.Edges {
			if _, err := tx.Exec(`INSERT INTO skeleton_edges (skeleton_id, src, dst) VALUES (?, ?, ?)`, id, e.Src, e.Dst); err != nil {
				return fmt.Errorf("write skeleton edge: %w", err)
			}
		}
	}

	trackIDs := make(map[*labels.Track]int64, len(lb.Tracks))
	for _, t := range lb.Tracks {
		res, err := tx.Exec(`INSERT INTO tracks (name, spawned_on) VALUES (?, ?)`, t.Name, t.SpawnedOn)
		if err != nil {
			return fmt.Errorf("write track: %w", err)
		}
		trackIDs[t], _ = res.LastInsertId()
	}

	for _, lf := range lb.Frames {
		res, err := tx.Exec(`INSERT INTO frames (video_id, frame_idx) VALUES (?, ?)`,
			videoIDs[lf.Video], lf.FrameIdx)
		if err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		frameID, _ := res.LastInsertId()
		for _, inst := range lf.Instances {
			var trackID any
			if inst.Track != nil {
				trackID = trackIDs[inst.Track]
			}
			res, err := tx.Exec(
				`INSERT INTO instances (frame_id, skeleton_id, track_id, predicted, score, tracking_score)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				frameID, skeletonIDs[inst.Skeleton], trackID, inst.Predicted, inst.Score, inst.TrackingScore)
			if err != nil {
				return fmt.Errorf("write instance: %w", err)
			}
			instID, _ := res.LastInsertId()
			for i, p := range inst.Points {
				var score any
				if i < len(inst.PointScores) {
					score = inst.PointScores[i]
				}
				// SQLite has no NaN; missing coordinates store as NULL.
				if _, err := tx.Exec(
					`INSERT INTO points (instance_id, node_idx, x, y, score) VALUES (?, ?, ?, ?, ?)`,
					instID, i, nullable(p.X), nullable(p.Y), score); err != nil {
					return fmt.Errorf("write point: %w", err)
				}
			}
		}
	}
	return nil
}

func nullable(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func readHeaders(db *sql.DB) (*labels.Labels, map[int64]*labels.Video, map[int64]*labels.Skeleton, map[int64]*labels.Track, error) {
	lb := labels.New()

	videos := make(map[int64]*labels.Video)
	rows, err := db.Query(`SELECT id, uid, kind, filenames FROM videos ORDER BY id`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("read videos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id        int64
			uid, kind string
			enc       string
		)
		if err := rows.Scan(&id, &uid, &kind, &enc); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan video: %w", err)
		}
		var names []string
		if err := json.Unmarshal([]byte(enc), &names); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("decode video filenames: %w", err)
		}
		v := &labels.Video{Backend: labels.Backend{Kind: labels.BackendKind(kind), Filenames: names}}
		if kind == string(labels.BackendMedia) && len(names) > 0 {
			v.Backend = labels.Backend{Kind: labels.BackendMedia, Filename: names[0]}
		}
		if parsed, err := uuid.Parse(uid); err == nil {
			v.ID = parsed
		} else {
			v.ID = uuid.New()
		}
		videos[id] = v
		lb.Videos = append(lb.Videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, nil, err
	}

	skeletons := make(map[int64]*labels.Skeleton)
	srows, err := db.Query(`SELECT id, name FROM skeletons ORDER BY id`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("read skeletons: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var (
			id   int64
			name string
		)
		if err := srows.Scan(&id, &name); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan skeleton: %w", err)
		}
		s := &labels.Skeleton{Name: name}
		skeletons[id] = s
		lb.Skeletons = append(lb.Skeletons, s)
	}
	if err := srows.Err(); err != nil {
		return nil, nil, nil, nil, err
	}
	for id, s := range skeletons {
		nrows, err := db.Query(`SELECT name FROM skeleton_nodes WHERE skeleton_id = ? ORDER BY idx`, id)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("read skeleton nodes: %w", err)
		}
		for nrows.Next() {
			var n string
			if err := nrows.Scan(&n); err != nil {
				nrows.Close()
				return nil, nil, nil, nil, err
			}
			s.Nodes = append(s.Nodes, n)
		}
		nrows.Close()
		erows, err := db.Query(`SELECT src, dst FROM skeleton_edges WHERE skeleton_id = ? ORDER BY rowid`, id)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("read skeleton edges: %w", err)
		}
		for erows.Next() {
			var e labels.Edge
			if err := erows.Scan(&e.Src, &e.Dst); err != nil {
				erows.Close()
				return nil, nil, nil, nil, err
			}
			s.Edges = append(s.Edges, e)
		}
		erows.Close()
	}

	tracks := make(map[int64]*labels.Track)
	trows, err := db.Query(`SELECT id, name, spawned_on FROM tracks ORDER BY id`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("read tracks: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		var (
			id int64
			t  labels.Track
		)
		if err := trows.Scan(&id, &t.Name, &t.SpawnedOn); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan track: %w", err)
		}
		track := t
		tracks[id] = &track
		lb.Tracks = append(lb.Tracks, &track)
	}
	return lb, videos, skeletons, tracks, trows.Err()
}

func readFrames(db *sql.DB, lb *labels.Labels, videos map[int64]*labels.Video, skeletons map[int64]*labels.Skeleton, tracks map[int64]*labels.Track) error {
	rows, err := db.Query(`SELECT id, video_id, frame_idx FROM frames ORDER BY id`)
	if err != nil {
		return fmt.Errorf("read frames: %w", err)
	}
	defer rows.Close()

	frames := make(map[int64]*labels.LabeledFrame)
	for rows.Next() {
		var id, videoID int64
		var frameIdx int
		if err := rows.Scan(&id, &videoID, &frameIdx); err != nil {
			return fmt.Errorf("scan frame: %w", err)
		}
		lf := &labels.LabeledFrame{Video: videos[videoID], FrameIdx: frameIdx}
		frames[id] = lf
		lb.Frames = append(lb.Frames, lf)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	irows, err := db.Query(
		`SELECT id, frame_id, skeleton_id, track_id, predicted, score, tracking_score FROM instances ORDER BY id`)
	if err != nil {
		return fmt.Errorf("read instances: %w", err)
	}
	defer irows.Close()

	instances := make(map[int64]*labels.Instance)
	for irows.Next() {
		var (
			id, frameID, skeletonID int64
			trackID                 sql.NullInt64
			inst                    labels.Instance
		)
		if err := irows.Scan(&id, &frameID, &skeletonID, &trackID, &inst.Predicted, &inst.Score, &inst.TrackingScore); err != nil {
			return fmt.Errorf("scan instance: %w", err)
		}
		inst.Skeleton = skeletons[skeletonID]
		if trackID.Valid {
			inst.Track = tracks[trackID.Int64]
		}
		in := inst
		instances[id] = &in
		lf := frames[frameID]
		lf.Instances = append(lf.Instances, &in)
	}
	if err := irows.Err(); err != nil {
		return err
	}

	prows, err := db.Query(`SELECT instance_id, node_idx, x, y, score FROM points ORDER BY instance_id, node_idx`)
	if err != nil {
		return fmt.Errorf("read points: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var (
			instID  int64
			nodeIdx int
			x, y, s sql.NullFloat64
		)
		if err := prows.Scan(&instID, &nodeIdx, &x, &y, &s); err != nil {
			return fmt.Errorf("scan point: %w", err)
		}
		inst := instances[instID]
		if inst == nil {
			continue
		}
		for len(inst.Points) <= nodeIdx {
			inst.Points = append(inst.Points, labels.MissingPoint())
		}
		if x.Valid && y.Valid {
			inst.Points[nodeIdx] = labels.Point{X: x.Float64, Y: y.Float64}
		}
		if s.Valid {
			for len(inst.PointScores) <= nodeIdx {
				inst.PointScores = append(inst.PointScores, 0)
			}
			inst.PointScores[nodeIdx] = s.Float64
		}
	}
	return prows.Err()
}
