// Package deeplabcut imports DeepLabCut labeled-data CSV files, in both
// the single-animal and multi-animal schemas and both index layouts (one
// path column, or the newer three-column labeled-data/video/image form).
// A project config.yaml referencing labeled-data directories is accepted
// as an entry point too. The format is import-only.
package deeplabcut

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

// Adaptor imports DeepLabCut datasets.
type Adaptor struct{}

func init() {
	format.RegisterDefault(Adaptor{}, 40)
}

func (Adaptor) Handles() format.ObjectType { return format.LabelsObject }
func (Adaptor) Name() string               { return "deeplabcut" }
func (Adaptor) DefaultExt() string         { return "csv" }
func (Adaptor) AllExts() []string          { return []string{"csv", "yaml"} }
func (Adaptor) DoesRead() bool             { return true }
func (Adaptor) DoesWrite() bool            { return false }

// CanRead matches labeled-data CSVs by their "scorer" header row, and
// project configs by their video_sets key.
func (Adaptor) CanRead(h *format.FileHandle) bool {
	switch strings.ToLower(filepath.Ext(h.Path)) {
	case ".csv":
		head := string(h.Head(64))
		return strings.HasPrefix(strings.TrimPrefix(head, "\uFEFF"), "scorer")
	case ".yaml", ".yml":
		data, err := h.Bytes()
		if err != nil {
			return false
		}
		var probe struct {
			VideoSets map[string]yaml.Node `yaml:"video_sets"`
		}
		return yaml.Unmarshal(data, &probe) == nil && len(probe.VideoSets) > 0
	}
	return false
}

func (a Adaptor) Read(h *format.FileHandle, opts *format.ReadOptions) (*labels.Labels, error) {
	if strings.ToLower(filepath.Ext(h.Path)) == ".csv" {
		return readCSV(h.Path)
	}
	return readConfig(h.Path)
}

// Write is not supported: DeepLabCut is an import-only source.
func (Adaptor) Write(path string, lb *labels.Labels, opts *format.WriteOptions) error {
	return fmt.Errorf("deeplabcut: %w", format.ErrUnsupportedOperation)
}

// readConfig resolves a project config.yaml into its labeled-data CSVs
// and merges them into one collection.
func readConfig(path string) (*labels.Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg struct {
		VideoSets map[string]yaml.Node `yaml:"video_sets"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config YAML %s: %w", path, err)
	}
	if len(cfg.VideoSets) == 0 {
		return nil, fmt.Errorf("config %s declares no video_sets", path)
	}

	root := filepath.Dir(path)
	var csvs []string
	for videoPath := range cfg.VideoSets {
		stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
		matches, err := filepath.Glob(filepath.Join(root, "labeled-data", stem, "*.csv"))
		if err != nil {
			return nil, err
		}
		csvs = append(csvs, matches...)
	}
	if len(csvs) == 0 {
		return nil, fmt.Errorf("config %s references no labeled-data CSV files", path)
	}

	merged := labels.New()
	byName := map[string]*labels.Track{}
	for _, c := range csvs {
		part, err := readCSV(c)
		if err != nil {
			return nil, err
		}
		// Animals keep one identity across a project's videos.
		for _, lf := range part.Frames {
			for _, inst := range lf.Instances {
				if inst.Track == nil {
					continue
				}
				if have, ok := byName[inst.Track.Name]; ok {
					inst.Track = have
				} else {
					byName[inst.Track.Name] = inst.Track
				}
			}
		}
		for _, lf := range part.Frames {
			merged.Append(lf)
		}
	}
	return merged, nil
}

// columnGroup is one subject's slice of the header: for each owned
// column pair, the node index it lands on.
type columnGroup struct {
	individual string
	nodeByCol  map[int]int // x-column index -> node index
}

func readCSV(path string) (*labels.Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// Spreadsheet exports routinely carry a UTF-8 BOM.
	r := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	header := map[string][]string{}
	dataStart := 0
headers:
	for ; dataStart < len(records); dataStart++ {
		switch key := records[dataStart][0]; key {
		case "scorer", "individuals", "bodyparts", "coords":
			header[key] = records[dataStart]
		default:
			break headers
		}
	}
	coords, ok := header["coords"]
	if !ok {
		return nil, fmt.Errorf("%s has no coords header row", path)
	}
	bodyparts, ok := header["bodyparts"]
	if !ok {
		return nil, fmt.Errorf("%s has no bodyparts header row", path)
	}

	// Index columns precede the first coordinate column. One column in
	// the classic layout, three (labeled-data/video/image) in the newer.
	leading := -1
	for i, c := range coords {
		if c == "x" {
			leading = i
			break
		}
	}
	if leading < 1 {
		return nil, fmt.Errorf("%s has no x coordinate columns", path)
	}

	individuals := header["individuals"]
	multiAnimal := individuals != nil

	// Node names verbatim from the header, ordered by first appearance.
	var nodes []string
	nodeIdx := map[string]int{}
	for col := leading; col < len(bodyparts); col++ {
		name := bodyparts[col]
		if name == "" {
			continue
		}
		if _, ok := nodeIdx[name]; !ok {
			nodeIdx[name] = len(nodes)
			nodes = append(nodes, name)
		}
	}
	skeleton, err := labels.NewSkeleton("", nodes, nil)
	if err != nil {
		return nil, err
	}

	// Group coordinate column pairs by subject.
	var groups []*columnGroup
	groupByName := map[string]*columnGroup{}
	for col := leading; col < len(coords); col++ {
		if coords[col] != "x" {
			continue
		}
		subject := ""
		if multiAnimal && col < len(individuals) {
			subject = individuals[col]
		}
		g, ok := groupByName[subject]
		if !ok {
			g = &columnGroup{individual: subject, nodeByCol: map[int]int{}}
			groupByName[subject] = g
			groups = append(groups, g)
		}
		g.nodeByCol[col] = nodeIdx[bodyparts[col]]
	}

	lb := labels.New()
	lb.Skeletons = append(lb.Skeletons, skeleton)

	var filenames []string
	trackByName := map[string]*labels.Track{}

	for _, row := range records[dataStart:] {
		image, frameIdx, err := rowImage(row, leading)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		filenames = append(filenames, image)

		var instances []*labels.Instance
		for _, g := range groups {
			points := make([]labels.Point, len(nodes))
			for i := range points {
				points[i] = labels.MissingPoint()
			}
			any := false
			for col, node := range g.nodeByCol {
				x, okX := parseCoord(row, col)
				y, okY := parseCoord(row, col+1)
				if okX && okY {
					points[node] = labels.Point{X: x, Y: y}
					any = true
				}
			}
			if !any {
				continue
			}
			inst := &labels.Instance{Skeleton: skeleton, Points: points}
			if multiAnimal {
				t, ok := trackByName[g.individual]
				if !ok {
					t = labels.NewTrack(g.individual, frameIdx)
					trackByName[g.individual] = t
					lb.Tracks = append(lb.Tracks, t)
				}
				inst.Track = t
			}
			instances = append(instances, inst)
		}

		// Rows with no coordinates for any subject produce no frame.
		if len(instances) == 0 {
			continue
		}
		lf, err := labels.NewLabeledFrame(nil, frameIdx, instances)
		if err != nil {
			return nil, err
		}
		lb.Frames = append(lb.Frames, lf)
	}

	video := labels.NewImageVideo(filenames)
	lb.Videos = append(lb.Videos, video)
	for _, lf := range lb.Frames {
		lf.Video = video
	}
	return lb, nil
}

// rowImage extracts the image path and frame index from a data row. The
// newer layout splits the path over the leading index columns.
func rowImage(row []string, leading int) (string, int, error) {
	if len(row) <= leading {
		return "", 0, fmt.Errorf("short data row (%d columns)", len(row))
	}
	var image string
	if leading == 1 {
		image = row[0]
	} else {
		parts := make([]string, 0, leading)
		for _, c := range row[:leading] {
			if c != "" {
				parts = append(parts, c)
			}
		}
		image = strings.Join(parts, "/")
	}

	stem := strings.TrimSuffix(filepath.Base(image), filepath.Ext(image))
	digits := strings.TrimLeftFunc(stem, func(r rune) bool { return r < '0' || r > '9' })
	idx, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, fmt.Errorf("cannot infer frame index from %q", image)
	}
	return image, idx, nil
}

func parseCoord(row []string, col int) (float64, bool) {
	if col >= len(row) || row[col] == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(row[col], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
