package format

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/bson"
)

var sqliteMagic = []byte("SQLite format 3\x00")

// FileHandle wraps a path plus lazy structural probes that adaptors use
// to decide whether they can read the file. Probes cache their result,
// never error out, and never consume state another adaptor needs.
type FileHandle struct {
	Path string

	head     []byte
	headEOF  bool // head holds the whole file
	data     []byte
	isJSON   *bool
	formatID *string
	db       *sql.DB
}

// Open builds a handle for path. A nonexistent path fails with
// *MissingFileError; nothing else is touched until the first probe.
func Open(path string) (*FileHandle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &MissingFileError{Path: path}
	}
	return &FileHandle{Path: path}, nil
}

// Close releases any resource a probe opened.
func (h *FileHandle) Close() error {
	if h.db != nil {
		err := h.db.Close()
		h.db = nil
		return err
	}
	return nil
}

// Head returns the first n bytes of the file (fewer if the file is
// shorter), cached across probes. A request larger than any earlier one
// re-reads, so probe order never shrinks what a later probe sees.
func (h *FileHandle) Head(n int) []byte {
	if h.head == nil || (len(h.head) < n && !h.headEOF) {
		f, err := os.Open(h.Path)
		if err != nil {
			h.head = []byte{}
			h.headEOF = true
			return h.head
		}
		defer f.Close()
		buf := make([]byte, n)
		read, _ := io.ReadFull(f, buf)
		h.head = buf[:read]
		h.headEOF = read < n
	}
	if len(h.head) > n {
		return h.head[:n]
	}
	return h.head
}

// Bytes returns the whole file contents, cached.
func (h *FileHandle) Bytes() ([]byte, error) {
	if h.data == nil {
		data, err := os.ReadFile(h.Path)
		if err != nil {
			return nil, err
		}
		h.data = data
	}
	return h.data, nil
}

// IsSQLite sniffs the SQLite leading-bytes signature.
func (h *FileHandle) IsSQLite() bool {
	return bytes.HasPrefix(h.Head(len(sqliteMagic)), sqliteMagic)
}

// IsJSON reports whether the file parses as JSON.
func (h *FileHandle) IsJSON() bool {
	if h.isJSON == nil {
		ok := false
		if data, err := h.Bytes(); err == nil {
			ok = json.Valid(data)
		}
		h.isJSON = &ok
	}
	return *h.isJSON
}

// DB opens the file as an SQLite database, shared across probes and the
// adaptor that claims the handle.
func (h *FileHandle) DB() (*sql.DB, error) {
	if h.db == nil {
		db, err := sql.Open("sqlite3", h.Path)
		if err != nil {
			return nil, err
		}
		h.db = db
	}
	return h.db, nil
}

// FormatID returns the container's self-declared format id, or "" when
// the file carries none. SQLite containers declare it in their metadata
// table, BSON containers in a top-level "format" field.
func (h *FileHandle) FormatID() string {
	if h.formatID == nil {
		id := ""
		switch {
		case h.IsSQLite():
			if db, err := h.DB(); err == nil {
				// Ignore errors: a foreign SQLite file has no metadata table.
				_ = db.QueryRow(`SELECT value FROM metadata WHERE key = 'format'`).Scan(&id)
			}
		default:
			if data, err := h.Bytes(); err == nil {
				var doc struct {
					Format string `bson:"format"`
				}
				if bson.Unmarshal(data, &doc) == nil {
					id = doc.Format
				}
			}
		}
		h.formatID = &id
	}
	return *h.formatID
}
