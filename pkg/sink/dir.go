// Package sink writes fetched records to disk, one JSON document per record
// named by its key.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Sternrassler/gqlfetch/pkg/errdefs"
	"github.com/Sternrassler/gqlfetch/pkg/pagination"
	"github.com/Sternrassler/gqlfetch/pkg/record"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const ext = ".json"

// ErrEmptyKey is returned when a record has no key to name its file.
var ErrEmptyKey = errors.New("record key is empty")

// KeyFunc returns the file name (without extension) of a record.
type KeyFunc func(rec *record.Record) string

// FieldKey names records by the string form of a field.
func FieldKey(field string) KeyFunc {
	return func(rec *record.Record) string {
		switch v := rec.Value(field).(type) {
		case nil:
			return ""
		case string:
			return v
		default:
			return fmt.Sprint(v)
		}
	}
}

// Dir is an output directory.
type Dir struct {
	path   string
	logger zerolog.Logger
}

// NewDir creates the directory if needed.
func NewDir(path string) (*Dir, error) {
	if path == "" {
		return nil, errdefs.Configuration("output directory is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %q", path)
	}
	return &Dir{
		path:   path,
		logger: log.With().Str("component", "sink").Str("dir", path).Logger(),
	}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Write stores every record as {dir}/{key}.json and returns the number of
// files written. Files are replaced atomically.
func (d *Dir) Write(recs []*record.Record, key KeyFunc) (int, error) {
	written := 0
	for i, rec := range recs {
		name := fileName(key(rec))
		if name == "" {
			return written, errors.Wrapf(ErrEmptyKey, "record %d", i)
		}
		if err := d.writeFile(name, rec); err != nil {
			return written, err
		}
		written++
	}
	d.logger.Debug().Int("records", written).Msg("Batch written")
	return written, nil
}

func (d *Dir) writeFile(name string, rec *record.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}

	tmp, err := os.CreateTemp(d.path, "."+name+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.path, name+ext)); err != nil {
		return errors.Wrapf(err, "rename %s", name)
	}
	return nil
}

// BatchFunc adapts Write to a pagination batch callback.
func (d *Dir) BatchFunc(key KeyFunc) pagination.BatchFunc {
	return func(_ context.Context, batch pagination.Batch) error {
		_, err := d.Write(batch.Items, key)
		return err
	}
}

// Existing returns the keys already written to the directory.
func (d *Dir) Existing() (map[string]bool, error) {
	names, err := jsonFiles(d.path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[strings.TrimSuffix(name, ext)] = true
	}
	return out, nil
}

// Load reads every *.json file of dir, in file name order.
func Load(dir string) ([]*record.Record, error) {
	if dir == "" {
		return nil, errdefs.Configuration("input directory is required")
	}
	names, err := jsonFiles(dir)
	if err != nil {
		return nil, err
	}

	recs := make([]*record.Record, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		rec, err := record.ParseRecord(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", name)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %q", dir)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ext {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// fileName makes key safe to use as a file name.
func fileName(key string) string {
	key = strings.TrimSpace(key)
	key = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, key)
	if key == "." || key == ".." {
		return ""
	}
	return strings.TrimLeft(key, ".")
}
