package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iatidata/sector-harvester/internal/model"
)

// ErrActivityNotFound is returned when no stored copy exists for an identifier.
var ErrActivityNotFound = errors.New("activity not found")

const activityFileExt = ".json"

// filenameReplacer maps characters that are unsafe in filenames on common platforms to "_".
var filenameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename derives the stored filename for an activity identifier.
// The identifier inside the file stays authoritative; the filename is lossy.
func SanitizeFilename(identifier string) string {
	return filenameReplacer.Replace(strings.TrimSpace(identifier)) + activityFileExt
}

// ActivityFileRepository stores one indented JSON file per activity.
type ActivityFileRepository struct {
	dir string
}

// NewActivityFileRepository ensures dir exists and returns a repository rooted there.
func NewActivityFileRepository(dir string) (*ActivityFileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &ActivityFileRepository{dir: dir}, nil
}

// Dir returns the output directory.
func (r *ActivityFileRepository) Dir() string {
	return r.dir
}

// Path returns the file path used for identifier.
func (r *ActivityFileRepository) Path(identifier string) string {
	return filepath.Join(r.dir, SanitizeFilename(identifier))
}

// Save writes the activity to its file, replacing any previous copy.
// The write goes through a temp file and a rename so readers never see a partial file.
func (r *ActivityFileRepository) Save(_ context.Context, _ string, identifier string, a *model.Activity) error {
	data, err := a.Indented()
	if err != nil {
		return err
	}

	path := r.Path(identifier)
	tmp, err := os.CreateTemp(r.dir, ".activity-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Clean removes every stored activity file and returns how many were deleted.
// Items that vanish upstream must vanish from local copies too, so callers
// run this before a full harvest.
func (r *ActivityFileRepository) Clean(_ context.Context) (int, error) {
	names, err := r.names()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// List returns stored keys (filenames without extension) sorted ascending,
// plus the total count.
func (r *ActivityFileRepository) List(_ context.Context, limit, offset int) ([]string, int, error) {
	names, err := r.names()
	if err != nil {
		return nil, 0, err
	}
	sort.Strings(names)

	total := len(names)
	if offset >= total {
		return []string{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	keys := make([]string, 0, end-offset)
	for _, name := range names[offset:end] {
		keys = append(keys, strings.TrimSuffix(name, activityFileExt))
	}
	return keys, total, nil
}

// Get reads the stored copy of an identifier. Already-sanitized keys resolve to the same file;
// the returned identifier is the one recorded inside the stored activity.
func (r *ActivityFileRepository) Get(_ context.Context, identifier string) (*model.StoredActivity, error) {
	path := r.Path(identifier)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &model.StoredActivity{
		IATIIdentifier: storedIdentifier(data, identifier),
		Activity:       data,
		UpdatedAt:      info.ModTime().UTC(),
	}, nil
}

// storedIdentifier reads iati-identifier from a stored activity. The filename
// is lossy, so the requested key is only used when the file carries none.
func storedIdentifier(data []byte, requested string) string {
	var doc struct {
		IATIIdentifier string `json:"iati-identifier"`
	}
	if err := json.Unmarshal(data, &doc); err == nil {
		if id := strings.TrimSpace(doc.IATIIdentifier); id != "" {
			return id
		}
	}
	return strings.TrimSpace(requested)
}

// names lists stored activity files. In-flight temp files end in .tmp and are
// never listed; dot-prefixed activity files are, since Save can produce them.
func (r *ActivityFileRepository) names() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != activityFileExt {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
