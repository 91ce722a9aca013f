package arxiv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	artifactExt = ".md"
	sourceExt   = ".pdf"
)

// Store keeps converted papers on disk, one markdown file per paper:
//
//	{root}/{id}.md    converted artifact
//	{root}/{id}.pdf   downloaded source (transient unless kept)
//
// Old-style ids ("hep-th/9901001") are stored with "/" mapped to "_".
//
// Writes land in a temp file in root and are renamed into place, so a
// reader never observes a partial artifact and concurrent writers of
// the same id cannot interleave.
type Store struct {
	fs      afero.Fs
	root    string
	content *LRU[string, cachedArtifact]
}

// cachedArtifact is valid only while the file still has the same
// modification time and size.
type cachedArtifact struct {
	mod  time.Time
	size int64
	text string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFs swaps the filesystem (tests use afero.NewMemMapFs).
func WithFs(fsys afero.Fs) StoreOption {
	return func(s *Store) { s.fs = fsys }
}

// WithContentCache sets how many artifacts are kept in memory for Read.
func WithContentCache(n int) StoreOption {
	return func(s *Store) { s.content = NewLRU[string, cachedArtifact](n) }
}

// OpenStore opens or creates a store rooted at root.
func OpenStore(root string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		fs:      afero.NewOsFs(),
		root:    filepath.Clean(root),
		content: NewLRU[string, cachedArtifact](64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return s, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns where the artifact for id lives (whether or not it exists).
func (s *Store) Path(id string) string {
	return s.path(id, artifactExt)
}

func (s *Store) path(id, ext string) string {
	return filepath.Join(s.root, fileName(id)+ext)
}

// Exists reports whether a converted artifact for id is present.
func (s *Store) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	info, err := s.fs.Stat(s.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Stat returns file info for the artifact of id.
func (s *Store) Stat(id string) (os.FileInfo, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(s.Path(id))
	if err != nil {
		return nil, s.classify(id, err)
	}
	return info, nil
}

// Read returns the artifact content for id. Artifacts removed or
// replaced behind the store's back are noticed on the next Read.
func (s *Store) Read(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	info, err := s.fs.Stat(s.Path(id))
	if err != nil {
		s.content.Delete(id)
		return "", s.classify(id, err)
	}
	if c, ok := s.content.Get(id); ok && c.mod.Equal(info.ModTime()) && c.size == info.Size() {
		return c.text, nil
	}
	data, err := afero.ReadFile(s.fs, s.Path(id))
	if err != nil {
		s.content.Delete(id)
		return "", s.classify(id, err)
	}
	text := string(data)
	s.content.Put(id, cachedArtifact{mod: info.ModTime(), size: info.Size(), text: text})
	return text, nil
}

// Write persists the artifact for id.
func (s *Store) Write(id, content string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	defer s.content.Delete(id)
	return s.writeAtomic(id, artifactExt, []byte(content))
}

// WriteSource persists the downloaded PDF for id.
func (s *Store) WriteSource(id string, data []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return s.writeAtomic(id, sourceExt, data)
}

// RemoveSource deletes the downloaded PDF for id, if any.
func (s *Store) RemoveSource(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := s.fs.Remove(s.path(id, sourceExt))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newError(ErrStorage, id, err)
	}
	return nil
}

// List returns the ids of all stored artifacts, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, newError(ErrStorage, "", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, artifactExt) || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, idFromFile(strings.TrimSuffix(name, artifactExt)))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) writeAtomic(id, ext string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, s.root, "."+fileName(id)+"-*.tmp")
	if err != nil {
		return newError(ErrStorage, id, err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.fs.Remove(tmpPath)
		return newError(ErrStorage, id, err)
	}

	if err := s.fs.Rename(tmpPath, s.path(id, ext)); err != nil {
		s.fs.Remove(tmpPath)
		return newError(ErrStorage, id, err)
	}
	return nil
}

func (s *Store) classify(id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return newError(ErrNotFound, id, err)
	}
	return newError(ErrStorage, id, err)
}

func fileName(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

func idFromFile(name string) string {
	return strings.ReplaceAll(name, "_", "/")
}
