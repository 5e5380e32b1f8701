// Package spec manages the .spec/ task tracker: requirements, epics and
// tasks stored as markdown files whose frontmatter holds all state, plus a
// short progress log and the state of the current work session.
package spec

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/jingkaihe/agentkit/pkg/frontmatter"
	"github.com/jingkaihe/agentkit/pkg/gitutil"
	"github.com/jingkaihe/agentkit/pkg/logger"
)

// Layout of the spec directory.
const (
	DefaultDir   = ".spec"
	ReqsDir      = "reqs"
	EpicsDir     = "epics"
	TasksDir     = "tasks"
	ProgressFile = "PROGRESS.md"
	SessionFile  = "SESSION.yaml"

	DefaultProgressLimit = 10
)

// ErrNotInitialized is returned by every operation except Init when the
// spec directory does not exist.
var ErrNotInitialized = errors.New(".spec/ not found. Run 'agentkit spec init' first.")

// NotFoundError is returned when an id does not resolve to a file.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.Kind == "" {
		return "Not found: " + e.ID
	}
	return e.Kind + " not found: " + e.ID
}

// Store reads and writes one spec directory.
type Store struct {
	mu            sync.Mutex
	root          string
	dir           string
	progressLimit int
	now           func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithDir overrides the spec directory name relative to the root.
func WithDir(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.dir = name
		}
	}
}

// WithProgressLimit sets how many lines PROGRESS.md keeps.
func WithProgressLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.progressLimit = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns a Store for the spec directory under root.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:          root,
		dir:           DefaultDir,
		progressLimit: DefaultProgressLimit,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RepoRoot returns the git top level containing dir, or dir itself when
// it is not inside a repository.
func RepoRoot(ctx context.Context, dir string) string {
	top, err := gitutil.New(dir).TopLevel(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("not in a git repository, using working directory")
		return dir
	}
	return top
}

// Root returns the repository root.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the absolute spec directory.
func (s *Store) Dir() string {
	return filepath.Join(s.root, s.dir)
}

// Exists reports whether the spec directory is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Dir())
	return err == nil && info.IsDir()
}

func (s *Store) ensure() error {
	if !s.Exists() {
		return ErrNotInitialized
	}
	return nil
}

func (s *Store) path(parts ...string) string {
	return filepath.Join(append([]string{s.Dir()}, parts...)...)
}

func (s *Store) git() *gitutil.Git {
	return gitutil.New(s.root)
}

// list returns the files in sub matching prefix-*.md, sorted by name.
func (s *Store) list(sub, prefix string) ([]string, error) {
	matches, err := filepath.Glob(s.path(sub, prefix+"-*.md"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", sub)
	}
	sort.Strings(matches)
	return matches, nil
}

func readDocument(path string) (*frontmatter.Document, error) {
	content, err := lockedfile.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", filepath.Base(path))
	}
	doc, err := frontmatter.Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", filepath.Base(path))
	}
	return doc, nil
}

// updateDocument rewrites the frontmatter of an existing file under the
// file lock.
func updateDocument(path string, fn func(doc *frontmatter.Document) error) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "failed to update %s", filepath.Base(path))
	}

	return lockedfile.Transform(path, func(data []byte) ([]byte, error) {
		doc, err := frontmatter.Parse(data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", filepath.Base(path))
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		return doc.Bytes()
	})
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".md")
}

func (s *Store) isoNow() string {
	return s.now().UTC().Format("2006-01-02T15:04:05Z")
}
