package spec

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/agentkit/pkg/logger"
)

// Session steps, in workflow order.
var Steps = []string{"planning", "implementing", "testing", "reviewing", "completing"}

// ErrNoSession is returned by operations that need an active session.
var ErrNoSession = errors.New("No active session")

const sessionHeader = "# Session state - auto-managed by agentkit\n"

// Session tracks the task currently being worked on.
type Session struct {
	Task       string `yaml:"task" json:"task"`
	Step       string `yaml:"step" json:"step"`
	Started    string `yaml:"started" json:"started"`
	BaseCommit string `yaml:"base_commit,omitempty" json:"base_commit,omitempty"`
	ID         string `yaml:"id,omitempty" json:"id,omitempty"`
}

// Handoff summarises the session state for the next person or agent.
type Handoff struct {
	Task       string   `json:"task"`
	Step       string   `json:"step"`
	BaseCommit string   `json:"base_commit"`
	DiffStat   string   `json:"diff_stat"`
	Ready      []string `json:"ready"`
}

func validStep(step string) bool {
	for _, s := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

// Session returns the active session, or nil when there is none.
func (s *Store) Session() (*Session, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return s.loadSession()
}

func (s *Store) loadSession() (*Session, error) {
	path := s.path(SessionFile)
	if !fileExists(path) {
		return nil, nil
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrap(err, "failed to parse session state")
	}
	if sess.Task == "" && sess.Step == "" {
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) saveSession(sess *Session) error {
	out, err := yaml.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "failed to encode session state")
	}

	var buf bytes.Buffer
	buf.WriteString(sessionHeader)
	buf.Write(out)

	if err := lockedfile.Write(s.path(SessionFile), &buf, 0o644); err != nil {
		return errors.Wrap(err, "failed to write session state")
	}
	return nil
}

func (s *Store) removeSession() error {
	err := os.Remove(s.path(SessionFile))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to clear session state")
	}
	return nil
}

// startSession records a new session for task at the current HEAD.
func (s *Store) startSession(ctx context.Context, task string) (*Session, error) {
	sess := &Session{
		Task:    task,
		Step:    Steps[0],
		Started: s.isoNow(),
		ID:      uuid.New().String(),
	}
	if head, err := s.git().ShortHead(ctx); err == nil {
		sess.BaseCommit = head
	} else {
		logger.G(ctx).WithError(err).Debug("no base commit for session")
	}

	if err := s.saveSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ClearSession removes the session and returns what was cleared, or nil.
func (s *Store) ClearSession() (*Session, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession()
	if err != nil || sess == nil {
		return nil, err
	}
	return sess, s.removeSession()
}

// SetStep moves the active session to step.
func (s *Store) SetStep(step string) error {
	if err := s.ensure(); err != nil {
		return err
	}
	if !validStep(step) {
		return errors.Errorf("Invalid step: %s. Valid: %s", step, strings.Join(Steps, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession()
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoSession
	}
	sess.Step = step
	return s.saveSession(sess)
}

// Handoff collects the active task, the diff since the session's base
// commit and the next ready tasks.
func (s *Store) Handoff(ctx context.Context) (*Handoff, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}

	h := &Handoff{Ready: []string{}}
	sess, err := s.loadSession()
	if err != nil {
		return nil, err
	}
	if sess != nil {
		h.Task = sess.Task
		h.Step = sess.Step
		h.BaseCommit = sess.BaseCommit
	}

	if h.BaseCommit != "" {
		stat, err := s.git().DiffStat(ctx, h.BaseCommit)
		if err != nil {
			logger.G(ctx).WithError(err).Debug("failed to compute diff stat")
		} else {
			h.DiffStat = strings.TrimSpace(stat)
		}
	}

	ready, err := s.Ready("")
	if err != nil {
		return nil, err
	}
	for i, t := range ready {
		if i == 5 {
			break
		}
		h.Ready = append(h.Ready, t.ID)
	}

	return h, nil
}
