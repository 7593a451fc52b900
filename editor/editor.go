// Package editor is a headless model of the editor pane: one session per open
// file, the current file, and the annotations shown against it.
package editor

import (
	"errors"
	"sync"

	"github.com/remixgo/remix-shell/event"
)

var (
	ErrNoSession = errors.New("no session for file")
	ErrReadOnly  = errors.New("session is read-only")
)

type Annotation struct {
	Row    int
	Column int
	Text   string
	Type   string // error, warning
}

type session struct {
	content  string
	readOnly bool
}

type Editor struct {
	mu          sync.Mutex
	sessions    map[string]*session
	current     string
	annotations []Annotation

	// ContentChanged fires with the file name after SetContent.
	ContentChanged event.Feed[string]
	// SessionSwitched fires with the file name after Open.
	SessionSwitched event.Feed[string]
}

func New() *Editor {
	return &Editor{sessions: make(map[string]*session)}
}

func (e *Editor) Open(file, content string) {
	e.open(file, content, false)
}

func (e *Editor) OpenReadOnly(file, content string) {
	e.open(file, content, true)
}

func (e *Editor) open(file, content string, readOnly bool) {
	e.mu.Lock()
	e.sessions[file] = &session{content: content, readOnly: readOnly}
	e.current = file
	e.mu.Unlock()
	e.SessionSwitched.Publish(file)
}

// Current returns the file shown in the editor, or "".
func (e *Editor) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Editor) Get(file string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[file]
	if !ok {
		return "", false
	}
	return s.content, true
}

func (e *Editor) IsReadOnly(file string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[file]
	return ok && s.readOnly
}

// SetContent replaces the buffer of an open, writable session.
func (e *Editor) SetContent(file, content string) error {
	e.mu.Lock()
	s, ok := e.sessions[file]
	switch {
	case !ok:
		e.mu.Unlock()
		return ErrNoSession
	case s.readOnly:
		e.mu.Unlock()
		return ErrReadOnly
	}
	s.content = content
	e.mu.Unlock()
	e.ContentChanged.Publish(file)
	return nil
}

func (e *Editor) Close(file string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, file)
	if e.current == file {
		e.current = ""
	}
}

func (e *Editor) AddAnnotation(a Annotation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.annotations = append(e.annotations, a)
}

func (e *Editor) ClearAnnotations() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.annotations = nil
}

func (e *Editor) Annotations() []Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Annotation(nil), e.annotations...)
}
