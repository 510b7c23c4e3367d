// Package id provides identifier types and generation for windows and IPC
// connections.
//
// Window identifiers follow the desktop shell's labelling scheme:
//   - "main" is the primary workspace window
//   - "tab_<tabId>" is a window detached for a single tab
//
// Connection and process identifiers are prefixed ULIDs, which keep log lines
// sortable by creation time.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// WindowID identifies a top-level OS window.
type WindowID string

// ConnID identifies one IPC connection from a window process.
type ConnID string

// ProcessID identifies one launched window process.
type ProcessID string

// MainWindow is the label of the primary workspace window.
const MainWindow WindowID = "main"

const (
	ConnPrefix    = "conn"
	ProcessPrefix = "proc"

	// DetachedPrefix prefixes the window label of a detached tab.
	DetachedPrefix = "tab_"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewConnID generates a new connection ID
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

// NewProcessID generates a new process ID
func NewProcessID() ProcessID {
	return ProcessID(Default().GenerateWithPrefix(ProcessPrefix))
}

// DetachedWindow returns the window label used for a tab detached into its
// own window.
func DetachedWindow(tabID string) WindowID {
	return WindowID(DetachedPrefix + tabID)
}

func (w WindowID) String() string  { return string(w) }
func (c ConnID) String() string    { return string(c) }
func (p ProcessID) String() string { return string(p) }

// IsMain reports whether w is the primary workspace window.
func (w WindowID) IsMain() bool { return w == MainWindow }

// TabID returns the tab a detached window was created for, if any.
func (w WindowID) TabID() (string, bool) {
	s := string(w)
	if !strings.HasPrefix(s, DetachedPrefix) || len(s) == len(DetachedPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, DetachedPrefix), true
}

// Valid reports whether w is a label the shell can manage: "main" or
// "tab_<tabId>" with a tab id free of path separators.
func (w WindowID) Valid() bool {
	if w.IsMain() {
		return true
	}
	tabID, ok := w.TabID()
	return ok && !strings.ContainsAny(tabID, "/\\?#")
}

// IsValid checks if a (possibly prefixed) ID carries a valid ULID
func IsValid(id string) bool {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	_, err := ulid.Parse(id)
	return err == nil
}
