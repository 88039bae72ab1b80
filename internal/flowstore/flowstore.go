// Package flowstore persists flow definitions as JSON documents under a
// config directory, the file-based load/save surface spec.md scopes in
// (persistent configuration storage beyond this is explicitly out of
// scope). It also applies RFC 6902 JSON Patch documents to an at-rest flow
// — never to a compiled/running plan, preserving the no-hot-patch
// non-goal — and watches the directory for on-disk edits so a stale
// in-memory copy can be flagged without ever being pushed into a running
// plan.
package flowstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/fsnotify/fsnotify"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
)

// Store loads and saves flow.Definition documents under a root directory,
// one JSON file per flow id, and tracks which cached copies have gone
// stale because their file was written while the directory is watched.
// Writes made by the store's own Save are not told apart from external
// ones, so a Save while watching also marks its id stale.
type Store struct {
	dir    string
	logger node.Logger

	mu     sync.RWMutex
	cache  map[string]*flow.Definition
	stale  map[string]bool
	watch  *fsnotify.Watcher
	closed bool
}

// New creates a Store rooted at dir. The directory is created lazily on
// first Save.
func New(dir string, logger node.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*flow.Definition),
		stale:  make(map[string]bool),
	}
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads a flow definition by id, preferring a cached in-memory copy
// unless it has been marked stale by a watched on-disk edit.
func (s *Store) Load(id string) (*flow.Definition, error) {
	s.mu.RLock()
	if def, ok := s.cache[id]; ok && !s.stale[id] {
		s.mu.RUnlock()
		return def, nil
	}
	s.mu.RUnlock()

	buf, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		return nil, fmt.Errorf("read flow %s: %w", id, err)
	}

	var def flow.Definition
	if err := json.Unmarshal(buf, &def); err != nil {
		return nil, fmt.Errorf("parse flow %s: %w", id, err)
	}

	s.mu.Lock()
	s.cache[id] = &def
	s.stale[id] = false
	s.mu.Unlock()

	return &def, nil
}

// Save writes def to disk and refreshes the in-memory cache.
func (s *Store) Save(def *flow.Definition) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	buf, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal flow %s: %w", def.ID, err)
	}

	if err := os.WriteFile(s.pathFor(def.ID), buf, 0o644); err != nil {
		return fmt.Errorf("write flow %s: %w", def.ID, err)
	}

	s.mu.Lock()
	cp := *def
	s.cache[def.ID] = &cp
	s.stale[def.ID] = false
	s.mu.Unlock()

	return nil
}

// List returns every flow id with a persisted document.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// ApplyPatch loads the flow, validates then applies an RFC 6902 JSON Patch
// document against its serialized form, and persists the result. The
// patch is applied to the document at rest; any already-compiled plan for
// this flow is unaffected until a caller explicitly recompiles, which is
// the only path by which the edit takes effect.
func (s *Store) ApplyPatch(id string, patchDoc []byte) (*flow.Definition, error) {
	if err := ValidatePatch(patchDoc); err != nil {
		return nil, fmt.Errorf("validate patch: %w", err)
	}

	current, err := s.Load(id)
	if err != nil {
		return nil, err
	}

	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("marshal current flow: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	patchedJSON, err := patch.Apply(currentJSON)
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}

	var patched flow.Definition
	if err := json.Unmarshal(patchedJSON, &patched); err != nil {
		return nil, fmt.Errorf("parse patched flow: %w", err)
	}
	if err := validateDefinition(&patched); err != nil {
		return nil, fmt.Errorf("patched flow invalid: %w", err)
	}

	if err := s.Save(&patched); err != nil {
		return nil, err
	}
	return &patched, nil
}

// ValidatePatch checks a raw JSON Patch document's shape before it is
// decoded and applied: every operation must carry a known op and a path,
// add/replace must carry a value, and a node value being added must carry
// an id and type.
func ValidatePatch(raw []byte) error {
	var ops []map[string]interface{}
	if err := json.Unmarshal(raw, &ops); err != nil {
		return fmt.Errorf("patch document must be a JSON array of operations: %w", err)
	}

	for i, op := range ops {
		opType, ok := op["op"].(string)
		if !ok {
			return fmt.Errorf("operation %d: missing or invalid 'op' field", i)
		}
		if _, ok := op["path"].(string); !ok {
			return fmt.Errorf("operation %d: missing or invalid 'path' field", i)
		}

		switch opType {
		case "add", "replace":
			if _, ok := op["value"]; !ok {
				return fmt.Errorf("operation %d: 'value' required for %s", i, opType)
			}
			if path, _ := op["path"].(string); path == "/nodes/-" {
				if err := validateNodeValue(op["value"], i); err != nil {
					return err
				}
			}
		case "remove", "move", "copy", "test":
			// no further structural requirement
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, opType)
		}
	}
	return nil
}

func validateNodeValue(value interface{}, index int) error {
	m, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("operation %d: node value must be an object", index)
	}
	if _, ok := m["id"].(string); !ok {
		return fmt.Errorf("operation %d: node must have an 'id' string", index)
	}
	if _, ok := m["type"].(string); !ok {
		return fmt.Errorf("operation %d: node must have a 'type' string", index)
	}
	return nil
}

func validateDefinition(def *flow.Definition) error {
	seen := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id: %s", n.ID)
		}
		seen[n.ID] = true
	}
	for _, w := range def.Wires {
		if !seen[w.SourceNodeID] {
			return fmt.Errorf("wire %s references missing source node %s", w.ID, w.SourceNodeID)
		}
		if !seen[w.TargetNodeID] {
			return fmt.Errorf("wire %s references missing target node %s", w.ID, w.TargetNodeID)
		}
	}
	return nil
}

// Watch starts watching the config directory for on-disk edits; any
// create/write event marks the corresponding flow id stale in the cache so
// the next Load re-reads from disk. It never triggers recompilation
// itself.
func (s *Store) Watch() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}

	s.mu.Lock()
	s.watch = w
	s.mu.Unlock()

	go s.watchLoop(w)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			if !strings.HasSuffix(base, ".json") {
				continue
			}
			id := strings.TrimSuffix(base, ".json")

			s.mu.Lock()
			s.stale[id] = true
			s.mu.Unlock()

			if s.logger != nil {
				s.logger.Info("flow definition changed on disk, marked stale", "flow_id", id)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.Warn("flow store watch error", "error", err)
			}
		}
	}
}

// Close stops the directory watch, if running.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.watch == nil {
		return nil
	}
	s.closed = true
	return s.watch.Close()
}

// Stale reports whether a watched create/write event for id's file has
// arrived since its cached copy was last loaded or saved through this
// store; events caused by this store's own Save count as well.
func (s *Store) Stale(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale[id]
}
