package recognition

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// searchCandidates is how many neighbors a lookup fetches; extras cover
// nodes whose person has since been removed (the graph cannot delete).
const searchCandidates = 5

// EmbeddingStore holds the reference embeddings for known people, persisted
// as a gob file and indexed with an HNSW graph for nearest-neighbor search.
//
// The training worker is the only writer; the matcher reads concurrently
// under the shared lock.
type EmbeddingStore struct {
	mu     sync.RWMutex
	path   string
	people map[string][][]float32
	graph  *hnsw.Graph[int64]
	ids    map[int64]string // graph node id -> person name
	nextID int64
}

// storeSnapshot is the on-disk representation.
type storeSnapshot struct {
	Version int
	People  map[string][][]float32
}

const storeVersion = 1

// NewEmbeddingStore creates an empty store that persists to path.
func NewEmbeddingStore(path string) *EmbeddingStore {
	return &EmbeddingStore{
		path:   path,
		people: make(map[string][][]float32),
		ids:    make(map[int64]string),
	}
}

// Load reads the persisted embeddings and rebuilds the search index.
// A missing file is not an error; the store starts empty.
func (s *EmbeddingStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading embedding store: %w", err)
	}

	var snap storeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decoding embedding store: %w", err)
	}

	s.people = snap.People
	if s.people == nil {
		s.people = make(map[string][][]float32)
	}
	s.rebuildIndexLocked()
	return nil
}

// Save persists the embeddings to disk, creating the parent directory if
// needed.
func (s *EmbeddingStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(storeSnapshot{Version: storeVersion, People: s.people}); err != nil {
		return fmt.Errorf("encoding embedding store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating embedding store directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing embedding store: %w", err)
	}
	return nil
}

// Add appends a reference embedding for the named person and indexes it.
func (s *EmbeddingStore) Add(name string, embedding []float32) {
	if name == "" || len(embedding) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.people[name] = append(s.people[name], embedding)
	s.addNodeLocked(name, embedding)
}

// Remove drops all embeddings for the named person. The HNSW graph cannot
// delete nodes, so removed people are filtered out of search results until
// the next rebuild.
func (s *EmbeddingStore) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.people, name)
	for id, n := range s.ids {
		if n == name {
			delete(s.ids, id)
		}
	}
}

// Clear drops every embedding and the index.
func (s *EmbeddingStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.people = make(map[string][][]float32)
	s.graph = nil
	s.ids = make(map[int64]string)
	s.nextID = 0
}

// Names returns the known people, sorted.
func (s *EmbeddingStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.people))
	for name := range s.people {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of stored embeddings.
func (s *EmbeddingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, embs := range s.people {
		total += len(embs)
	}
	return total
}

// Best returns the person whose reference embedding is nearest to the query
// by cosine similarity, along with that similarity. Returns ("", 0) when the
// store is empty.
func (s *EmbeddingStore) Best(query []float32) (string, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil || len(s.ids) == 0 || len(query) == 0 {
		return "", 0
	}

	neighbors := s.graph.Search(query, searchCandidates)
	bestName := ""
	bestSim := 0.0
	for _, n := range neighbors {
		name, ok := s.ids[n.Key]
		if !ok {
			continue // person removed since indexing
		}
		if sim := CosineSimilarity(query, n.Value); sim > bestSim {
			bestSim = sim
			bestName = name
		}
	}
	return bestName, bestSim
}

// addNodeLocked inserts one embedding into the graph. Caller holds the lock.
func (s *EmbeddingStore) addNodeLocked(name string, embedding []float32) {
	if s.graph == nil {
		g := hnsw.NewGraph[int64]()
		g.M = hnswMaxNeighbors
		g.Ml = 1.0 / float64(hnswMaxNeighbors)
		g.Distance = hnsw.CosineDistance
		s.graph = g
	}

	s.nextID++
	s.graph.Add(hnsw.MakeNode(s.nextID, embedding))
	s.ids[s.nextID] = name
}

// rebuildIndexLocked recreates the graph from scratch. Caller holds the lock.
func (s *EmbeddingStore) rebuildIndexLocked() {
	s.graph = nil
	s.ids = make(map[int64]string)
	s.nextID = 0

	for name, embs := range s.people {
		for _, emb := range embs {
			if len(emb) == 0 {
				continue
			}
			s.addNodeLocked(name, emb)
		}
	}
}
