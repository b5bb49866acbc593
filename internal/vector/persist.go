package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/models"
)

// Snapshot artifact names inside a store directory. Both must be present for
// a successful load.
const (
	indexFileName = "index.bin"
	dataFileName  = "data.json"
)

// snapshotData is the structured artifact holding the ordered chunk list and
// parallel metadata list.
type snapshotData struct {
	Chunks   []string          `json:"chunks"`
	Metadata []models.Metadata `json:"metadata"`
}

// Save writes the store to dir as two artifacts: index.bin (binary vector
// dump) and data.json (chunks and metadata). Each artifact is written to a
// temporary path and renamed into place so readers only ever observe a
// complete snapshot.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if err := s.writeIndexLocked(filepath.Join(dir, indexFileName)); err != nil {
		return err
	}
	if err := s.writeDataLocked(filepath.Join(dir, dataFileName)); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("store saved", zap.String("dir", dir), zap.Int("entries", len(s.chunks)))
	}
	return nil
}

func (s *Store) writeIndexLocked(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := binary.Write(tmp, binary.LittleEndian, uint32(s.dimension)); err != nil {
		tmp.Close()
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := binary.Write(tmp, binary.LittleEndian, uint32(len(s.vectors))); err != nil {
		tmp.Close()
		return fmt.Errorf("write count: %w", err)
	}
	for i, vec := range s.vectors {
		if _, err := tmp.Write(float32SliceToBytes(vec)); err != nil {
			tmp.Close()
			return fmt.Errorf("write vector %d: %w", i, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index into place: %w", err)
	}
	return nil
}

func (s *Store) writeDataLocked(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".data-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp data: %w", err)
	}
	defer os.Remove(tmp.Name())

	snap := snapshotData{Chunks: s.chunks, Metadata: s.metadata}
	if snap.Chunks == nil {
		snap.Chunks = []string{}
	}
	if snap.Metadata == nil {
		snap.Metadata = []models.Metadata{}
	}
	if err := json.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp data: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename data into place: %w", err)
	}
	return nil
}

// Load reads both snapshot artifacts from dir and replaces the store's state
// wholesale. If either artifact is missing, ErrStoreNotFound is returned and
// the store is left unchanged. Dimension and parallel-length consistency are
// validated before any state is replaced.
func (s *Store) Load(dir string) error {
	indexPath := filepath.Join(dir, indexFileName)
	dataPath := filepath.Join(dir, dataFileName)

	vectors, err := readIndex(indexPath, s.dimension)
	if err != nil {
		return err
	}
	snap, err := readData(dataPath)
	if err != nil {
		return err
	}
	if len(snap.Chunks) != len(snap.Metadata) || len(snap.Chunks) != len(vectors) {
		return fmt.Errorf("corrupt snapshot: %d chunks, %d metadata, %d vectors",
			len(snap.Chunks), len(snap.Metadata), len(vectors))
	}

	s.mu.Lock()
	s.chunks = snap.Chunks
	s.metadata = snap.Metadata
	s.vectors = vectors
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("store loaded", zap.String("dir", dir), zap.Int("entries", len(snap.Chunks)))
	}
	return nil
}

func readIndex(path string, dimension int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var dim, count uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	if int(dim) != dimension {
		return nil, fmt.Errorf("dimension mismatch: file has %d, store expects %d", dim, dimension)
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	vectors := make([][]float32, 0, count)
	buf := make([]byte, dimension*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return vectors, nil
}

func readData(path string) (*snapshotData, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()

	var snap snapshotData
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return &snap, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
