// Package embedding converts text into fixed-dimension vectors using a
// word-vector model loaded once from a local model directory.
package embedding

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ErrModelLoad indicates the local model directory is missing or unusable.
// It is fatal for the process until an administrator fixes the model files.
var ErrModelLoad = errors.New("embedding model load failed")

const (
	vectorsFile = "model.vec"
	configFile  = "model.json"
)

type modelConfig struct {
	Dimension int `json:"dimension"`
}

// Service embeds text with a word-vector model. Inference reuses an internal
// accumulator buffer and is therefore not re-entrant; calls serialize on an
// internal mutex. Callers may invoke it concurrently.
type Service struct {
	dim     int
	vectors map[string][]float32

	mu      sync.Mutex
	scratch []float32

	tokenPattern *regexp.Regexp
}

// NewService loads the model from modelDir. Required files:
//
//	model.json  {"dimension": N}
//	model.vec   word2vec text format: header "vocab dim", then one
//	             "token v1 ... vN" line per vocabulary entry.
//
// Missing or malformed files return an error wrapping ErrModelLoad.
func NewService(modelDir string) (*Service, error) {
	cfgPath := filepath.Join(modelDir, configFile)
	vecPath := filepath.Join(modelDir, vectorsFile)

	cfgData, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrModelLoad, cfgPath, err)
	}
	var cfg modelConfig
	if err := json.Unmarshal(cfgData, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrModelLoad, cfgPath, err)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension %d in %s", ErrModelLoad, cfg.Dimension, cfgPath)
	}

	f, err := os.Open(vecPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrModelLoad, vecPath, err)
	}
	defer f.Close()

	vectors, err := loadVectors(f, cfg.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, vecPath, err)
	}

	return &Service{
		dim:          cfg.Dimension,
		vectors:      vectors,
		scratch:      make([]float32, cfg.Dimension),
		tokenPattern: regexp.MustCompile(`\p{L}+|\p{N}+`),
	}, nil
}

func loadVectors(f *os.File, dim int) (map[string][]float32, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, errors.New("empty vector file")
	}
	header := strings.Fields(scanner.Text())
	if len(header) != 2 {
		return nil, fmt.Errorf("malformed header %q", scanner.Text())
	}
	vocab, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("parsing vocab size: %v", err)
	}
	fileDim, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, fmt.Errorf("parsing dimension: %v", err)
	}
	if fileDim != dim {
		return nil, fmt.Errorf("vector file dimension %d does not match config dimension %d", fileDim, dim)
	}

	vectors := make(map[string][]float32, vocab)
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, dim+1, len(fields))
		}
		vec := make([]float32, dim)
		for i := range dim {
			v, err := strconv.ParseFloat(fields[i+1], 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing component %d: %v", line, i, err)
			}
			vec[i] = float32(v)
		}
		vectors[fields[0]] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vectors: %v", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("no vectors in file")
	}
	return vectors, nil
}

// Dimension returns the fixed embedding dimension of the loaded model.
func (s *Service) Dimension() int {
	return s.dim
}

// Embed converts text into a single L2-normalized vector. Known tokens are
// averaged; a text with no known tokens falls back to a deterministic hashed
// vector so embedding is total over all inputs.
func (s *Service) Embed(text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embedding empty text")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.scratch {
		s.scratch[i] = 0
	}

	tokens := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	matched := 0
	for _, tok := range tokens {
		vec, ok := s.vectors[tok]
		if !ok {
			continue
		}
		for i, v := range vec {
			s.scratch[i] += v
		}
		matched++
	}

	out := make([]float32, s.dim)
	if matched > 0 {
		inv := 1 / float32(matched)
		for i, v := range s.scratch {
			out[i] = v * inv
		}
	} else {
		hashedFallback(out, tokens)
	}

	normalize(out)
	return out, nil
}

// EmbedBatch embeds each text in order. A failure on any text aborts the batch.
func (s *Service) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// hashedFallback fills vec deterministically from token hashes. Two texts
// with the same token set map to the same vector.
func hashedFallback(vec []float32, tokens []string) {
	if len(tokens) == 0 {
		tokens = []string{""}
	}
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(len(vec)))
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	inv := float32(1 / norm)
	for i := range vec {
		vec[i] *= inv
	}
}
