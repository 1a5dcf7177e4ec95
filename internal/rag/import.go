package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ImportRecord is one knowledge entry in the JSON import format.
type ImportRecord struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Metadata    string `json:"metadata,omitempty"`
}

// ImportResult counts an import's outcome. Failures are collected, not fatal:
// a bad record never stops the rest of the batch.
type ImportResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *ImportResult) recordFailure(detail string) {
	r.Failed++
	r.Errors = append(r.Errors, detail)
}

// ImportJSON reads a JSON array of records and stores each one. Records
// missing content_type or content are counted as failures.
func (s *Service) ImportJSON(ctx context.Context, r io.Reader) (ImportResult, error) {
	var records []ImportRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return ImportResult{}, fmt.Errorf("decoding import file: %w", err)
	}

	var result ImportResult
	for i, rec := range records {
		if rec.ContentType == "" || rec.Content == "" {
			result.recordFailure(fmt.Sprintf("record %d: content_type and content are required", i+1))
			continue
		}
		if _, err := s.EmbedAndStore(ctx, rec.ContentType, rec.Content, rec.Metadata); err != nil {
			if IsUnavailable(err) {
				return result, err
			}
			result.recordFailure(fmt.Sprintf("record %d: %v", i+1, err))
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// ImportText reads pipe-delimited lines of the form
//
//	content_type|content|metadata
//
// where metadata is optional. Blank lines and lines starting with # are
// skipped.
func (s *Service) ImportText(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "|", 3)
		if len(parts) < 2 {
			result.recordFailure(fmt.Sprintf("line %d: expected content_type|content[|metadata]", lineNo))
			continue
		}
		contentType := strings.TrimSpace(parts[0])
		content := strings.TrimSpace(parts[1])
		metadata := ""
		if len(parts) == 3 {
			metadata = strings.TrimSpace(parts[2])
		}
		if contentType == "" || content == "" {
			result.recordFailure(fmt.Sprintf("line %d: content_type and content are required", lineNo))
			continue
		}

		if _, err := s.EmbedAndStore(ctx, contentType, content, metadata); err != nil {
			if IsUnavailable(err) {
				return result, err
			}
			result.recordFailure(fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		result.Succeeded++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("reading import file: %w", err)
	}
	return result, nil
}
