package rag

import (
	"context"
	"strings"
	"testing"
)

func TestImportJSON(t *testing.T) {
	s := newTestService(t)

	input := `[
		{"content_type": "question", "content": "Explain go interfaces"},
		{"content_type": "answer", "content": "Interfaces are satisfied implicitly", "metadata": "topic=go"},
		{"content_type": "", "content": "missing type"},
		{"content_type": "question", "content": ""}
	]`

	result, err := s.ImportJSON(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if result.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", result.Succeeded)
	}
	if result.Failed != 2 {
		t.Errorf("failed = %d, want 2", result.Failed)
	}
	if len(result.Errors) != 2 {
		t.Errorf("errors = %v, want 2 entries", result.Errors)
	}

	status, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.QuestionCount != 1 || status.AnswerCount != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestImportJSON_MalformedFile(t *testing.T) {
	s := newTestService(t)

	if _, err := s.ImportJSON(context.Background(), strings.NewReader("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestImportText(t *testing.T) {
	s := newTestService(t)

	input := `# interview questions
question|Explain go scheduling|topic=go

answer|Goroutines multiplex onto OS threads
jd|Senior go backend role|company=acme
malformed line without pipes
|missing type
`

	result, err := s.ImportText(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportText: %v", err)
	}
	if result.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", result.Succeeded)
	}
	if result.Failed != 2 {
		t.Errorf("failed = %d, want 2; errors: %v", result.Failed, result.Errors)
	}

	status, _ := s.Status()
	if status.QuestionCount != 1 || status.AnswerCount != 1 || status.JDCount != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestImport_UnavailableEngineAborts(t *testing.T) {
	s := newTestService(t)
	s.modelDir = t.TempDir() // no model files

	input := `question|Explain go scheduling`
	_, err := s.ImportText(context.Background(), strings.NewReader(input))
	if err == nil {
		t.Fatal("expected unavailability error")
	}
	if !IsUnavailable(err) {
		t.Errorf("err = %v, want unavailability", err)
	}
}
