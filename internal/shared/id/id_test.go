package id

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()
	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()

	if !strings.HasPrefix(id.String(), RequestPrefix+"_") {
		t.Errorf("Request ID should start with %q, got: %s", RequestPrefix+"_", id)
	}
	parts := strings.Split(id.String(), "_")
	if len(parts) != 2 || !IsValid(parts[1]) {
		t.Errorf("Request ID should have format 'req_<ulid>', got: %s", id)
	}
}

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()

	if !strings.HasPrefix(id.String(), MessagePrefix+"_") {
		t.Errorf("Message ID should start with %q, got: %s", MessagePrefix+"_", id)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const n = 100
	var wg sync.WaitGroup
	ids := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ids[idx] = gen.GenerateString()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("Duplicate ID under concurrency: %s", id)
		}
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(NewGenerator().GenerateString()) {
		t.Error("Fresh ULID should be valid")
	}
	if IsValid("not-a-ulid") {
		t.Error("Garbage should not be valid")
	}
}
