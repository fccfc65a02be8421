package cache

import (
	"context"
	"sort"
	"testing"
)

func TestPartitionsAreDisjointNamespaces(t *testing.T) {
	backend := newMemoryBackend()
	manager := NewPartitions(backend)

	static, err := manager.Open(context.Background(), "static-v3")
	if err != nil {
		t.Fatalf("open static partition failed: %v", err)
	}
	runtime, err := manager.Open(context.Background(), "runtime-v3")
	if err != nil {
		t.Fatalf("open runtime partition failed: %v", err)
	}

	entry := &Entry{Status: 200, ContentType: "text/html", Body: []byte("home")}
	if err := static.Put(context.Background(), "/index.html", entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if _, found, _ := runtime.Match(context.Background(), "/index.html"); found {
		t.Fatalf("entry leaked across partitions")
	}
	if _, found, _ := static.Match(context.Background(), "/index.html"); !found {
		t.Fatalf("entry missing from owning partition")
	}
}

func TestPartitionsListTracksOpenedPartitions(t *testing.T) {
	backend := newMemoryBackend()
	manager := NewPartitions(backend)

	for _, name := range []string{"static-v3", "runtime-v3", "images-v3"} {
		if _, err := manager.Open(context.Background(), name); err != nil {
			t.Fatalf("open %s failed: %v", name, err)
		}
	}

	names, err := manager.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	sort.Strings(names)
	expected := []string{"images-v3", "runtime-v3", "static-v3"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d partitions, got %v", len(expected), names)
	}
	for index, name := range expected {
		if names[index] != name {
			t.Fatalf("expected partition %s at %d, got %v", name, index, names)
		}
	}
}

func TestDeleteRemovesEntriesAndRegistration(t *testing.T) {
	backend := newMemoryBackend()
	manager := NewPartitions(backend)

	old, err := manager.Open(context.Background(), "static-v2")
	if err != nil {
		t.Fatalf("open partition failed: %v", err)
	}

	entry := &Entry{Status: 200, ContentType: "text/css", Body: []byte("old")}
	if err := old.Put(context.Background(), "/styles/main.css", entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if err := manager.Delete(context.Background(), "static-v2"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, found, _ := old.Match(context.Background(), "/styles/main.css"); found {
		t.Fatalf("entry survived partition deletion")
	}

	names, err := manager.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, name := range names {
		if name == "static-v2" {
			t.Fatalf("deleted partition still registered")
		}
	}
}

func TestOpenRejectsEmptyName(t *testing.T) {
	manager := NewPartitions(newMemoryBackend())

	if _, err := manager.Open(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty partition name")
	}
}
