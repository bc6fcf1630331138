package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryTier_DeleteIfKeepsNewerWrite(t *testing.T) {
	m := newMemoryTier()
	m.set("k", Entry{EntityID: "e", SourceHash: "new"})
	m.deleteIf("k", "old")
	if _, ok := m.get("k"); !ok {
		t.Error("deleteIf removed an entry with a different hash")
	}
	m.deleteIf("k", "new")
	if _, ok := m.get("k"); ok {
		t.Error("deleteIf kept a matching entry")
	}
}

func TestMemoryTier_DeleteEntity(t *testing.T) {
	m := newMemoryTier()
	m.set("a", Entry{EntityID: "e1"})
	m.set("b", Entry{EntityID: "e1"})
	m.set("c", Entry{EntityID: "e2"})

	if n := m.deleteEntity("e1"); n != 2 {
		t.Errorf("deleteEntity removed %d, want 2", n)
	}
	if m.len() != 1 {
		t.Errorf("len = %d, want 1", m.len())
	}
}

func TestMemoryTier_Concurrent(t *testing.T) {
	m := newMemoryTier()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			m.set(key, Entry{EntityID: "e"})
			m.get(key)
			if i%7 == 0 {
				m.deleteEntity("e")
			}
		}(i)
	}
	wg.Wait()
}
