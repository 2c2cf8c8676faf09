package cache

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/ch1n3du/pico-typechecker/compiler"
	"github.com/ch1n3du/pico-typechecker/vm"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "chunks.db"))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func build(t *testing.T, src string) *vm.Chunk {
	t.Helper()
	prog, err := compiler.Build(src)
	if err != nil {
		t.Fatalf("Build(%q) = %v", src, err)
	}
	return prog.Chunk
}

func TestGetPut(t *testing.T) {
	c := openTemp(t)
	src := "let x = 3; x + 4"

	if _, ok, err := c.Get(src); err != nil || ok {
		t.Fatalf("Get(empty) = %v, %v; want miss", ok, err)
	}

	if err := c.Put(src, build(t, src)); err != nil {
		t.Fatalf("Put() = %v", err)
	}

	chunk, ok, err := c.Get(src)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want hit", ok, err)
	}
	m := vm.New(chunk)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if top, _ := m.Top(); !top.Equal(vm.Int(7)) {
		t.Errorf("top = %v, want 7", top)
	}

	if _, ok, _ := c.Get(src + " "); ok {
		t.Error("Get() hit for different source")
	}

	s, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() = %v", err)
	}
	if s.Entries != 1 || s.Hits != 1 || s.Misses != 2 || s.Bytes == 0 {
		t.Errorf("Stats() = %+v, want 1 entry, 1 hit, 2 misses", s)
	}
}

func TestPutReplaces(t *testing.T) {
	c := openTemp(t)
	src := "1 + 1"
	for i := 0; i < 3; i++ {
		if err := c.Put(src, build(t, src)); err != nil {
			t.Fatalf("Put() = %v", err)
		}
	}
	s, _ := c.Stats()
	if s.Entries != 1 {
		t.Errorf("Entries = %d, want 1", s.Entries)
	}
}

func TestStaleEntryEvicted(t *testing.T) {
	c := openTemp(t)
	src := "true"
	if _, err := c.db.Exec(
		"INSERT INTO chunks (source_hash, image_id, image) VALUES (?, ?, ?)",
		key(src), "x", []byte("not an image"),
	); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(src); err != nil || ok {
		t.Errorf("Get(stale) = %v, %v; want miss", ok, err)
	}
	s, _ := c.Stats()
	if s.Entries != 0 {
		t.Errorf("Entries = %d after eviction, want 0", s.Entries)
	}
}

func TestClear(t *testing.T) {
	c := openTemp(t)
	for _, src := range []string{"1", "2", "3"} {
		if err := c.Put(src, build(t, src)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() = %v", err)
	}
	s, _ := c.Stats()
	if s.Entries != 0 {
		t.Errorf("Entries = %d, want 0", s.Entries)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("7 - 2", build(t, "7 - 2")); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, ok, err := c.Get("7 - 2"); err != nil || !ok {
		t.Errorf("Get() after reopen = %v, %v; want hit", ok, err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := openTemp(t)
	srcs := []string{"1 + 2", "3 * 4", `"a" + "b"`, "not true"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := srcs[i%len(srcs)]
			prog, err := compiler.Build(src)
			if err != nil {
				t.Errorf("Build(%q) = %v", src, err)
				return
			}
			if err := c.Put(src, prog.Chunk); err != nil {
				t.Errorf("Put(%q) = %v", src, err)
			}
			if _, _, err := c.Get(src); err != nil {
				t.Errorf("Get(%q) = %v", src, err)
			}
		}(i)
	}
	wg.Wait()

	s, _ := c.Stats()
	if s.Entries != int64(len(srcs)) {
		t.Errorf("Entries = %d, want %d", s.Entries, len(srcs))
	}
}
