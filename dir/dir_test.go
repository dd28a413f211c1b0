package dir

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListFiltersByRegex(t *testing.T) {
	tmp := t.TempDir()
	write(t, tmp, "a.jpg", "x")
	write(t, tmp, "b.txt", "x")

	files, err := List(tmp, RegexEndsWithBeforeExt("jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name() != "a.jpg" {
		t.Fatalf("expected only a.jpg, got %v", files)
	}
}

func TestSizeSumsMatchingFiles(t *testing.T) {
	tmp := t.TempDir()
	write(t, tmp, "a.jpg", "12345")
	write(t, tmp, "b.jpg", "12345")
	write(t, tmp, "c.txt", "1")

	size, err := Size(tmp, RegexEndsWithBeforeExt("jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if size != 10 {
		t.Fatalf("expected size 10, got %d", size)
	}
}

func TestExpiredFindsOldFiles(t *testing.T) {
	tmp := t.TempDir()
	write(t, tmp, "old.jpg", "x")
	old := filepath.Join(tmp, "old.jpg")
	oldTime := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}
	write(t, tmp, "new.jpg", "x")

	expired, err := Expired(tmp, "", time.Now(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].Name() != "old.jpg" {
		t.Fatalf("expected only old.jpg expired, got %v", expired)
	}
}

func TestBytesConversions(t *testing.T) {
	if got := BytesToMegaBytes(1_000_000); got != 1 {
		t.Fatalf("expected 1 MB, got %f", got)
	}
	if got := BytesToGigaBytes(1_000_000_000); got != 1 {
		t.Fatalf("expected 1 GB, got %f", got)
	}
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
