package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestScan(t *testing.T) {
	tmpDir := t.TempDir()

	testFiles := []string{
		"overview.pdf",
		"guides/asthma.pdf",
		"guides/ASTHMA-KIDS.PDF",
		"mhml/stress/sleep.pdf",
		"guides/notes.txt",
		".cache/hidden.pdf",
	}
	for _, rel := range testFiles {
		fullPath := filepath.Join(tmpDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte("%PDF-1.4"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}

	files, err := Scan(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []ScannedFile{
		{DocumentID: "guides_ASTHMA-KIDS.PDF", RelPath: "guides/ASTHMA-KIDS.PDF", Category: "guides"},
		{DocumentID: "guides_asthma.pdf", RelPath: "guides/asthma.pdf", Category: "guides"},
		{DocumentID: "mhml_stress_sleep.pdf", RelPath: "mhml/stress/sleep.pdf", Category: "mhml/stress"},
		{DocumentID: "overview.pdf", RelPath: "overview.pdf", Category: ""},
	}
	if len(files) != len(want) {
		t.Fatalf("Scan() returned %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, w := range want {
		got := files[i]
		if got.DocumentID != w.DocumentID || got.RelPath != w.RelPath || got.Category != w.Category {
			t.Errorf("file %d = %+v, want %+v", i, got, w)
		}
		if got.AbsPath != filepath.Join(tmpDir, filepath.FromSlash(w.RelPath)) {
			t.Errorf("file %d AbsPath = %s", i, got.AbsPath)
		}
	}
}

func TestScan_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Scan(context.Background(), filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("Scan() on missing root should fail")
	}

	file := filepath.Join(tmpDir, "file.pdf")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Scan(context.Background(), file); err == nil {
		t.Error("Scan() on a file should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, tmpDir); err == nil {
		t.Error("Scan() with cancelled context should fail")
	}
}

func TestScan_Empty(t *testing.T) {
	files, err := Scan(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Scan() = %v, want none", files)
	}
}

func TestDocumentID(t *testing.T) {
	tests := map[string]string{
		"a.pdf":            "a.pdf",
		"guides/a.pdf":     "guides_a.pdf",
		"x/y/z/report.pdf": "x_y_z_report.pdf",
	}
	for in, want := range tests {
		if got := DocumentID(in); got != want {
			t.Errorf("DocumentID(%q) = %q, want %q", in, got, want)
		}
	}
}
