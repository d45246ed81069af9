package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/medletter/internal/config"
	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter/aggregate"
	"github.com/ehr/medletter/internal/letter/pipeline"
	"github.com/ehr/medletter/internal/letter/render"
	"github.com/ehr/medletter/internal/platform/archive"
)

// writeBundle stores a minimal consultation bundle in dir and returns its id.
func writeBundle(t *testing.T, dir string) uuid.UUID {
	t.Helper()
	b := consultation.Bundle{
		Consultation: consultation.Record{
			ID:          uuid.New(),
			Date:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			PatientName: "Pop Ion",
			DoctorName:  "Dr. Radu",
		},
	}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, b.Consultation.ID.String()+".json"), data, 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return b.Consultation.ID
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "letter-server"}
	root.AddCommand(cmd)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRenderCmd_WritesPDF(t *testing.T) {
	dir := t.TempDir()
	id := writeBundle(t, dir)
	out := filepath.Join(t.TempDir(), "letter.pdf")

	if _, err := execute(t, renderCmd(), "render", "--consultation", id.String(), "--data-dir", dir, "--out", out); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestRenderCmd_InvalidID(t *testing.T) {
	_, err := execute(t, renderCmd(), "render", "--consultation", "not-a-uuid", "--data-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "invalid --consultation") {
		t.Errorf("expected an invalid id error, got %v", err)
	}
}

func TestPreviewCmd_WritesPNG(t *testing.T) {
	dir := t.TempDir()
	id := writeBundle(t, dir)
	out := filepath.Join(t.TempDir(), "page.png")

	if _, err := execute(t, previewCmd(), "preview", "--consultation", id.String(), "--data-dir", dir, "--width", "420", "--out", out); err != nil {
		t.Fatalf("preview: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 420 {
		t.Errorf("width = %d, want 420", cfg.Width)
	}
}

func TestRenderStyle_UsesConfiguredFonts(t *testing.T) {
	cfg := &config.Config{RenderFontFile: "regular.ttf", RenderBoldFontFile: "bold.ttf"}
	style := renderStyle(cfg)
	if style.FontFile != "regular.ttf" || style.BoldFontFile != "bold.ttf" {
		t.Errorf("fonts not applied: %+v", style)
	}
	if style.PageWidth != render.DefaultStyle().PageWidth {
		t.Error("expected the default page size")
	}
}

func TestOpenArchive(t *testing.T) {
	store, err := openArchive(context.Background(), &config.Config{ArchiveBackend: config.ArchiveMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*archive.MemoryStore); !ok {
		t.Errorf("expected a memory store, got %T", store)
	}

	store, err = openArchive(context.Background(), &config.Config{ArchiveBackend: config.ArchiveNone})
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if store != nil {
		t.Errorf("expected no store, got %T", store)
	}
}

func TestNewServer_Routes(t *testing.T) {
	dir := t.TempDir()
	id := writeBundle(t, dir)
	data, err := consultation.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	cfg := &config.Config{BodyLimit: "2M", RequestTimeout: 5 * time.Second, CORSOrigins: []string{"*"}}
	agg := aggregate.New(memorySources(data), cfg.Clinic(), zerolog.Nop())
	svc := pipeline.NewService(agg, render.New(render.DefaultStyle()), archive.NewMemoryStore(), zerolog.Nop())
	e := newServer(cfg, zerolog.Nop(), svc, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/v1/consultations/" + id.String() + "/letter", http.StatusOK},
		{"/api/v1/consultations/" + id.String() + "/letter.pdf", http.StatusOK},
		{"/api/v1/consultations/" + uuid.NewString() + "/letter", http.StatusNotFound},
		{"/api/v1/consultations/bad/letter", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing request id header")
			}
		})
	}
}
