package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/framecut/framecut-agent/internal/engine"
)

// memoryRepository keeps assets in a map, enough to drive the registry in
// tests without a database.
type memoryRepository struct {
	assets map[string]*Asset
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{assets: make(map[string]*Asset)}
}

func (r *memoryRepository) CreateAsset(ctx context.Context, a *Asset) error {
	cp := *a
	r.assets[a.ID] = &cp
	return nil
}

func (r *memoryRepository) GetAsset(ctx context.Context, id string) (*Asset, error) {
	a, ok := r.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memoryRepository) GetAssetByFingerprint(ctx context.Context, fp string) (*Asset, error) {
	for _, a := range r.assets {
		if a.Fingerprint == fp {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) ListAssets(ctx context.Context) ([]*Asset, error) {
	var out []*Asset
	for _, a := range r.assets {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryRepository) DeleteAsset(ctx context.Context, id string) error {
	delete(r.assets, id)
	return nil
}

type fakeRefs struct {
	projects []string
}

func (f *fakeRefs) ProjectsReferencing(ctx context.Context, assetID string) ([]string, error) {
	return f.projects, nil
}

func writeTempMedia(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestRegistry(t *testing.T) (*Registry, *memoryRepository, *engine.StubAdapter) {
	t.Helper()
	stub := engine.NewStubAdapter()
	if err := stub.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	repo := newMemoryRepository()
	return NewRegistry(repo, stub, "", nil), repo, stub
}

func TestIngest(t *testing.T) {
	reg, repo, stub := newTestRegistry(t)
	dir := t.TempDir()
	path := writeTempMedia(t, dir, "clip.mp4", "video bytes")
	stub.ProbeResults[path] = &engine.ProbeResult{
		Duration: 12.5, Width: 1920, Height: 1080, FrameRate: 30,
		VideoCodec: "h264", HasVideo: true,
	}

	asset, err := reg.Ingest(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if asset.ID == "" || asset.Fingerprint == "" {
		t.Fatalf("asset not fully populated: %+v", asset)
	}
	if asset.DisplayName != "clip.mp4" {
		t.Fatalf("display name = %q, want file base name", asset.DisplayName)
	}
	if asset.Duration != 12.5 || asset.Width != 1920 {
		t.Fatalf("probe metadata not carried over: %+v", asset)
	}
	if _, ok := repo.assets[asset.ID]; !ok {
		t.Fatal("asset not persisted")
	}
}

func TestIngest_DeduplicatesIdenticalContent(t *testing.T) {
	reg, _, stub := newTestRegistry(t)
	dir := t.TempDir()
	first := writeTempMedia(t, dir, "a.mp4", "same bytes")
	second := writeTempMedia(t, dir, "b.mp4", "same bytes")
	stub.ProbeResults[first] = &engine.ProbeResult{Duration: 5, HasVideo: true, Width: 640, Height: 480}

	assetA, err := reg.Ingest(context.Background(), first, "")
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	// No canned probe result for the second path: dedup must short-circuit
	// before probing.
	assetB, err := reg.Ingest(context.Background(), second, "")
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if assetA.ID != assetB.ID {
		t.Fatalf("identical content produced distinct assets: %s vs %s", assetA.ID, assetB.ID)
	}
}

func TestIngest_UnsupportedFormat(t *testing.T) {
	reg, _, stub := newTestRegistry(t)
	dir := t.TempDir()

	// Probe failure.
	unknown := writeTempMedia(t, dir, "doc.txt", "not media")
	if _, err := reg.Ingest(context.Background(), unknown, ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	// Probe succeeds but finds no decodable stream.
	empty := writeTempMedia(t, dir, "empty.bin", "streamless")
	stub.ProbeResults[empty] = &engine.ProbeResult{Duration: 3}
	if _, err := reg.Ingest(context.Background(), empty, ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for streamless file, got %v", err)
	}
}

func TestIngest_CorruptFile(t *testing.T) {
	reg, _, stub := newTestRegistry(t)
	dir := t.TempDir()
	path := writeTempMedia(t, dir, "broken.mp4", "truncated")
	stub.ProbeResults[path] = &engine.ProbeResult{HasVideo: true, Width: 640, Height: 480}

	if _, err := reg.Ingest(context.Background(), path, ""); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}

func TestIngest_MissingFile(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	if _, err := reg.Ingest(context.Background(), "/nonexistent/clip.mp4", ""); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDelete_RejectedWhileReferenced(t *testing.T) {
	reg, _, stub := newTestRegistry(t)
	dir := t.TempDir()
	path := writeTempMedia(t, dir, "clip.mp4", "video bytes")
	stub.ProbeResults[path] = &engine.ProbeResult{Duration: 5, HasVideo: true, Width: 640, Height: 480}

	asset, err := reg.Ingest(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	refs := &fakeRefs{projects: []string{"project-1"}}
	reg.SetReferenceChecker(refs)

	err = reg.Delete(context.Background(), asset.ID)
	var inUse *InUseError
	if !errors.As(err, &inUse) {
		t.Fatalf("expected InUseError, got %v", err)
	}
	if len(inUse.ProjectIDs) != 1 || inUse.ProjectIDs[0] != "project-1" {
		t.Fatalf("InUseError should name the projects: %+v", inUse)
	}

	// Detached: deletion goes through.
	refs.projects = nil
	if err := reg.Delete(context.Background(), asset.ID); err != nil {
		t.Fatalf("Delete after detach: %v", err)
	}
	if _, err := reg.Get(context.Background(), asset.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDelete_UnknownAsset(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	if err := reg.Delete(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writeTempMedia(t, dir, "a.bin", "identical payload")
	b := writeTempMedia(t, dir, "b.bin", "identical payload")
	c := writeTempMedia(t, dir, "c.bin", "different payload!")

	fpA, sizeA, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fpB, _, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fpC, _, err := Fingerprint(c)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	if fpA != fpB {
		t.Fatal("identical content must fingerprint identically")
	}
	if fpA == fpC {
		t.Fatal("distinct content must fingerprint distinctly")
	}
	if sizeA != int64(len("identical payload")) {
		t.Fatalf("size = %d", sizeA)
	}
}

func TestThumbnailOffset(t *testing.T) {
	cases := map[float64]float64{
		1:   0,
		5:   1,
		100: 10,
	}
	for dur, want := range cases {
		if got := thumbnailOffset(dur); got != want {
			t.Fatalf("thumbnailOffset(%v) = %v, want %v", dur, got, want)
		}
	}
}
