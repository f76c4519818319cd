package scrub

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briancolinger/weather-sorter/internal/config"
)

func grayImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 12, 12))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 5)
	}
	return img
}

func colorImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 120, 40, 0xff
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	default:
		require.NoError(t, png.Encode(&buf, img))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// scenarioDataset builds train/rainy/{a.png gray, b.png color} and val/sunrise/c.jpg gray.
func scenarioDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "train", "rainy", "a.png"), grayImage())
	writeImage(t, filepath.Join(root, "train", "rainy", "b.png"), colorImage())
	writeImage(t, filepath.Join(root, "val", "sunrise", "c.jpg"), grayImage())
	return root
}

// snapshot maps every regular file under root to its contents.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[rel] = string(b)
		return nil
	})
	require.NoError(t, err)
	return files
}

func run(t *testing.T, root string, opts Options) *Report {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	report, err := s.Run(root)
	require.NoError(t, err)
	return report
}

func TestRunDeletesGrayscale(t *testing.T) {
	root := scenarioDataset(t)

	report := run(t, root, Options{})

	assert.NoFileExists(t, filepath.Join(root, "train", "rainy", "a.png"))
	assert.FileExists(t, filepath.Join(root, "train", "rainy", "b.png"))
	assert.NoFileExists(t, filepath.Join(root, "val", "sunrise", "c.jpg"))

	assert.Equal(t, 3, report.TotalProcessed)
	assert.Equal(t, 2, report.TotalFlagged)
	assert.Zero(t, report.TotalFailed)
	assert.False(t, report.DryRun)

	rainy, ok := report.Category("train", "rainy")
	require.True(t, ok)
	assert.Equal(t, 2, rainy.Processed)
	assert.Equal(t, 1, rainy.Flagged)

	sunrise, ok := report.Category("val", "sunrise")
	require.True(t, ok)
	assert.Equal(t, 1, sunrise.Processed)
	assert.Equal(t, 1, sunrise.Flagged)
}

func TestRunMovesToBackup(t *testing.T) {
	root := scenarioDataset(t)
	backup := filepath.Join(t.TempDir(), "bk")
	before := snapshot(t, root)

	report := run(t, root, Options{BackupDir: backup})

	assert.Equal(t, 3, report.TotalProcessed)
	assert.Equal(t, 2, report.TotalFlagged)

	assert.NoFileExists(t, filepath.Join(root, "train", "rainy", "a.png"))
	assert.NoFileExists(t, filepath.Join(root, "val", "sunrise", "c.jpg"))
	assert.FileExists(t, filepath.Join(root, "train", "rainy", "b.png"))

	moved := snapshot(t, backup)
	assert.Equal(t, map[string]string{
		filepath.Join("train", "rainy", "a.png"):  before[filepath.Join("train", "rainy", "a.png")],
		filepath.Join("val", "sunrise", "c.jpg"): before[filepath.Join("val", "sunrise", "c.jpg")],
	}, moved)

	// Only the categories that received a file are created.
	assert.NoDirExists(t, filepath.Join(backup, "train", "cloudy"))
}

func TestRunDryRunLeavesDatasetUntouched(t *testing.T) {
	root := scenarioDataset(t)
	backup := filepath.Join(t.TempDir(), "bk")
	before := snapshot(t, root)

	report := run(t, root, Options{BackupDir: backup, DryRun: true})

	assert.Equal(t, before, snapshot(t, root))
	assert.NoDirExists(t, backup)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.TotalProcessed)
	assert.Equal(t, 2, report.TotalFlagged)
}

func TestRunIsIdempotent(t *testing.T) {
	root := scenarioDataset(t)

	first := run(t, root, Options{})
	require.Equal(t, 2, first.TotalFlagged)

	second := run(t, root, Options{})
	assert.Equal(t, 1, second.TotalProcessed)
	assert.Zero(t, second.TotalFlagged)
}

func TestRunMissingSplit(t *testing.T) {
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "train", "cloudy", "g.png"), grayImage())
	writeImage(t, filepath.Join(root, "train", "sunshine", "c.png"), colorImage())

	report := run(t, root, Options{})

	assert.Equal(t, 2, report.TotalProcessed)
	assert.Equal(t, 1, report.TotalFlagged)
	assert.Contains(t, report.Warnings, filepath.Join(root, "val")+" not found, skipping")
	assert.Contains(t, report.Warnings, filepath.Join(root, "train", "rainy")+" not found, skipping")

	val, ok := report.Category("val", "rainy")
	require.True(t, ok)
	assert.True(t, val.Missing)
	assert.Len(t, report.Categories, 8)
}

func TestRunInvalidRoot(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)

	_, err = s.Run(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrInvalidDataset)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = s.Run(file)
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

func TestRunBackupCollision(t *testing.T) {
	root := t.TempDir()
	backup := t.TempDir()
	writeImage(t, filepath.Join(root, "train", "rainy", "a.png"), grayImage())
	writeImage(t, filepath.Join(root, "train", "rainy", "b.png"), grayImage())

	existing := filepath.Join(backup, "train", "rainy", "a.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("older backup"), 0o644))

	report := run(t, root, Options{BackupDir: backup})

	assert.Equal(t, 2, report.TotalFlagged)
	assert.Equal(t, 1, report.TotalFailed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], ErrBackupExists.Error())

	// The colliding file stays put and the old backup is intact.
	assert.FileExists(t, filepath.Join(root, "train", "rainy", "a.png"))
	b, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "older backup", string(b))

	// The next file is still processed.
	assert.NoFileExists(t, filepath.Join(root, "train", "rainy", "b.png"))
	assert.FileExists(t, filepath.Join(backup, "train", "rainy", "b.png"))
}

func TestRunSkipsNonImagesAndDirectories(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "train", "rainy")
	writeImage(t, filepath.Join(dir, "UPPER.PNG"), grayImage())
	writeImage(t, filepath.Join(dir, "nested", "deep.png"), grayImage())
	writeImage(t, filepath.Join(dir, "gray.png.bak"), grayImage())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.jpg"), 0o755))

	report := run(t, root, Options{})

	assert.Equal(t, 1, report.TotalProcessed)
	assert.Equal(t, 1, report.TotalFlagged)
	assert.NoFileExists(t, filepath.Join(dir, "UPPER.PNG"))
	assert.FileExists(t, filepath.Join(dir, "nested", "deep.png"))
	assert.FileExists(t, filepath.Join(dir, "gray.png.bak"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.DirExists(t, filepath.Join(dir, "folder.jpg"))
}

func TestRunKeepsUnreadableImages(t *testing.T) {
	root := t.TempDir()
	corrupt := filepath.Join(root, "train", "rainy", "broken.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(corrupt), 0o755))
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0o644))

	report := run(t, root, Options{})

	assert.Equal(t, 1, report.TotalProcessed)
	assert.Zero(t, report.TotalFlagged)
	assert.FileExists(t, corrupt)
}

type stubDetector map[string]bool

func (d stubDetector) IsGrayscale(path string) bool {
	return d[filepath.Base(path)]
}

func TestRunCustomLayoutAndDetector(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"test/foggy/x.png", "test/foggy/y.png", "train/foggy/z.png"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.Dir(p)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, p), []byte(p), 0o644))
	}

	report := run(t, root, Options{
		Layout:   config.Layout{{Name: "test", Categories: []string{"foggy"}}},
		Detector: stubDetector{"y.png": true, "z.png": true},
	})

	assert.Equal(t, 2, report.TotalProcessed)
	assert.Equal(t, 1, report.TotalFlagged)
	assert.FileExists(t, filepath.Join(root, "test", "foggy", "x.png"))
	assert.NoFileExists(t, filepath.Join(root, "test", "foggy", "y.png"))
	assert.FileExists(t, filepath.Join(root, "train", "foggy", "z.png"))
	assert.Len(t, report.Categories, 1)
}

func TestNewRejectsInvalidLayout(t *testing.T) {
	_, err := New(Options{Layout: config.Layout{{Name: "train"}}})
	assert.Error(t, err)
}

func TestMoveFileCopyFallbackRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dest := filepath.Join(dir, "dest.png")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	assert.ErrorIs(t, copyFile(src, dest), ErrBackupExists)
	assert.ErrorIs(t, moveFile(src, dest), ErrBackupExists)

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
	assert.FileExists(t, src)
}

func TestReportPrint(t *testing.T) {
	root := scenarioDataset(t)
	report := run(t, root, Options{DryRun: true})

	var buf bytes.Buffer
	require.NoError(t, report.Print(&buf))
	out := buf.String()

	assert.Contains(t, out, "train/rainy: processed 2 images, found 1 grayscale images")
	assert.Contains(t, out, "train/cloudy: not found")
	assert.Contains(t, out, "DATASET SUMMARY: Processed 3 images")
	assert.Contains(t, out, "Found 2 grayscale images")
	assert.Contains(t, out, "No files were removed (dry run)")
}

func TestMoveFileKeepsContentAndMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dest := filepath.Join(dir, "moved.png")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0o600))
	require.NoError(t, os.Chmod(src, 0o600))

	require.NoError(t, moveFile(src, dest))

	assert.NoFileExists(t, src)
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(b))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCopyFileKeepsContentAndMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dest := filepath.Join(dir, "copy.png")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0o640))
	require.NoError(t, os.Chmod(src, 0o640))

	require.NoError(t, copyFile(src, dest))

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(b))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.FileExists(t, src)
}

func TestMoveFileDoesNotCopyOnRenameError(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.png")

	err := moveFile(filepath.Join(dir, "missing.png"), dest)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, dest)
}
