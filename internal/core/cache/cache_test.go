package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGet(t *testing.T) {
	d := NewDisk(t.TempDir(), "orthophoto", time.Hour)

	p, err := d.Put("job1", "png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Dir(), "job1.png"), p)

	got, ok := d.Get("job1", "png")
	require.True(t, ok)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestGetMissesAbsentEntry(t *testing.T) {
	d := NewDisk(t.TempDir(), "orthophoto", time.Hour)
	_, ok := d.Get("nope", "png")
	assert.False(t, ok)
}

func TestKeySeparatesVariants(t *testing.T) {
	d := NewDisk(t.TempDir(), "pointcloud", time.Hour)
	_, err := d.Put("job1", "laz", []byte("raw"))
	require.NoError(t, err)
	_, err = d.Put("job1", "points.1000.bin", []byte("decoded"))
	require.NoError(t, err)

	p1, ok := d.Get("job1", "laz")
	require.True(t, ok)
	p2, ok := d.Get("job1", "points.1000.bin")
	require.True(t, ok)
	assert.NotEqual(t, p1, p2)
}

func TestExpiryByModTime(t *testing.T) {
	d := NewDisk(t.TempDir(), "model", time.Hour)
	p, err := d.Put("job1", "mesh.obj", []byte("obj"))
	require.NoError(t, err)

	// age the file past the TTL
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(p, old, old))

	_, ok := d.Get("job1", "mesh.obj")
	assert.False(t, ok)

	// expired files stay on disk until overwritten
	_, err = os.Stat(p)
	assert.NoError(t, err)

	_, err = d.Put("job1", "mesh.obj", []byte("fresh"))
	require.NoError(t, err)
	got, ok := d.Get("job1", "mesh.obj")
	require.True(t, ok)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestFamilyDirectoryLayout(t *testing.T) {
	base := t.TempDir()
	d := NewDisk(base, "orthophoto", time.Hour)
	assert.Equal(t, filepath.Join(base, "orthophoto-cache"), d.Dir())

	// empty base falls back to the system temp dir
	fallback := NewDisk("", "orthophoto", time.Hour)
	assert.Equal(t, filepath.Join(os.TempDir(), "orthophoto-cache"), fallback.Dir())
}
