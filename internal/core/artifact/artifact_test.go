package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victoryforphil/cursed-next-odm/internal/core/archive"
)

type cannedDownloader struct{ data []byte }

func (c cannedDownloader) DownloadArchive(ctx context.Context, jobID string) ([]byte, error) {
	return c.data, nil
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"odm_texturing/odm_textured_model_geo.obj": FormatObj,
		"odm_texturing/odm_textured_model.mtl":     FormatMtl,
		"odm_orthophoto/odm_orthophoto.TIF":        FormatTif,
		"photo.tiff":                               FormatTif,
		"photo.jpeg":                               FormatJpg,
		"cloud.laz":                                FormatLaz,
		"cloud.las":                                FormatLas,
		"report.pdf":                               FormatUnknown,
		"noext":                                    FormatUnknown,
	}
	for p, want := range cases {
		assert.Equal(t, want, FormatFromPath(p), p)
	}
}

func TestFormatExtAndContentType(t *testing.T) {
	assert.Equal(t, "glb", FormatGlb.Ext())
	assert.Equal(t, "model/gltf-binary", FormatGlb.ContentType())
	assert.Equal(t, "image/png", FormatPng.ContentType())
	assert.Equal(t, "application/octet-stream", FormatLaz.ContentType())

	assert.Equal(t, "bin", FormatUnknown.Ext())
	assert.Equal(t, "application/octet-stream", FormatUnknown.ContentType())
	assert.Equal(t, "unknown(0)", FormatUnknown.String())
}

func meshEntries(t *testing.T, files map[string]string) []archive.Entry {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	ar, err := archive.NewFetcher(cannedDownloader{data: buf.Bytes()}).Fetch(context.Background(), "job1")
	require.NoError(t, err)
	return ar.Entries()
}

func TestExtractMeshSubtypes(t *testing.T) {
	entries := meshEntries(t, map[string]string{
		"odm_texturing/odm_textured_model_geo.obj":                     "obj-data",
		"odm_texturing/odm_textured_model_geo.mtl":                     "mtl-data",
		"odm_texturing/odm_textured_model_geo_material0000_map_Kd.png": "png-data",
		"odm_texturing/odm_textured_model_geo_material0000_map_Kd.jpg": "jpg-data",
	})

	res, err := ExtractMesh(entries, SubtypeMesh)
	require.NoError(t, err)
	assert.Equal(t, FormatObj, res.Format)
	assert.Equal(t, "model/obj", res.ContentType)
	assert.Equal(t, "obj-data", string(res.Bytes))

	res, err = ExtractMesh(entries, SubtypeMtl)
	require.NoError(t, err)
	assert.Equal(t, FormatMtl, res.Format)
	assert.Equal(t, "mtl-data", string(res.Bytes))

	// png candidate outranks the jpg one
	res, err = ExtractMesh(entries, SubtypeTexture)
	require.NoError(t, err)
	assert.Equal(t, FormatPng, res.Format)
	assert.Equal(t, "png-data", string(res.Bytes))
}

func TestExtractMeshPlyFallback(t *testing.T) {
	entries := meshEntries(t, map[string]string{
		"odm_meshing/odm_mesh.ply": "ply-data",
	})

	res, err := ExtractMesh(entries, SubtypeMesh)
	require.NoError(t, err)
	assert.Equal(t, FormatPly, res.Format)
	assert.Equal(t, "model/ply", res.ContentType)
}

func TestExtractMeshUnknownSubtype(t *testing.T) {
	_, err := ExtractMesh(nil, MeshSubtype("wireframe"))
	assert.ErrorContains(t, err, "unknown mesh subtype")
}

func TestExtractMeshMissing(t *testing.T) {
	entries := meshEntries(t, map[string]string{
		"odm_report/report.pdf": "pdf",
	})
	_, err := ExtractMesh(entries, SubtypeTexture)
	var nf *archive.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "texture", nf.What)
}
