package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/victoryforphil/cursed-next-odm/internal/config"
	"github.com/victoryforphil/cursed-next-odm/internal/core/archive"
)

type zipDownloader struct {
	data  []byte
	calls int
}

func (z *zipDownloader) DownloadArchive(ctx context.Context, jobID string) ([]byte, error) {
	z.calls++
	return z.data, nil
}

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// newTestServer wires a handler over a canned archive with caches in a
// fresh temp dir.
func newTestServer(t *testing.T, archiveZip []byte) (*echo.Echo, *zipDownloader) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Cache.Dir = t.TempDir()
	cfg.PointCloud.DefaultPoints = 1000
	cfg.PointCloud.MaxPoints = 5000

	dl := &zipDownloader{data: archiveZip}
	e := echo.New()
	NewHandler(archive.NewFetcher(dl), cfg).RegisterRoutes(e)
	return e, dl
}

func doGET(e *echo.Echo, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func encodeTIFF(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))
	return buf.Bytes()
}

// buildLAS emits a minimal format-2 LAS file with the given world
// coordinates and colors.
func buildLAS(t *testing.T, points [][3]float64, colors [][3]uint16) []byte {
	t.Helper()
	const headerSize = 227
	const recordLen = 26
	le := binary.LittleEndian

	hdr := make([]byte, headerSize)
	copy(hdr, "LASF")
	hdr[24], hdr[25] = 1, 2
	le.PutUint16(hdr[94:], headerSize)
	le.PutUint32(hdr[96:], headerSize)
	hdr[104] = 2
	le.PutUint16(hdr[105:], recordLen)
	le.PutUint32(hdr[107:], uint32(len(points)))
	scale := 0.001
	for i := 0; i < 3; i++ {
		le.PutUint64(hdr[131+i*8:], math.Float64bits(scale))
		le.PutUint64(hdr[155+i*8:], math.Float64bits(0))
	}
	minW := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxW := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range points {
		for i := 0; i < 3; i++ {
			minW[i] = math.Min(minW[i], p[i])
			maxW[i] = math.Max(maxW[i], p[i])
		}
	}
	for i := 0; i < 3; i++ {
		le.PutUint64(hdr[179+i*16:], math.Float64bits(maxW[i]))
		le.PutUint64(hdr[187+i*16:], math.Float64bits(minW[i]))
	}

	body := make([]byte, 0, len(points)*recordLen)
	for i, p := range points {
		rec := make([]byte, recordLen)
		le.PutUint32(rec[0:], uint32(int32(math.Round(p[0]/scale))))
		le.PutUint32(rec[4:], uint32(int32(math.Round(p[1]/scale))))
		le.PutUint32(rec[8:], uint32(int32(math.Round(p[2]/scale))))
		le.PutUint16(rec[20:], colors[i][0])
		le.PutUint16(rec[22:], colors[i][1])
		le.PutUint16(rec[24:], colors[i][2])
		body = append(body, rec...)
	}
	return append(hdr, body...)
}

func TestOrthomosaicTranscodesTIFF(t *testing.T) {
	e, dl := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_orthophoto/odm_orthophoto.tif": encodeTIFF(t),
	}))

	rec := doGET(e, "/orthomosaic/job1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	// second request is served from the disk cache
	rec = doGET(e, "/orthomosaic/job1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, dl.calls)
}

func TestOrthomosaicMissingIsError(t *testing.T) {
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_report/report.pdf": []byte("pdf"),
	}))

	rec := doGET(e, "/orthomosaic/job1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "tried:")
	assert.Contains(t, body["error"], "odm_orthophoto/odm_orthophoto.tif")
}

func TestOrthomosaicInfoUnavailable(t *testing.T) {
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_report/report.pdf": []byte("pdf"),
	}))

	rec := doGET(e, "/orthomosaic/job1?info=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Available bool   `json:"available"`
		Error     string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Available)
	assert.NotEmpty(t, body.Error)
}

func TestPointCloudInfo(t *testing.T) {
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_georeferencing/odm_georeferenced_model.laz": []byte("laz-bytes"),
	}))

	rec := doGET(e, "/pointcloud/job123?info=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Available     bool   `json:"available"`
		Format        string `json:"format"`
		Filename      string `json:"filename"`
		Path          string `json:"path"`
		Size          uint64 `json:"size"`
		SizeFormatted string `json:"sizeFormatted"`
		Cached        bool   `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Available)
	assert.Equal(t, "laz", body.Format)
	assert.Equal(t, "pointcloud_job123.laz", body.Filename)
	assert.Equal(t, "odm_georeferencing/odm_georeferenced_model.laz", body.Path)
	assert.Equal(t, uint64(len("laz-bytes")), body.Size)
	assert.NotEmpty(t, body.SizeFormatted)
	assert.False(t, body.Cached)

	// a raw download populates the cache, which the next probe reports
	doGET(e, "/pointcloud/job123")
	rec = doGET(e, "/pointcloud/job123?info=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Cached)
}

func TestPointCloudDecodedBuffer(t *testing.T) {
	las := buildLAS(t,
		[][3]float64{{0, 0, 0}, {2, 4, 6}, {1, 2, 3}},
		[][3]uint16{{65535, 0, 0}, {0, 65535, 0}, {0, 0, 65535}},
	)
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_georeferencing/odm_georeferenced_model.las": las,
	}))

	rec := doGET(e, "/pointcloud/job1?format=points")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-Point-Count"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	wire := rec.Body.Bytes()
	require.Len(t, wire, 4+3*12+3*3)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(wire[:4]))

	// cached variant replays with the same count header
	rec = doGET(e, "/pointcloud/job1?format=points")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "3", rec.Header().Get("X-Point-Count"))
}

func TestPointCloudMaxPointsTruncates(t *testing.T) {
	pts := make([][3]float64, 10)
	cols := make([][3]uint16, 10)
	for i := range pts {
		pts[i] = [3]float64{float64(i), 0, 0}
	}
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_georeferencing/odm_georeferenced_model.las": buildLAS(t, pts, cols),
	}))

	rec := doGET(e, "/pointcloud/job1?format=points&maxPoints=4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("X-Point-Count"))
}

func TestPointCloudRawDownload(t *testing.T) {
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_georeferencing/odm_georeferenced_model.laz": []byte("laz-bytes"),
	}))

	rec := doGET(e, "/pointcloud/job9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="pointcloud_job9.laz"`,
		rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "laz-bytes", rec.Body.String())
}

func TestMeshSubtypeSelection(t *testing.T) {
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_texturing/odm_textured_model_geo.obj": []byte("obj-data"),
		"odm_texturing/odm_textured_model_geo.mtl": []byte("mtl-data"),
	}))

	rec := doGET(e, "/mesh/job1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "model/obj", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "obj-data", rec.Body.String())

	rec = doGET(e, "/mesh/job1?type=mtl")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "model/mtl", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "mtl-data", rec.Body.String())

	// cache hits keep the model content type instead of mime-by-extension
	rec = doGET(e, "/mesh/job1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "model/obj", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "obj-data", rec.Body.String())
}

func TestMeshInfoAvailable(t *testing.T) {
	e, _ := newTestServer(t, buildZip(t, map[string][]byte{
		"odm_texturing/odm_textured_model_geo.obj": []byte("obj-data"),
	}))

	rec := doGET(e, "/mesh/job1?info=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Available bool   `json:"available"`
		Format    string `json:"format"`
		Filename  string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Available)
	assert.Equal(t, "obj", body.Format)
	assert.Equal(t, "mesh_job1.obj", body.Filename)
}

func TestMeshUnknownType(t *testing.T) {
	e, _ := newTestServer(t, buildZip(t, nil))

	rec := doGET(e, "/mesh/job1?type=wireframe")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "unknown mesh type")
}
