// Package extract serves job artifacts to the browser: orthomosaic
// rasters as PNG, point clouds as viewer buffers or raw downloads, and
// textured-mesh files verbatim. Every endpoint runs the same pipeline:
// cache probe, one archive download, candidate-path resolution, decode,
// cache write, serve.
package extract

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/victoryforphil/cursed-next-odm/internal/config"
	"github.com/victoryforphil/cursed-next-odm/internal/core/archive"
	"github.com/victoryforphil/cursed-next-odm/internal/core/artifact"
	"github.com/victoryforphil/cursed-next-odm/internal/core/cache"
	"github.com/victoryforphil/cursed-next-odm/internal/core/pointcloud"
	"github.com/victoryforphil/cursed-next-odm/internal/core/raster"
	"github.com/victoryforphil/cursed-next-odm/internal/core/util"
	"github.com/victoryforphil/cursed-next-odm/internal/server/api/response"
)

type Handler struct {
	fetcher *archive.Fetcher

	ortho  cache.Store
	points cache.Store
	mesh   cache.Store

	defaultPoints int
	maxPoints     int
}

func NewHandler(fetcher *archive.Fetcher, cfg *config.Config) *Handler {
	ttl := cfg.CacheTTL()
	return &Handler{
		fetcher:       fetcher,
		ortho:         cache.NewDisk(cfg.Cache.Dir, "orthophoto", ttl),
		points:        cache.NewDisk(cfg.Cache.Dir, "pointcloud", ttl),
		mesh:          cache.NewDisk(cfg.Cache.Dir, "model", ttl),
		defaultPoints: cfg.PointCloud.DefaultPoints,
		maxPoints:     cfg.PointCloud.MaxPoints,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/orthomosaic/:jobId", h.Orthomosaic)
	e.GET("/pointcloud/:jobId", h.PointCloud)
	e.GET("/mesh/:jobId", h.Mesh)
}

func infoRequested(c echo.Context) bool {
	return c.QueryParam("info") == "true"
}

func anyCached(s cache.Store, jobID string, keys []string) bool {
	for _, key := range keys {
		if _, ok := s.Get(jobID, key); ok {
			return true
		}
	}
	return false
}

func setCache(c echo.Context, hit bool) {
	if hit {
		c.Response().Header().Set("X-Cache", "HIT")
	} else {
		c.Response().Header().Set("X-Cache", "MISS")
	}
}

// resolve runs the shared front half of the pipeline: one archive
// download, then first-exact-match over the descriptor's candidates.
func (h *Handler) resolve(c echo.Context, jobID string, desc artifact.Descriptor) (archive.Entry, error) {
	ar, err := h.fetcher.Fetch(c.Request().Context(), jobID)
	if err != nil {
		return archive.Entry{}, err
	}
	return archive.Resolve(ar.Entries(), string(desc.Type), desc.Keyword, desc.Candidates)
}

// Orthomosaic serves the job's orthophoto as a browser image. TIFF
// output is transcoded to PNG; PNG and JPEG pass through.
func (h *Handler) Orthomosaic(c echo.Context) error {
	jobID := c.Param("jobId")
	info := infoRequested(c)

	if !info {
		for _, key := range []string{"png", "jpg"} {
			if p, ok := h.ortho.Get(jobID, key); ok {
				setCache(c, true)
				c.Response().Header().Set("Cache-Control", "public, max-age=3600")
				return c.File(p)
			}
		}
	}

	entry, err := h.resolve(c, jobID, artifact.Orthomosaic)
	if err != nil {
		if info {
			return response.Unavailable(c, err)
		}
		return response.Error(c, err)
	}

	format := artifact.FormatFromPath(entry.Path)
	if info {
		outExt := "png"
		if format == artifact.FormatJpg {
			outExt = "jpg"
		}
		return response.Available(c, outExt, fmt.Sprintf("orthophoto_%s.%s", jobID, outExt),
			entry.Path, entry.Size, anyCached(h.ortho, jobID, []string{"png", "jpg"}))
	}

	data, err := entry.Bytes()
	if err != nil {
		return response.Error(c, err)
	}

	key := "png"
	contentType := "image/png"
	switch format {
	case artifact.FormatTif:
		if data, err = raster.ToPNG(data); err != nil {
			return response.Error(c, err)
		}
	case artifact.FormatPng:
	case artifact.FormatJpg:
		key, contentType = "jpg", "image/jpeg"
	default:
		return response.Error(c, fmt.Errorf("orthophoto: unsupported format %s", format))
	}

	if _, err := h.ortho.Put(jobID, key, data); err != nil {
		log.Warn().Err(err).Str("job", jobID).Msg("orthophoto cache write failed")
	}
	log.Info().Str("job", jobID).Str("size", util.FormatBytes(uint64(len(data)))).Msg("orthophoto served")
	setCache(c, false)
	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.Blob(http.StatusOK, contentType, data)
}

// PointCloud serves the job's point cloud. Three modes: info probe,
// decoded viewer buffer (format=points), raw file download (default).
func (h *Handler) PointCloud(c echo.Context) error {
	jobID := c.Param("jobId")
	if infoRequested(c) {
		entry, err := h.resolve(c, jobID, artifact.PointCloud)
		if err != nil {
			return response.Unavailable(c, err)
		}
		ext := artifact.FormatFromPath(entry.Path).Ext()
		return response.Available(c, ext, fmt.Sprintf("pointcloud_%s.%s", jobID, ext),
			entry.Path, entry.Size, anyCached(h.points, jobID, []string{"laz", "las", "ply"}))
	}

	if c.QueryParam("format") == "points" {
		return h.pointBuffer(c, jobID)
	}
	return h.pointCloudRaw(c, jobID)
}

func (h *Handler) pointBudget(c echo.Context) int {
	n := h.defaultPoints
	if v := c.QueryParam("maxPoints"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if h.maxPoints > 0 && n > h.maxPoints {
		n = h.maxPoints
	}
	return n
}

func (h *Handler) pointBuffer(c echo.Context, jobID string) error {
	maxPoints := h.pointBudget(c)
	key := fmt.Sprintf("points.%d.bin", maxPoints)

	if p, ok := h.points.Get(jobID, key); ok {
		wire, err := os.ReadFile(p)
		if err == nil && len(wire) >= 4 {
			setCache(c, true)
			c.Response().Header().Set("X-Point-Count", strconv.Itoa(wireCount(wire)))
			return c.Blob(http.StatusOK, echo.MIMEOctetStream, wire)
		}
		log.Warn().Err(err).Str("path", p).Msg("cached point buffer unreadable, rebuilding")
	}

	entry, err := h.resolve(c, jobID, artifact.PointCloud)
	if err != nil {
		return response.Error(c, err)
	}
	data, err := entry.Bytes()
	if err != nil {
		return response.Error(c, err)
	}

	var buf *pointcloud.Buffer
	switch format := artifact.FormatFromPath(entry.Path); format {
	case artifact.FormatLaz:
		buf, err = pointcloud.DecodeLAZ(data, maxPoints)
	case artifact.FormatLas:
		buf, err = pointcloud.DecodeLAS(data, maxPoints)
	default:
		err = fmt.Errorf("pointcloud: no point decoder for %s, download the raw file instead", format)
	}
	if err != nil {
		return response.Error(c, err)
	}

	wire := buf.EncodeWire()
	if _, err := h.points.Put(jobID, key, wire); err != nil {
		log.Warn().Err(err).Str("job", jobID).Msg("point buffer cache write failed")
	}
	log.Info().Str("job", jobID).Int("points", buf.Count).
		Str("size", util.FormatBytes(uint64(len(wire)))).Msg("point buffer served")
	setCache(c, false)
	c.Response().Header().Set("X-Point-Count", strconv.Itoa(buf.Count))
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, wire)
}

func (h *Handler) pointCloudRaw(c echo.Context, jobID string) error {
	for _, key := range []string{"laz", "las", "ply"} {
		if p, ok := h.points.Get(jobID, key); ok {
			setCache(c, true)
			return c.Attachment(p, fmt.Sprintf("pointcloud_%s.%s", jobID, key))
		}
	}

	entry, err := h.resolve(c, jobID, artifact.PointCloud)
	if err != nil {
		return response.Error(c, err)
	}
	data, err := entry.Bytes()
	if err != nil {
		return response.Error(c, err)
	}

	format := artifact.FormatFromPath(entry.Path)
	filename := fmt.Sprintf("pointcloud_%s.%s", jobID, format.Ext())
	if _, err := h.points.Put(jobID, format.Ext(), data); err != nil {
		log.Warn().Err(err).Str("job", jobID).Msg("raw point cloud cache write failed")
	}
	setCache(c, false)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, format.ContentType(), data)
}

// meshCacheKeys lists, per subtype, the cache keys a previous request
// may have written. Keys carry the extension because the bundle's
// preferred representation varies by job.
var meshCacheKeys = map[artifact.MeshSubtype][]string{
	artifact.SubtypeMesh:    {"mesh.obj", "mesh.glb", "mesh.ply"},
	artifact.SubtypeTexture: {"texture.png", "texture.jpg"},
	artifact.SubtypeMtl:     {"mtl.mtl"},
}

// Mesh serves one file of the textured-mesh bundle verbatim. The type
// query selects mesh (default), texture or mtl.
func (h *Handler) Mesh(c echo.Context) error {
	jobID := c.Param("jobId")
	subtype := artifact.MeshSubtype(c.QueryParam("type"))
	if subtype == "" {
		subtype = artifact.SubtypeMesh
	}
	keys, ok := meshCacheKeys[subtype]
	if !ok {
		return response.Error(c, fmt.Errorf("unknown mesh type %q", subtype))
	}
	info := infoRequested(c)

	if !info {
		for _, key := range keys {
			if p, ok := h.mesh.Get(jobID, key); ok {
				setCache(c, true)
				// mime-by-extension would serve obj/mtl as octet-stream
				c.Response().Header().Set(echo.HeaderContentType,
					artifact.FormatFromPath(key).ContentType())
				return c.File(p)
			}
		}
	}

	ar, err := h.fetcher.Fetch(c.Request().Context(), jobID)
	if err != nil {
		if info {
			return response.Unavailable(c, err)
		}
		return response.Error(c, err)
	}
	res, err := artifact.ExtractMesh(ar.Entries(), subtype)
	if err != nil {
		if info {
			return response.Unavailable(c, err)
		}
		return response.Error(c, err)
	}

	if info {
		ext := res.Format.Ext()
		return response.Available(c, ext, fmt.Sprintf("%s_%s.%s", subtype, jobID, ext),
			res.Path, uint64(len(res.Bytes)), anyCached(h.mesh, jobID, keys))
	}

	key := fmt.Sprintf("%s.%s", subtype, res.Format.Ext())
	if _, err := h.mesh.Put(jobID, key, res.Bytes); err != nil {
		log.Warn().Err(err).Str("job", jobID).Msg("mesh cache write failed")
	}
	log.Info().Str("job", jobID).Str("type", string(subtype)).
		Str("size", util.FormatBytes(uint64(len(res.Bytes)))).Msg("mesh file served")
	setCache(c, false)
	return c.Blob(http.StatusOK, res.ContentType, res.Bytes)
}

func wireCount(wire []byte) int {
	return int(uint32(wire[0]) | uint32(wire[1])<<8 | uint32(wire[2])<<16 | uint32(wire[3])<<24)
}
