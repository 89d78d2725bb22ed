package artifact

import (
	"fmt"
	"path"
	"strings"
)

// Format is the closed set of file formats the extraction pipeline
// understands. Decode paths switch on this type; extension strings are
// parsed exactly once, at the archive boundary.
type Format int

const (
	FormatUnknown Format = iota
	FormatObj
	FormatMtl
	FormatPly
	FormatGlb
	FormatPng
	FormatJpg
	FormatLas
	FormatLaz
	FormatTif
)

var formatExts = map[Format]string{
	FormatObj: "obj",
	FormatMtl: "mtl",
	FormatPly: "ply",
	FormatGlb: "glb",
	FormatPng: "png",
	FormatJpg: "jpg",
	FormatLas: "las",
	FormatLaz: "laz",
	FormatTif: "tif",
}

var formatContentTypes = map[Format]string{
	FormatObj: "model/obj",
	FormatMtl: "model/mtl",
	FormatPly: "model/ply",
	FormatGlb: "model/gltf-binary",
	FormatPng: "image/png",
	FormatJpg: "image/jpeg",
	FormatLas: "application/octet-stream",
	FormatLaz: "application/octet-stream",
	FormatTif: "image/tiff",
}

// FormatFromPath classifies an archive path by extension.
func FormatFromPath(p string) Format {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	switch ext {
	case "obj":
		return FormatObj
	case "mtl":
		return FormatMtl
	case "ply":
		return FormatPly
	case "glb":
		return FormatGlb
	case "png":
		return FormatPng
	case "jpg", "jpeg":
		return FormatJpg
	case "las":
		return FormatLas
	case "laz":
		return FormatLaz
	case "tif", "tiff":
		return FormatTif
	default:
		return FormatUnknown
	}
}

// Ext returns the canonical extension without the dot.
func (f Format) Ext() string {
	if ext, ok := formatExts[f]; ok {
		return ext
	}
	return "bin"
}

// ContentType returns the MIME type served for this format.
func (f Format) ContentType() string {
	if ct, ok := formatContentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

func (f Format) String() string {
	if ext, ok := formatExts[f]; ok {
		return ext
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}
