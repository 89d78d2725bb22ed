package artifact

import (
	"fmt"

	"github.com/victoryforphil/cursed-next-odm/internal/core/archive"
)

// MeshSubtype selects which file of the textured-mesh bundle to pull.
type MeshSubtype string

const (
	SubtypeMesh    MeshSubtype = "mesh"
	SubtypeTexture MeshSubtype = "texture"
	SubtypeMtl     MeshSubtype = "mtl"
)

// MeshResult is an extracted mesh-bundle file. Bytes pass through the
// archive verbatim; only the content type is inferred.
type MeshResult struct {
	Path        string
	Bytes       []byte
	Format      Format
	ContentType string
}

// ExtractMesh pulls one file of the OBJ/MTL/texture triplet (or the
// GLB/PLY alternatives) from the archive without transcoding.
func ExtractMesh(entries []archive.Entry, subtype MeshSubtype) (*MeshResult, error) {
	var desc Descriptor
	switch subtype {
	case SubtypeMesh:
		desc = Mesh
	case SubtypeTexture:
		desc = Texture
	case SubtypeMtl:
		desc = Material
	default:
		return nil, fmt.Errorf("unknown mesh subtype %q", subtype)
	}

	entry, err := archive.Resolve(entries, string(desc.Type), desc.Keyword, desc.Candidates)
	if err != nil {
		return nil, err
	}
	data, err := entry.Bytes()
	if err != nil {
		return nil, err
	}

	format := FormatFromPath(entry.Path)
	return &MeshResult{
		Path:        entry.Path,
		Bytes:       data,
		Format:      format,
		ContentType: format.ContentType(),
	}, nil
}
