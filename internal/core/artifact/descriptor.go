package artifact

// Type names a semantic engineering output of a processing job.
type Type string

const (
	TypeOrthomosaic Type = "orthomosaic"
	TypePointCloud  Type = "pointcloud"
	TypeMesh        Type = "mesh"
	TypeTexture     Type = "texture"
	TypeMaterial    Type = "material"
)

// Descriptor binds an artifact type to its ordered candidate paths
// inside the result archive. Candidates are tried in order; the first
// existing entry wins.
type Descriptor struct {
	Type       Type
	Keyword    string
	Candidates []string
}

// Candidate path tables mirror the output layout of the ODM pipeline.
// Order matters: preferred representations come first.
var (
	Orthomosaic = Descriptor{
		Type:    TypeOrthomosaic,
		Keyword: "ortho",
		Candidates: []string{
			"odm_orthophoto/odm_orthophoto.png",
			"odm_orthophoto/odm_orthophoto.tif",
			"odm_orthophoto/odm_orthophoto.jpg",
		},
	}

	PointCloud = Descriptor{
		Type:    TypePointCloud,
		Keyword: "georef",
		Candidates: []string{
			"odm_georeferencing/odm_georeferenced_model.laz",
			"odm_georeferencing/odm_georeferenced_model.las",
			"odm_filterpoints/point_cloud.ply",
			"opensfm/undistorted/depthmaps/merged.ply",
		},
	}

	Mesh = Descriptor{
		Type:    TypeMesh,
		Keyword: "mesh",
		Candidates: []string{
			"odm_texturing/odm_textured_model_geo.obj",
			"odm_texturing/odm_textured_model.obj",
			"odm_texturing/odm_textured_model_geo.glb",
			"odm_meshing/odm_mesh.ply",
		},
	}

	Texture = Descriptor{
		Type:    TypeTexture,
		Keyword: "texturing",
		Candidates: []string{
			"odm_texturing/odm_textured_model_geo_material0000_map_Kd.png",
			"odm_texturing/odm_textured_model_material0000_map_Kd.png",
			"odm_texturing/odm_textured_model_geo_material0000_map_Kd.jpg",
			"odm_texturing/odm_textured_model_material0000_map_Kd.jpg",
		},
	}

	Material = Descriptor{
		Type:    TypeMaterial,
		Keyword: "texturing",
		Candidates: []string{
			"odm_texturing/odm_textured_model_geo.mtl",
			"odm_texturing/odm_textured_model.mtl",
		},
	}
)
