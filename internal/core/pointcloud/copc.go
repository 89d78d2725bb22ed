package pointcloud

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/victoryforphil/cursed-next-odm/internal/core/pointcloud/laszip"
)

// copcStrategy walks the COPC octree hierarchy and decodes nodes
// shallowest-first, which yields a coarse-to-fine subset of the cloud
// without touching the deeper chunks once the point budget is met.
type copcStrategy struct{}

func (copcStrategy) Name() string { return "copc" }

// copcInfo is the payload of the COPC info VLR.
type copcInfo struct {
	Center     [3]float64
	HalfSize   float64
	Spacing    float64
	RootOffset uint64
	RootSize   uint64
}

// hierEntry is one 32-byte record of a COPC hierarchy page. A point
// count of -1 marks a child page reference instead of a chunk.
type hierEntry struct {
	Level      int32
	Offset     uint64
	ByteCount  int32
	PointCount int32
}

const maxHierarchyPages = 4096

func (copcStrategy) Decode(data []byte, maxPoints int) (*Buffer, error) {
	f, err := laszip.Open(data)
	if err != nil {
		return nil, err
	}
	info, err := findCopcInfo(f.VLRs)
	if err != nil {
		return nil, err
	}

	nodes, err := walkHierarchy(data, info.RootOffset, info.RootSize)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("copc: hierarchy has no populated nodes")
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Level < nodes[j].Level })

	var (
		pts  []laszip.Point
		sums [3]float64
	)
	for _, n := range nodes {
		if maxPoints > 0 && len(pts) >= maxPoints {
			break
		}
		end := n.Offset + uint64(n.ByteCount)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("copc: node chunk at %d+%d beyond file", n.Offset, n.ByteCount)
		}
		chunk, err := laszip.DecodeChunk(f.Items, f.Compressor, data[n.Offset:end], int(n.PointCount))
		if err != nil {
			return nil, fmt.Errorf("copc: level %d node: %w", n.Level, err)
		}
		// Trim before summing so the center stays the mean of the
		// points actually emitted.
		if maxPoints > 0 && len(pts)+len(chunk) > maxPoints {
			chunk = chunk[:maxPoints-len(pts)]
		}
		for _, p := range chunk {
			sums[0] += float64(p.X)*f.Header.Scale[0] + f.Header.Offset[0]
			sums[1] += float64(p.Y)*f.Header.Scale[1] + f.Header.Offset[1]
			sums[2] += float64(p.Z)*f.Header.Scale[2] + f.Header.Offset[2]
		}
		pts = append(pts, chunk...)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("copc: no points decoded")
	}

	// Center on the mean of everything decoded rather than the octree
	// cube, which is padded well past the data extent.
	center := [3]float64{}
	total := float64(len(pts))
	for i := range center {
		center[i] = sums[i] / total
	}

	buf := &Buffer{}
	buf.appendDecoded(pts, f.Header, center)
	return buf, nil
}

func findCopcInfo(vlrs []laszip.VLR) (copcInfo, error) {
	var info copcInfo
	for _, v := range vlrs {
		if v.UserID != "copc" || v.RecordID != 1 {
			continue
		}
		if len(v.Data) < 64 {
			return info, fmt.Errorf("copc: info VLR too short (%d bytes)", len(v.Data))
		}
		le := binary.LittleEndian
		f64 := func(off int) float64 { return math.Float64frombits(le.Uint64(v.Data[off : off+8])) }
		info.Center = [3]float64{f64(0), f64(8), f64(16)}
		info.HalfSize = f64(24)
		info.Spacing = f64(32)
		info.RootOffset = le.Uint64(v.Data[40:48])
		info.RootSize = le.Uint64(v.Data[48:56])
		return info, nil
	}
	return info, fmt.Errorf("copc: no info VLR")
}

// walkHierarchy loads hierarchy pages breadth-first and returns every
// populated node entry.
func walkHierarchy(data []byte, rootOffset, rootSize uint64) ([]hierEntry, error) {
	type page struct{ offset, size uint64 }
	queue := []page{{rootOffset, rootSize}}
	var nodes []hierEntry
	pages := 0

	for len(queue) > 0 {
		pg := queue[0]
		queue = queue[1:]
		pages++
		if pages > maxHierarchyPages {
			return nil, fmt.Errorf("copc: hierarchy exceeds %d pages", maxHierarchyPages)
		}
		end := pg.offset + pg.size
		if end > uint64(len(data)) || pg.size%32 != 0 {
			return nil, fmt.Errorf("copc: bad hierarchy page at %d (%d bytes)", pg.offset, pg.size)
		}
		le := binary.LittleEndian
		for off := pg.offset; off < end; off += 32 {
			e := hierEntry{
				Level:      int32(le.Uint32(data[off : off+4])),
				Offset:     le.Uint64(data[off+16 : off+24]),
				ByteCount:  int32(le.Uint32(data[off+24 : off+28])),
				PointCount: int32(le.Uint32(data[off+28 : off+32])),
			}
			switch {
			case e.PointCount == -1:
				queue = append(queue, page{e.Offset, uint64(e.ByteCount)})
			case e.PointCount > 0:
				nodes = append(nodes, e)
			}
		}
	}
	return nodes, nil
}
