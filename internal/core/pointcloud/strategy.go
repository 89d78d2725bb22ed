package pointcloud

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/victoryforphil/cursed-next-odm/internal/core/pointcloud/laszip"
)

// Strategy is one way of getting points out of a LAZ payload.
type Strategy interface {
	Name() string
	Decode(data []byte, maxPoints int) (*Buffer, error)
}

// strategies in preference order: the COPC hierarchy gives a spatially
// balanced subset cheaply, the sequential reader handles plain LAZ.
var lazStrategies = []Strategy{copcStrategy{}, sequentialStrategy{}}

// DecodeLAZ tries each strategy in order and returns the first decoded
// buffer, or an error naming why every strategy passed.
func DecodeLAZ(data []byte, maxPoints int) (*Buffer, error) {
	var reasons []string
	for _, s := range lazStrategies {
		buf, err := s.Decode(data, maxPoints)
		if err == nil {
			log.Debug().Str("strategy", s.Name()).Int("points", buf.Count).Msg("laz decoded")
			return buf, nil
		}
		log.Debug().Str("strategy", s.Name()).Err(err).Msg("laz strategy passed")
		reasons = append(reasons, fmt.Sprintf("%s: %v", s.Name(), err))
	}
	return nil, fmt.Errorf("decode laz: %s", strings.Join(reasons, "; "))
}

// sequentialStrategy reads the chunked point stream front to back.
type sequentialStrategy struct{}

func (sequentialStrategy) Name() string { return "laszip" }

func (sequentialStrategy) Decode(data []byte, maxPoints int) (*Buffer, error) {
	f, err := laszip.Open(data)
	if err != nil {
		return nil, err
	}
	pts, err := f.ReadPoints(maxPoints)
	if err != nil {
		return nil, err
	}
	buf := &Buffer{}
	buf.appendDecoded(pts, f.Header, boundsCenter(f.Header))
	return buf, nil
}
