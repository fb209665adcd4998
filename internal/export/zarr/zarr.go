// Package zarr writes stacks to Zarr v3 stores and reads them back.
package zarr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/opera-tools/rastack/pkg/raster"
)

// StoreMetadata describes the stack held by a store (metadata.json at
// the store root).
type StoreMetadata struct {
	FormatVersion string            `json:"format_version"`
	Tags          []string          `json:"tags"`
	CRS           string            `json:"crs"`
	Bounds        Bounds            `json:"bounds"`
	ResolutionX   float64           `json:"resolution_x"`
	ResolutionY   float64           `json:"resolution_y"`
	DataType      string            `json:"data_type"`
	NoData        *float64          `json:"no_data,omitempty"`
	Classes       map[string]string `json:"classes,omitempty"`
	RangeStart    int64             `json:"range_start,omitempty"`
	Transparent   int64             `json:"transparent,omitempty"`
}

// Bounds represents coordinate bounds.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// ArrayMeta represents Zarr v3 array metadata (zarr.json).
type ArrayMeta struct {
	Shape     []int  `json:"shape"`
	DataType  string `json:"data_type"`
	ChunkGrid struct {
		Name          string `json:"name"`
		Configuration struct {
			ChunkShape []int `json:"chunk_shape"`
		} `json:"configuration"`
	} `json:"chunk_grid"`
	ChunkKeyEncoding struct {
		Name          string `json:"name"`
		Configuration struct {
			Separator string `json:"separator"`
		} `json:"configuration"`
	} `json:"chunk_key_encoding"`
	FillValue interface{} `json:"fill_value"`
	Codecs    []struct {
		Name          string                 `json:"name"`
		Configuration map[string]interface{} `json:"configuration"`
	} `json:"codecs"`
	ZarrFormat int    `json:"zarr_format"`
	NodeType   string `json:"node_type"`
}

const arrayName = "stack"

// Write persists a stack as a Zarr v3 store under dir. Each slice is
// one zstd-compressed chunk keyed c/<t>/0/0. A relabel map, when
// given, records the class table in the store metadata.
func Write(dir string, s *raster.Stack, m *raster.RelabelMap) error {
	if s.Len() == 0 {
		return fmt.Errorf("cannot export empty stack")
	}
	w, h := s.Shape()

	arrayDir := filepath.Join(dir, arrayName)
	chunkDir := filepath.Join(arrayDir, "c")
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	meta := StoreMetadata{
		FormatVersion: "1.0",
		Tags:          s.Tags,
		CRS:           s.CRS,
		Bounds: Bounds{
			MinX: s.Bounds.MinX, MaxX: s.Bounds.MaxX,
			MinY: s.Bounds.MinY, MaxY: s.Bounds.MaxY,
		},
		ResolutionX: s.Res.X,
		ResolutionY: s.Res.Y,
		DataType:    s.Slices[0].DType().String(),
		NoData:      s.NoData,
	}
	if m != nil {
		meta.Classes = make(map[string]string, len(m.Codes))
		for _, code := range m.Codes {
			nv, _ := m.NewValue(code)
			meta.Classes[strconv.FormatInt(code, 10)] = strconv.FormatInt(nv, 10)
		}
		meta.RangeStart = m.RangeStart
		meta.Transparent = m.TransparentValue()
	}
	if err := writeJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return err
	}

	var am ArrayMeta
	am.Shape = []int{s.Len(), h, w}
	am.DataType = s.Slices[0].DType().String()
	am.ChunkGrid.Name = "regular"
	am.ChunkGrid.Configuration.ChunkShape = []int{1, h, w}
	am.ChunkKeyEncoding.Name = "default"
	am.ChunkKeyEncoding.Configuration.Separator = "/"
	am.FillValue = 0
	am.Codecs = []struct {
		Name          string                 `json:"name"`
		Configuration map[string]interface{} `json:"configuration"`
	}{
		{Name: "bytes", Configuration: map[string]interface{}{"endian": "little"}},
		{Name: "zstd", Configuration: map[string]interface{}{"level": 3}},
	}
	am.ZarrFormat = 3
	am.NodeType = "array"
	if err := writeJSON(filepath.Join(arrayDir, "zarr.json"), am); err != nil {
		return err
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	for t, g := range s.Slices {
		chunkPath := filepath.Join(chunkDir, strconv.Itoa(t), "0")
		if err := os.MkdirAll(chunkPath, 0755); err != nil {
			return fmt.Errorf("failed to create chunk dir: %w", err)
		}
		compressed := encoder.EncodeAll(g.Bytes(), nil)
		if err := os.WriteFile(filepath.Join(chunkPath, "0"), compressed, 0644); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", t, err)
		}
	}
	return nil
}

// Read loads a store written by Write.
func Read(dir string) (*raster.Stack, *StoreMetadata, error) {
	var meta StoreMetadata
	if err := readJSON(filepath.Join(dir, "metadata.json"), &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to load metadata.json: %w", err)
	}

	arrayDir := filepath.Join(dir, arrayName)
	var am ArrayMeta
	if err := readJSON(filepath.Join(arrayDir, "zarr.json"), &am); err != nil {
		return nil, nil, fmt.Errorf("failed to load zarr.json: %w", err)
	}
	if len(am.Shape) != 3 {
		return nil, nil, fmt.Errorf("unexpected array shape: %v", am.Shape)
	}
	dt, err := raster.DTypeFromString(am.DataType)
	if err != nil {
		return nil, nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	n, h, w := am.Shape[0], am.Shape[1], am.Shape[2]
	if len(meta.Tags) != n {
		return nil, nil, fmt.Errorf("tag count %d disagrees with array shape %d", len(meta.Tags), n)
	}

	slices := make([]*raster.Grid, n)
	for t := 0; t < n; t++ {
		compressed, err := os.ReadFile(filepath.Join(arrayDir, "c", strconv.Itoa(t), "0", "0"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read chunk %d: %w", t, err)
		}
		data, err := decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd decompress failed for chunk %d: %w", t, err)
		}
		g, err := raster.NewGridFromBytes(dt, w, h, data)
		if err != nil {
			return nil, nil, fmt.Errorf("chunk %d: %w", t, err)
		}
		slices[t] = g
	}

	s := &raster.Stack{
		Tags:   meta.Tags,
		Slices: slices,
		Res:    raster.Resolution{X: meta.ResolutionX, Y: meta.ResolutionY},
		Bounds: raster.Bounds{
			MinX: meta.Bounds.MinX, MaxX: meta.Bounds.MaxX,
			MinY: meta.Bounds.MinY, MaxY: meta.Bounds.MaxY,
		},
		CRS:    meta.CRS,
		NoData: meta.NoData,
	}
	return s, &meta, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
