package world

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed maps/default.yaml
var defaultMap []byte

// MapFile 地图文件格式（构建期制作，运行时只加载一次）
type MapFile struct {
	CellSize float64  `yaml:"cell_size"`
	Width    float64  `yaml:"width"`
	Height   float64  `yaml:"height"`
	Tiles    []string `yaml:"tiles"`
}

// DecodeMap 解析 YAML 地图；width/height 缺省时取网格尺寸
func DecodeMap(r io.Reader) (*Grid, error) {
	var mf MapFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("world: decode map: %w", err)
	}
	if mf.CellSize == 0 {
		mf.CellSize = DefaultCellSize
	}
	g, err := ParseGrid(mf.Tiles, mf.CellSize)
	if err != nil {
		return nil, err
	}
	return g.WithBounds(mf.Width, mf.Height), nil
}

// LoadMap 从文件加载地图
func LoadMap(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := DecodeMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Default 内置地图：50x48 格，外圈为墙，中间散落若干障碍
func Default() *Grid {
	g, err := DecodeMap(bytes.NewReader(defaultMap))
	if err != nil {
		panic(err)
	}
	return g
}
