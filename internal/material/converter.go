// Package material maps extracted material properties onto the target
// shading model. The converter is a pluggable collaborator: the export
// pipeline checks for one before the materials phase and degrades gracefully
// (phase skipped with a warning) when none is supplied.
package material

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/pkg/scene"
)

// Strategy selects how much source shading data survives conversion.
type Strategy int

const (
	// StrategyGeneric converts only the normalized property set.
	StrategyGeneric Strategy = iota
	// StrategyVendorPreserving additionally copies the vendor passthrough
	// bag into the target material's extras so a compatible renderer can
	// recover full fidelity.
	StrategyVendorPreserving
)

// String returns the strategy's configuration name.
func (s Strategy) String() string {
	if s == StrategyVendorPreserving {
		return "vendor-preserving"
	}
	return "generic"
}

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "generic":
		return StrategyGeneric, nil
	case "vendor-preserving", "vendor":
		return StrategyVendorPreserving, nil
	default:
		return StrategyGeneric, fmt.Errorf("unknown material strategy %q", s)
	}
}

// Converter converts one extracted material into the target document,
// returning the target material index.
type Converter interface {
	Convert(doc *gltf.Document, mat *scene.MaterialData, strategy Strategy) (uint32, error)
}

// PBRConverter is the default Converter: normalized properties become a
// metallic-roughness material. Diffuse texture references are registered as
// target images when the file exists under one of the search paths.
type PBRConverter struct {
	log *zap.Logger

	// TexturePaths are the roots searched for texture file references.
	TexturePaths []string
}

// NewPBRConverter creates the default material converter.
func NewPBRConverter(log *zap.Logger, texturePaths ...string) *PBRConverter {
	if log == nil {
		log = zap.NewNop()
	}
	return &PBRConverter{log: log, TexturePaths: texturePaths}
}

// Convert maps one material onto the target shading model.
func (c *PBRConverter) Convert(doc *gltf.Document, mat *scene.MaterialData, strategy Strategy) (uint32, error) {
	base := [4]float64{
		mat.DiffuseColor[0],
		mat.DiffuseColor[1],
		mat.DiffuseColor[2],
		mat.Opacity,
	}
	rough := mat.Roughness
	metal := mat.Metallic

	out := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &base,
			RoughnessFactor: &rough,
			MetallicFactor:  &metal,
		},
	}
	if mat.Opacity < 0.99 {
		out.AlphaMode = gltf.AlphaBlend
	}

	if strategy == StrategyVendorPreserving && mat.IsVendorSpecific {
		extras := map[string]any{
			"shaderType": mat.ShaderTag,
		}
		if len(mat.Passthrough) > 0 {
			extras["shaderAttributes"] = mat.Passthrough
		}
		out.Extras = extras
	}

	if path, ok := mat.Textures["diffuse"]; ok {
		if texIdx, err := c.addTexture(doc, path); err != nil {
			c.log.Warn("diffuse texture not converted",
				zap.String("material", mat.Name), zap.String("texture", path), zap.Error(err))
		} else {
			out.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: texIdx}
		}
	}

	idx := uint32(len(doc.Materials))
	doc.Materials = append(doc.Materials, out)
	return idx, nil
}

// addTexture registers a texture file as a target image and returns the
// texture index. The image payload goes into the document buffer so every
// output format stays self-contained.
func (c *PBRConverter) addTexture(doc *gltf.Document, ref string) (uint32, error) {
	path, err := c.resolveTexture(ref)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, err := modeler.WriteImage(doc, filepath.Base(path), mimeTypeFor(path), f)
	if err != nil {
		return 0, err
	}
	if len(doc.Samplers) == 0 {
		doc.Samplers = []*gltf.Sampler{{}}
	}
	doc.Textures = append(doc.Textures, &gltf.Texture{
		Sampler: gltf.Index(0),
		Source:  gltf.Index(img),
	})
	return uint32(len(doc.Textures) - 1), nil
}

// resolveTexture locates a texture reference on disk, trying the reference
// itself and then each search path.
func (c *PBRConverter) resolveTexture(ref string) (string, error) {
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	for _, root := range c.TexturePaths {
		candidate := filepath.Join(root, ref)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("texture file %q not found", ref)
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
