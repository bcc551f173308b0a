package parser

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mikestumbo/sceneport/internal/source"
	"github.com/mikestumbo/sceneport/pkg/scene"
)

// Material defaults applied when a shader does not provide a property.
var (
	defaultDiffuse  = [3]float64{0.8, 0.8, 0.8}
	defaultSpecular = [3]float64{0.2, 0.2, 0.2}
)

// ExtractMaterial extracts a single material by name, dispatching on the
// shader kind. Known shader families populate the normalized property set
// from their attribute names; anything else gets best-effort defaults plus a
// complete passthrough copy of every raw attribute so a compatible renderer
// downstream can recover full fidelity.
func (p *Parser) ExtractMaterial(doc *source.Document, name string) (*scene.MaterialData, error) {
	rec := doc.Material(name)
	if rec == nil {
		return nil, fmt.Errorf("%w: %q", ErrMaterialNotFound, name)
	}

	mat := &scene.MaterialData{
		Name:          rec.Name,
		Shader:        scene.KindForShaderTag(rec.Shader),
		ShaderTag:     rec.Shader,
		DiffuseColor:  defaultDiffuse,
		SpecularColor: defaultSpecular,
		Roughness:     0.5,
		Metallic:      0,
		Opacity:       1,
	}
	if len(rec.Textures) > 0 {
		mat.Textures = make(map[string]string, len(rec.Textures))
		for slot, path := range rec.Textures {
			mat.Textures[slot] = path
		}
	}

	attrs := attributes(rec.Attributes)
	switch mat.Shader {
	case scene.ShaderStandard:
		attrs.color(&mat.DiffuseColor, "base_color", "baseColor", "color")
		attrs.color(&mat.SpecularColor, "specular_color", "specularColor")
		attrs.number(&mat.Roughness, "specular_roughness", "roughness")
		attrs.number(&mat.Metallic, "metalness", "metallic")
		attrs.number(&mat.Opacity, "opacity")

	case scene.ShaderPhong:
		attrs.color(&mat.DiffuseColor, "diffuse_color", "color")
		attrs.color(&mat.SpecularColor, "specular_color", "specularColor")
		cosinePower := 20.0
		attrs.number(&cosinePower, "cosine_power", "cosinePower", "eccentricity")
		mat.Roughness = roughnessFromCosinePower(cosinePower)
		var transparency float64
		if attrs.number(&transparency, "transparency") {
			mat.Opacity = 1 - transparency
		}

	case scene.ShaderPBR:
		attrs.color(&mat.DiffuseColor, "base_color", "baseColor", "albedo")
		attrs.number(&mat.Roughness, "roughness")
		attrs.number(&mat.Metallic, "metallic")
		attrs.number(&mat.Opacity, "opacity")

	default:
		mat.IsVendorSpecific = true
		if len(rec.Attributes) > 0 {
			mat.Passthrough = make(map[string]any, len(rec.Attributes))
			for k, v := range rec.Attributes {
				mat.Passthrough[k] = v
			}
		}
		// Best effort: common names still seed the normalized set.
		attrs.color(&mat.DiffuseColor, "base_color", "diffuse_color", "color")
		attrs.number(&mat.Roughness, "roughness")
		attrs.number(&mat.Opacity, "opacity")
		p.log.Debug("vendor-specific shader captured to passthrough",
			zap.String("material", rec.Name), zap.String("shader", rec.Shader))
	}

	mat.Roughness = clamp01(mat.Roughness)
	mat.Metallic = clamp01(mat.Metallic)
	mat.Opacity = clamp01(mat.Opacity)
	return mat, nil
}

// roughnessFromCosinePower approximates a roughness value from a phong
// cosine power (higher power, tighter highlight, lower roughness).
func roughnessFromCosinePower(power float64) float64 {
	if power < 2 {
		power = 2
	}
	return clamp01(math.Sqrt(2 / (power + 2)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// attributes wraps a raw attribute map with typed, multi-key lookups.
type attributes map[string]any

// number stores the first present numeric attribute into dst and reports
// whether one was found.
func (a attributes) number(dst *float64, keys ...string) bool {
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			*dst = f
			return true
		}
	}
	return false
}

// color stores the first present 3-component color attribute into dst and
// reports whether one was found. A scalar is broadcast to gray.
func (a attributes) color(dst *[3]float64, keys ...string) bool {
	for _, k := range keys {
		v, ok := a[k]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case []any:
			if len(val) < 3 {
				continue
			}
			var c [3]float64
			good := true
			for i := 0; i < 3; i++ {
				f, ok := toFloat(val[i])
				if !ok {
					good = false
					break
				}
				c[i] = f
			}
			if good {
				*dst = c
				return true
			}
		default:
			if f, ok := toFloat(v); ok {
				*dst = [3]float64{f, f, f}
				return true
			}
		}
	}
	return false
}

// toFloat widens the numeric types a YAML decode can produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
