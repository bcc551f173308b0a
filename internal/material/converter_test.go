package material

import (
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/mikestumbo/sceneport/pkg/scene"
)

func baseMaterial() *scene.MaterialData {
	return &scene.MaterialData{
		Name:          "skin_mat",
		Shader:        scene.ShaderStandard,
		ShaderTag:     "standardSurface",
		DiffuseColor:  [3]float64{0.9, 0.5, 0.1},
		SpecularColor: [3]float64{0.2, 0.2, 0.2},
		Roughness:     0.3,
		Metallic:      0.1,
		Opacity:       1,
	}
}

func TestConvert(t *testing.T) {
	doc := gltf.NewDocument()
	c := NewPBRConverter(nil)

	idx, err := c.Convert(doc, baseMaterial(), StrategyGeneric)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if int(idx) != 0 || len(doc.Materials) != 1 {
		t.Fatalf("idx %d, %d materials", idx, len(doc.Materials))
	}

	out := doc.Materials[0]
	if out.Name != "skin_mat" {
		t.Errorf("name = %q", out.Name)
	}
	pbr := out.PBRMetallicRoughness
	if pbr == nil || pbr.BaseColorFactor == nil {
		t.Fatal("PBR block missing")
	}
	want := [4]float64{0.9, 0.5, 0.1, 1}
	if *pbr.BaseColorFactor != want {
		t.Errorf("base color = %v, want %v", *pbr.BaseColorFactor, want)
	}
	if *pbr.RoughnessFactor != 0.3 || *pbr.MetallicFactor != 0.1 {
		t.Errorf("roughness %v, metallic %v", *pbr.RoughnessFactor, *pbr.MetallicFactor)
	}
	if out.AlphaMode == gltf.AlphaBlend {
		t.Error("opaque material should not blend")
	}
	if out.Extras != nil {
		t.Error("generic strategy should not write extras")
	}
}

func TestConvertTransparent(t *testing.T) {
	doc := gltf.NewDocument()
	c := NewPBRConverter(nil)

	mat := baseMaterial()
	mat.Opacity = 0.5
	if _, err := c.Convert(doc, mat, StrategyGeneric); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	out := doc.Materials[0]
	if out.AlphaMode != gltf.AlphaBlend {
		t.Errorf("alpha mode = %v, want blend", out.AlphaMode)
	}
	if (*out.PBRMetallicRoughness.BaseColorFactor)[3] != 0.5 {
		t.Errorf("alpha factor = %v, want 0.5", (*out.PBRMetallicRoughness.BaseColorFactor)[3])
	}
}

func TestConvertVendorPreserving(t *testing.T) {
	doc := gltf.NewDocument()
	c := NewPBRConverter(nil)

	mat := baseMaterial()
	mat.IsVendorSpecific = true
	mat.ShaderTag = "megaShader3000"
	mat.Passthrough = map[string]any{"iridescence": 0.7}

	if _, err := c.Convert(doc, mat, StrategyVendorPreserving); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	extras, ok := doc.Materials[0].Extras.(map[string]any)
	if !ok {
		t.Fatalf("extras = %T, want map", doc.Materials[0].Extras)
	}
	if extras["shaderType"] != "megaShader3000" {
		t.Errorf("shaderType = %v", extras["shaderType"])
	}
	attrs, ok := extras["shaderAttributes"].(map[string]any)
	if !ok || attrs["iridescence"] != 0.7 {
		t.Errorf("shaderAttributes = %v", extras["shaderAttributes"])
	}
}

func TestConvertVendorWithGenericStrategy(t *testing.T) {
	doc := gltf.NewDocument()
	c := NewPBRConverter(nil)

	mat := baseMaterial()
	mat.IsVendorSpecific = true
	mat.Passthrough = map[string]any{"iridescence": 0.7}

	if _, err := c.Convert(doc, mat, StrategyGeneric); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if doc.Materials[0].Extras != nil {
		t.Error("generic strategy should drop the passthrough bag")
	}
}

func TestConvertMissingTexture(t *testing.T) {
	doc := gltf.NewDocument()
	c := NewPBRConverter(nil)

	mat := baseMaterial()
	mat.Textures = map[string]string{"diffuse": "no/such/file.png"}

	// An unresolvable texture degrades to an untextured material.
	if _, err := c.Convert(doc, mat, StrategyGeneric); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if doc.Materials[0].PBRMetallicRoughness.BaseColorTexture != nil {
		t.Error("missing texture should not produce a texture reference")
	}
	if len(doc.Textures) != 0 {
		t.Errorf("document has %d textures, want 0", len(doc.Textures))
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyGeneric, false},
		{"generic", StrategyGeneric, false},
		{"vendor-preserving", StrategyVendorPreserving, false},
		{"vendor", StrategyVendorPreserving, false},
		{"bogus", StrategyGeneric, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrategyString(t *testing.T) {
	if StrategyGeneric.String() != "generic" || StrategyVendorPreserving.String() != "vendor-preserving" {
		t.Error("strategy names changed")
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"tex.png", "image/png"},
		{"tex.jpg", "image/jpeg"},
		{"TEX.JPEG", "image/jpeg"},
		{"tex.unknown", "image/png"},
	}
	for _, tt := range tests {
		if got := mimeTypeFor(tt.path); got != tt.want {
			t.Errorf("mimeTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
