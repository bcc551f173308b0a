package scene

import "fmt"

// ShaderKind tags the closed set of shader families the parser understands.
// Anything outside the set is ShaderGeneric and carries its raw attributes in
// the material's passthrough bag.
type ShaderKind int

const (
	ShaderGeneric  ShaderKind = 0 // unrecognized or vendor-specific shader
	ShaderStandard ShaderKind = 1 // standard surface shader
	ShaderPhong    ShaderKind = 2 // classic phong shader
	ShaderPBR      ShaderKind = 3 // metallic-roughness PBR shader
)

// KindForShaderTag maps a source shader type string onto a ShaderKind.
func KindForShaderTag(tag string) ShaderKind {
	switch tag {
	case "standard", "standardSurface":
		return ShaderStandard
	case "phong", "blinn":
		return ShaderPhong
	case "pbr", "pbrSurface":
		return ShaderPBR
	default:
		return ShaderGeneric
	}
}

// String returns a human-readable shader kind name.
func (k ShaderKind) String() string {
	switch k {
	case ShaderGeneric:
		return "generic"
	case ShaderStandard:
		return "standard"
	case ShaderPhong:
		return "phong"
	case ShaderPBR:
		return "pbr"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}
