// Package transform provides helpers for the 16-element row-major matrices
// used throughout the scene data model. Matrices are row-major storage of
// column-vector transforms; the target document wants column-major, so
// conversion is a transpose. Heavy lifting (multiply, inverse) goes through
// go-gl/mathgl.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Identity returns the row-major identity matrix.
func Identity() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// IsIdentity reports whether m is exactly the identity matrix.
func IsIdentity(m [16]float64) bool {
	return m == Identity()
}

// IsZero reports whether every element of m is zero. Source documents that
// omit a transform decode to the zero matrix; callers substitute identity.
func IsZero(m [16]float64) bool {
	for _, v := range m {
		if v != 0 {
			return false
		}
	}
	return true
}

// ToMat4 converts a row-major matrix to an mgl64.Mat4 (column-major).
func ToMat4(m [16]float64) mgl64.Mat4 {
	var out mgl64.Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[col*4+row] = m[row*4+col]
		}
	}
	return out
}

// FromMat4 converts an mgl64.Mat4 back to row-major storage.
func FromMat4(m mgl64.Mat4) [16]float64 {
	var out [16]float64
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row*4+col] = m[col*4+row]
		}
	}
	return out
}

// Mul returns a*b in row-major storage.
func Mul(a, b [16]float64) [16]float64 {
	return FromMat4(ToMat4(a).Mul4(ToMat4(b)))
}

// Inverse returns the inverse of m, or identity if m is singular.
func Inverse(m [16]float64) [16]float64 {
	mat := ToMat4(m)
	if math.Abs(mat.Det()) < 1e-12 {
		return Identity()
	}
	return FromMat4(mat.Inv())
}

// RelativeTo returns the transform of world expressed in parentWorld's space,
// i.e. parentWorld⁻¹ * world.
func RelativeTo(world, parentWorld [16]float64) [16]float64 {
	return Mul(Inverse(parentWorld), world)
}

// ColumnMajor returns m transposed into the column-major layout the target
// document format expects.
func ColumnMajor(m [16]float64) [16]float64 {
	var out [16]float64
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[col*4+row] = m[row*4+col]
		}
	}
	return out
}

// ColumnMajor32 is ColumnMajor narrowed to float32, for buffer payloads.
func ColumnMajor32(m [16]float64) [16]float32 {
	cm := ColumnMajor(m)
	var out [16]float32
	for i, v := range cm {
		out[i] = float32(v)
	}
	return out
}
