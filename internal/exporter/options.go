// Package exporter owns the export session: it validates options, drives
// parsing and conversion in order, reports progress, honors cooperative
// cancellation, and serializes the target document to disk.
package exporter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikestumbo/sceneport/internal/material"
)

// Option validation errors.
var (
	ErrUnknownFormat     = errors.New("unknown output format")
	ErrOutputDirMissing  = errors.New("output directory does not exist")
	ErrOutputPathEmpty   = errors.New("output path is empty")
	ErrAnimationNeedsRig = errors.New("animation export requires skeleton export")
	ErrWeightsNeedRig    = errors.New("skin weight export requires mesh and skeleton export")
	ErrBadInfluenceLimit = errors.New("max influences per vertex must be at least 1")
)

// Format selects the serialized output flavor.
type Format int

const (
	// FormatText writes a human-readable document with embedded buffers.
	FormatText Format = iota
	// FormatBinary writes the compact binary container.
	FormatBinary
	// FormatPackage writes a self-contained single-file package: an
	// uncompressed zip holding the binary document.
	FormatPackage
)

// ParseFormat maps a configuration string onto a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "ascii":
		return FormatText, nil
	case "", "binary":
		return FormatBinary, nil
	case "package":
		return FormatPackage, nil
	default:
		return FormatBinary, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// String returns the format's configuration name.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatBinary:
		return "binary"
	case FormatPackage:
		return "package"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// Ext returns the customary file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatText:
		return ".gltf"
	case FormatPackage:
		return ".zip"
	default:
		return ".glb"
	}
}

// Options is the immutable configuration of one export call.
type Options struct {
	OutputPath string
	Format     Format

	ExportMeshes      bool
	ExportMaterials   bool
	ExportSkeleton    bool
	ExportSkinWeights bool
	ExportAnimation   bool
	PreserveBindPose  bool

	MaterialStrategy       material.Strategy
	MaxInfluencesPerVertex int
}

// DefaultOptions exports everything except animation in binary form.
func DefaultOptions(outputPath string) Options {
	return Options{
		OutputPath:             outputPath,
		Format:                 FormatBinary,
		ExportMeshes:           true,
		ExportMaterials:        true,
		ExportSkeleton:         true,
		ExportSkinWeights:      true,
		PreserveBindPose:       true,
		MaxInfluencesPerVertex: 4,
	}
}

// Validate checks the options before the source is touched: the format must
// be known, the output directory must exist, and option combinations must be
// internally consistent.
func (o Options) Validate() error {
	if o.OutputPath == "" {
		return ErrOutputPathEmpty
	}
	switch o.Format {
	case FormatText, FormatBinary, FormatPackage:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, int(o.Format))
	}
	dir := filepath.Dir(o.OutputPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrOutputDirMissing, dir)
	}
	if o.ExportAnimation && !o.ExportSkeleton {
		return ErrAnimationNeedsRig
	}
	if o.ExportSkinWeights && (!o.ExportMeshes || !o.ExportSkeleton) {
		return ErrWeightsNeedRig
	}
	if o.MaxInfluencesPerVertex < 1 {
		return ErrBadInfluenceLimit
	}
	return nil
}
