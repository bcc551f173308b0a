package exporter

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// save serializes the target document in the requested format. A failed
// write removes the partial output file: the export is all-or-nothing on
// disk.
func (o *Orchestrator) save(sess *session) error {
	path := sess.opts.OutputPath
	if err := o.writeFile(sess, path); err != nil {
		if rmErr := os.Remove(path); rmErr == nil {
			sess.log.Info("removed partial output file", zap.String("path", path))
		}
		return pkgerrors.Wrapf(err, "saving %s", path)
	}
	o.setProgress(progressSaveEnd)
	return nil
}

func (o *Orchestrator) writeFile(sess *session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var writeErr error
	switch sess.opts.Format {
	case FormatText:
		// Buffers travel inside the text document as data URIs so the
		// output stays a single file.
		for _, buf := range sess.doc.Buffers {
			if len(buf.Data) > 0 {
				buf.EmbeddedResource()
			}
		}
		enc := gltf.NewEncoder(f)
		enc.AsBinary = false
		writeErr = enc.Encode(sess.doc)

	case FormatBinary:
		enc := gltf.NewEncoder(f)
		enc.AsBinary = true
		writeErr = enc.Encode(sess.doc)

	case FormatPackage:
		writeErr = o.writePackage(sess, f, path)
	}

	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	return writeErr
}

// writePackage wraps the binary document in an uncompressed zip container.
// Entries are stored rather than deflated so downstream tools can read the
// payload without inflating it.
func (o *Orchestrator) writePackage(sess *session, f *os.File, path string) error {
	var payload bytes.Buffer
	enc := gltf.NewEncoder(&payload)
	enc.AsBinary = true
	if err := enc.Encode(sess.doc); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   base + ".glb",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return err
	}
	return zw.Close()
}
