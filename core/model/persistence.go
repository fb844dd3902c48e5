package model

import (
	"encoding/gob"
	"io"

	"github.com/polishequity/analytics/pkg/errors"
)

// SaveModelToWriter gob-encodes model to w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.NewModelError("SaveModel", "encode", err)
	}
	return nil
}

// LoadModelFromReader gob-decodes r into model, which must be a pointer.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.NewModelError("LoadModel", "decode", err)
	}
	return nil
}
