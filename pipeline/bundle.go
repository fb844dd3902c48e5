package pipeline

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/polishequity/analytics/core/model"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/polishequity/analytics/preprocessing"
	"github.com/polishequity/analytics/sklearn/lightgbm"
)

// BundleVersion is the current on-disk format.
const BundleVersion = 1

const (
	manifestEntry = "manifest.json"
	modelEntry    = "model.gob"
)

// Manifest describes a saved bundle.
type Manifest struct {
	Version      int       `json:"version"`
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	Classes      []string  `json:"classes"`
	FeatureNames []string  `json:"feature_names"`
	Config       Config    `json:"config"`
}

type payload struct {
	Labels       *preprocessing.LabelEncoder
	Preprocessor *preprocessing.FittedPreprocessor
	Booster      *lightgbm.Model
}

// Save writes the model as a zip archive holding manifest.json and
// model.gob.
func (m *TrainedModel) Save(w io.Writer) error {
	zw := zip.NewWriter(w)

	manifest := Manifest{
		Version:      BundleVersion,
		RunID:        m.RunID,
		CreatedAt:    time.Now().UTC(),
		Classes:      m.Classes(),
		FeatureNames: m.Preprocessor.FeatureNames(),
		Config:       m.Config,
	}
	mw, err := zw.Create(manifestEntry)
	if err != nil {
		return errors.NewModelError("TrainedModel.Save", "manifest", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return errors.NewModelError("TrainedModel.Save", "manifest", err)
	}

	gw, err := zw.Create(modelEntry)
	if err != nil {
		return errors.NewModelError("TrainedModel.Save", "model", err)
	}
	if err := model.SaveModelToWriter(payload{Labels: m.Labels, Preprocessor: m.Preprocessor, Booster: m.Booster}, gw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.NewModelError("TrainedModel.Save", "close archive", err)
	}
	return nil
}

// SaveFile writes the bundle to path, creating parent directories.
func (m *TrainedModel) SaveFile(path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create model directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create model file %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close model file %s", path)
		}
	}()

	if err := m.Save(f); err != nil {
		return err
	}
	log.GetLoggerWithName("pipeline").Info("Model saved",
		log.PathKey, path,
		log.RunIDKey, m.RunID,
		log.BundleVersionKey, BundleVersion,
	)
	return nil
}

// Load restores a bundle written by Save.
func Load(r io.Reader) (*TrainedModel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewModelError("Load", "read", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewModelError("Load", "open archive", err)
	}

	var manifest Manifest
	if err := readEntry(zr, manifestEntry, func(rc io.Reader) error {
		return json.NewDecoder(rc).Decode(&manifest)
	}); err != nil {
		return nil, err
	}
	if manifest.Version != BundleVersion {
		return nil, errors.Wrapf(errors.ErrUnsupportedVersion, "bundle version %d", manifest.Version)
	}

	var p payload
	if err := readEntry(zr, modelEntry, func(rc io.Reader) error {
		return model.LoadModelFromReader(&p, rc)
	}); err != nil {
		return nil, err
	}
	if p.Labels == nil || p.Preprocessor == nil || p.Booster == nil {
		return nil, errors.NewModelError("Load", "incomplete bundle", nil)
	}
	if p.Booster.NumClass != p.Labels.NumClasses() || p.Booster.NumFeatures != p.Preprocessor.Width() {
		return nil, errors.NewModelError("Load", "inconsistent bundle", nil)
	}
	p.Labels.Reindex()

	return newTrainedModel(manifest.RunID, manifest.Config, p.Labels, p.Preprocessor, p.Booster), nil
}

// LoadFile restores the bundle at path.
func LoadFile(path string) (*TrainedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewModelError("LoadFile", "model not found: "+path, err)
		}
		return nil, errors.Wrapf(err, "open model file %s", path)
	}
	defer f.Close()
	return Load(f)
}

func readEntry(zr *zip.Reader, name string, decode func(io.Reader) error) error {
	rc, err := zr.Open(name)
	if err != nil {
		return errors.NewModelError("Load", "missing "+name, err)
	}
	defer rc.Close()
	if err := decode(rc); err != nil {
		return errors.NewModelError("Load", "decode "+name, err)
	}
	return nil
}
