package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/CrySense/pkg/crysense/features"
)

// Format is an artifact encoding.
type Format string

const (
	FormatMsgpack Format = "msgpack"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
)

// FormatFromPath picks an encoding from the file extension. Unknown
// extensions are treated as MessagePack.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatMsgpack
	}
}

// bundle is the on-disk layout of an artifact.
type bundle struct {
	FormatVersion int              `json:"format_version" yaml:"format_version" msgpack:"format_version"`
	Model         *Spec            `json:"model" yaml:"model" msgpack:"model"`
	ClassNames    []string         `json:"class_names" yaml:"class_names" msgpack:"class_names"`
	FeatureNames  []string         `json:"feature_names" yaml:"feature_names" msgpack:"feature_names"`
	FeatureParams *features.Params `json:"feature_params,omitempty" yaml:"feature_params,omitempty" msgpack:"feature_params,omitempty"`
}

// Load reads and validates an artifact. A missing file yields
// ErrModelNotFound; anything undecodable or inconsistent yields
// ErrModelCorrupt. No artifact is returned with an error.
func Load(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrModelNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrModelNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	a, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Decode parses an artifact from memory.
func Decode(data []byte, format Format) (*Artifact, error) {
	var b bundle
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &b)
	case FormatYAML:
		err = yaml.Unmarshal(data, &b)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &b)
	default:
		return nil, fmt.Errorf("unsupported model format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrModelCorrupt, format, err)
	}

	switch {
	case b.Model == nil:
		return nil, fmt.Errorf("%w: missing model", ErrModelCorrupt)
	case len(b.ClassNames) == 0:
		return nil, fmt.Errorf("%w: missing class_names", ErrModelCorrupt)
	case len(b.FeatureNames) == 0:
		return nil, fmt.Errorf("%w: missing feature_names", ErrModelCorrupt)
	case b.FormatVersion > FormatVersion:
		return nil, fmt.Errorf("%w: format version %d is newer than %d", ErrModelCorrupt, b.FormatVersion, FormatVersion)
	}

	a, err := FromSpec(*b.Model, b.ClassNames, b.FeatureNames, b.FeatureParams)
	if err != nil {
		return nil, err
	}
	if b.FormatVersion > 0 {
		a.formatVersion = b.FormatVersion
	}
	sum := sha256.Sum256(data)
	a.checksum = hex.EncodeToString(sum[:])
	return a, nil
}

// Encode serialises an artifact built from a Spec.
func Encode(a *Artifact, format Format) ([]byte, error) {
	if a.spec == nil {
		return nil, errors.New("artifact has no serialisable model spec")
	}
	b := bundle{
		FormatVersion: FormatVersion,
		Model:         a.spec,
		ClassNames:    a.classNames,
		FeatureNames:  a.featureNames,
		FeatureParams: a.params,
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(b, "", "  ")
	case FormatYAML:
		return yaml.Marshal(b)
	case FormatMsgpack:
		return msgpack.Marshal(b)
	}
	return nil, fmt.Errorf("unsupported model format %q", format)
}

// Save writes an artifact to path, encoded according to its extension.
func Save(path string, a *Artifact) error {
	data, err := Encode(a, FormatFromPath(path))
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}
