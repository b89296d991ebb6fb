// Package workflowfile reads and writes workflow documents as JSON or YAML.
package workflowfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dukex/refiner/pkg/models"
	"gopkg.in/yaml.v3"
)

// Format is a workflow document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown workflow file format")

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// IsWorkflowFile reports whether path has a workflow document extension.
func IsWorkflowFile(path string) bool {
	_, err := FormatOf(path)

	return err == nil
}

// Decode reads a single workflow document.
func Decode(r io.Reader, format Format) (*models.Workflow, error) {
	var workflow models.Workflow

	switch format {
	case FormatJSON:
		decoder := json.NewDecoder(r)
		decoder.DisallowUnknownFields()

		if err := decoder.Decode(&workflow); err != nil {
			return nil, fmt.Errorf("failed to parse JSON workflow: %w", err)
		}
	case FormatYAML:
		decoder := yaml.NewDecoder(r)
		decoder.KnownFields(true)

		if err := decoder.Decode(&workflow); err != nil {
			return nil, fmt.Errorf("failed to parse YAML workflow: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	return &workflow, nil
}

// Encode writes a workflow document.
func Encode(w io.Writer, workflow *models.Workflow, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(workflow)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)

		if err := encoder.Encode(workflow); err != nil {
			return err
		}

		return encoder.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Load reads the workflow stored at path.
func Load(path string) (*models.Workflow, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}

	workflow, err := Decode(bytes.NewReader(body), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return workflow, nil
}

// LoadDir reads every workflow document directly inside dir, sorted by file name.
func LoadDir(dir string) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && IsWorkflowFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}

	slices.Sort(names)

	workflows := make([]*models.Workflow, 0, len(names))
	for _, name := range names {
		workflow, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// Save writes workflow to path in the format its extension implies.
func Save(path string, workflow *models.Workflow) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, workflow, format); err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}

	if err := WriteAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write workflow file %s: %w", path, err)
	}

	return nil
}

// WriteAtomic replaces path with content through a temporary file in the same
// directory, so readers never observe a partial document.
func WriteAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".refiner-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
