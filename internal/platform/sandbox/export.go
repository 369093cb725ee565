package sandbox

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehr/cohortgen/internal/domain/patient"
)

// Output formats.
const (
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatNDJSON = "ndjson"
	FormatBundle = "bundle"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every supported output format.
var Formats = []string{FormatJSON, FormatCSV, FormatNDJSON, FormatBundle}

// ParseFormats splits a comma-separated format list, dropping blanks and
// duplicates.
func ParseFormats(list string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, f := range strings.Split(list, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		if !isFormat(f) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

func isFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// FileName is the default output file name for a cohort of n patients.
func FileName(format string, n int) string {
	switch format {
	case FormatBundle:
		return fmt.Sprintf("patient_dataset_%d_bundle.json", n)
	default:
		return fmt.Sprintf("patient_dataset_%d.%s", n, format)
	}
}

// Export writes records to w in the given format.
func Export(w io.Writer, format string, records []patient.Record) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatCSV:
		return patient.WriteCSV(w, records)
	case FormatNDJSON:
		return WriteNDJSON(w, records)
	case FormatBundle:
		return WriteBundle(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteJSON writes records as an indented JSON array. Non-ASCII names are
// written as-is.
func WriteJSON(w io.Writer, records []patient.Record) error {
	if records == nil {
		records = []patient.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	return nil
}

// WriteNDJSON writes one record per line.
func WriteNDJSON(w io.Writer, records []patient.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encoding record %s: %w", records[i].PatientID, err)
		}
	}
	return nil
}

// WriteFiles writes records into dir once per format and returns the paths
// written. dir is created if needed.
func WriteFiles(dir string, formats []string, records []patient.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path := filepath.Join(dir, FileName(format, len(records)))
		if err := writeFile(path, format, records); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path, format string, records []patient.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Export(bw, format, records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
