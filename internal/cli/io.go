package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/opsgrid-api/internal/scheduler"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// readRequest loads a request from path or stdin. Read failures exit 1;
// unknown formats and undecodable payloads are invalid input and exit 2.
func readRequest(path, format string, stdin io.Reader) (scheduler.Request, error) {
	var (
		raw []byte
		err error
	)
	if path == "" || path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return scheduler.Request{}, fmt.Errorf("read request: %w", err)
	}

	if format == "" {
		format = detectFormat(path, raw)
	}
	var req scheduler.Request
	switch strings.ToLower(format) {
	case formatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&req)
	case formatYAML, "yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&req)
	default:
		return scheduler.Request{}, invalidInput(fmt.Errorf("unsupported input format %q", format))
	}
	if err != nil {
		return scheduler.Request{}, invalidInput(fmt.Errorf("decode %s request: %w", format, err))
	}
	return req, nil
}

// detectFormat uses the extension, falling back to sniffing for a leading brace.
func detectFormat(path string, raw []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		return formatJSON
	}
	return formatYAML
}

func writeResult(w io.Writer, format string, pretty bool, v interface{}) error {
	switch strings.ToLower(format) {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		if pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(v)
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
