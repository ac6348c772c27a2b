package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/bspgen/internal/ir"
)

// marshalFiles converts the written file list to canonical JSON TEXT.
func marshalFiles(files []string) (string, error) {
	arr := make([]any, len(files))
	for i, f := range files {
		arr[i] = f
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal files: %w", err)
	}
	return string(data), nil
}

// unmarshalFiles parses a stored file list. Empty text is an empty list.
func unmarshalFiles(data string) ([]string, error) {
	files := []string{}
	if data == "" {
		return files, nil
	}
	if err := json.Unmarshal([]byte(data), &files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}
	return files, nil
}
