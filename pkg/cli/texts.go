package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// TextsFile is the YAML layout accepted by LoadTexts. A bare YAML list of
// strings is accepted as well.
type TextsFile struct {
	Texts []string `yaml:"texts"`
}

// LoadTexts reads training texts from path. Files ending in .yaml or .yml
// hold either a list of strings or a mapping with a "texts" list; any
// other file holds one text per line.
func LoadTexts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read texts: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLTexts(data)
	}
	return parseLines(data)
}

func parseYAMLTexts(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var f TextsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse texts: %w", err)
	}
	return f.Texts, nil
}

func parseLines(data []byte) ([]string, error) {
	var texts []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		texts = append(texts, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read texts: %w", err)
	}
	return texts, nil
}
