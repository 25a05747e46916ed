package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// inputExts are the file types picked up when the input is a directory.
var inputExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".pdf": true, ".txt": true,
}

// LoadInput reads batch items from a directory of notas, a JSONL file of
// {"id","path","text"} objects, or a plain list of paths.
func LoadInput(path string, skipInvalid bool) ([]InputItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return loadDirectory(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	base := filepath.Dir(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".json", ".ndjson":
		return loadJSON(file, base, skipInvalid)
	default:
		return loadPathList(file, base)
	}
}

func loadDirectory(dir string) ([]InputItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var items []InputItem
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !inputExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		items = append(items, InputItem{
			ID:   e.Name(),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func loadJSON(r io.Reader, base string, skipInvalid bool) ([]InputItem, error) {
	var items []InputItem
	decoder := json.NewDecoder(r)

	for decoder.More() {
		var item InputItem
		if err := decoder.Decode(&item); err != nil {
			if skipInvalid {
				// A syntax error leaves the decoder unusable.
				if _, ok := err.(*json.SyntaxError); ok {
					break
				}
				continue
			}
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.Path = resolve(base, item.Path)
		items = append(items, item)
	}
	return items, nil
}

func loadPathList(r io.Reader, base string) ([]InputItem, error) {
	var items []InputItem
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, InputItem{
			ID:   fmt.Sprintf("line-%d", lineNum),
			Path: resolve(base, line),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return items, nil
}

// resolve makes relative paths relative to the input file.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
