package orchestrator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover pairs <id>.wav in audioDir with <id>.TextGrid in textgridDir.
// Extensions match case-insensitively. Recordings with only one of the two
// files come back as MissingPairError values, sorted by id like the pairs.
func Discover(audioDir, textgridDir string) ([]Pair, []*MissingPairError, error) {
	wavs, err := listByExt(audioDir, ".wav")
	if err != nil {
		return nil, nil, err
	}
	grids, err := listByExt(textgridDir, ".textgrid")
	if err != nil {
		return nil, nil, err
	}

	var pairs []Pair
	var missing []*MissingPairError
	for id, wav := range wavs {
		tg, ok := grids[id]
		if !ok {
			missing = append(missing, &MissingPairError{ID: id, Missing: "textgrid", Path: wav})
			continue
		}
		pairs = append(pairs, Pair{ID: id, AudioPath: wav, TextGridPath: tg})
	}
	for id, tg := range grids {
		if _, ok := wavs[id]; !ok {
			missing = append(missing, &MissingPairError{ID: id, Missing: "audio", Path: tg})
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ID < pairs[j].ID })
	sort.Slice(missing, func(i, j int) bool { return missing[i].ID < missing[j].ID })
	return pairs, missing, nil
}

// listByExt maps file stem to path for regular files with extension ext
// (lower case).
func listByExt(dir, ext string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		x := filepath.Ext(name)
		if strings.ToLower(x) != ext {
			continue
		}
		out[strings.TrimSuffix(name, x)] = filepath.Join(dir, name)
	}
	return out, nil
}
