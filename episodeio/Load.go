package episodeio

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samuelfneumann/rollouts/episode"
)

// Load scans directory for episode archives in filename order —
// descending by default, so the most recent episodes load first when
// filenames encode a monotone identifier — and deserializes each into
// an episode keyed by its filename stem. Loading stops once the
// accumulated transition count reaches limit, if limit > 0. An archive
// that fails to deserialize is logged and skipped; partial corruption
// is not fatal to the load.
func Load(directory string, limit int,
	ascending bool) (map[episode.ID]*episode.Episode, []episode.ID, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return map[episode.ID]*episode.Episode{}, nil, nil
		}
		return nil, nil, fmt.Errorf("load: %v", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		names = append(names, entry.Name())
	}
	if ascending {
		sort.Strings(names)
	} else {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	episodes := make(map[episode.ID]*episode.Episode)
	order := make([]episode.ID, 0, len(names))
	total := 0
	for _, name := range names {
		ep, err := load(filepath.Join(directory, name))
		if err != nil {
			log.Printf("load: could not load episode: %v", err)
			continue
		}

		id := episode.ID(strings.TrimSuffix(name, Ext))
		episodes[id] = ep
		order = append(order, id)

		total += ep.Transitions()
		if limit > 0 && total >= limit {
			break
		}
	}
	return episodes, order, nil
}

// load deserializes a single archive.
func load(filename string) (*episode.Episode, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %v", filename, err)
	}
	defer zr.Close()

	var arch archive
	if err := gob.NewDecoder(zr).Decode(&arch); err != nil {
		return nil, fmt.Errorf("%v: %v", filename, err)
	}
	if len(arch.Names) != len(arch.Series) {
		return nil, fmt.Errorf("%v: %d names for %d series", filename,
			len(arch.Names), len(arch.Series))
	}

	ep := episode.New()
	for i, name := range arch.Names {
		if err := ep.SetField(name, arch.Series[i]); err != nil {
			return nil, fmt.Errorf("%v: %v", filename, err)
		}
	}
	return ep, nil
}
