// Package episodeio serializes completed episodes to durable storage
// and reloads them at startup. Each episode is one gzip-compressed gob
// archive named {id}-{steps}.ep.gz; the filename encodes a sortable
// identifier so a lexicographic directory scan recovers recency order.
package episodeio

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollouts/episode"
)

// Ext is the archive filename extension.
const Ext = ".ep.gz"

// archive is the on-disk form of an episode: every field as a named
// series of tensors of equal length, in first-seen field order.
type archive struct {
	Names  []string
	Series [][]*tensor.Dense
}

// Save writes one episode to directory as a compressed archive. The
// write is all-or-nothing per file: the archive is staged to a
// temporary file and renamed into place, and any failure leaves no
// partial archive behind. Failed saves are not retried; the caller must
// re-save.
func Save(directory string, id episode.ID, ep *episode.Episode) error {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("save: %v", err)
	}

	arch := archive{Names: ep.Names()}
	arch.Series = make([][]*tensor.Dense, len(arch.Names))
	for i, name := range arch.Names {
		arch.Series[i] = ep.Field(name)
	}

	filename := filepath.Join(directory,
		fmt.Sprintf("%v-%d%v", id, ep.Steps(), Ext))

	tmp, err := os.CreateTemp(directory, "episode-*.tmp")
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := gob.NewEncoder(zw).Encode(arch); err != nil {
		tmp.Close()
		return fmt.Errorf("save: could not encode episode %v: %v", id, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("save: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save: %v", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}
