// Package bundle exports a product's archived records (its signed trust
// report and any dispute evidence) as a deterministic TAR file, and imports
// such files into another archive.
//
// Layout:
//
//	blocks/<cid>   one entry per blob, raw bytes
//	index.json     product id, labels and block sizes
//
// Entries are sorted and headers normalized, so the same inputs always yield
// the same bytes. Every block is checked against its CID in both directions.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"xdao.co/trustchain/cidutil"
	"xdao.co/trustchain/storage"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

var epoch = time.Unix(0, 0).UTC()

// Manifest names the product a bundle belongs to and labels its blocks,
// for example "report" or "evidence".
type Manifest struct {
	ProductID string
	Labels    map[string]string
}

type index struct {
	Version   int          `json:"version"`
	ProductID string       `json:"productId"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

// Export writes every labeled blob of m to w.
func Export(ctx context.Context, w io.Writer, cas storage.CAS, m Manifest) (err error) {
	if cas == nil {
		return fmt.Errorf("bundle: nil archive")
	}
	if m.ProductID == "" {
		return fmt.Errorf("bundle: missing product id")
	}

	names := make([]string, 0, len(m.Labels))
	for name := range m.Labels {
		if name == "" {
			return fmt.Errorf("bundle: empty label")
		}
		names = append(names, name)
	}
	sort.Strings(names)

	idx := index{Version: FormatVersion, ProductID: m.ProductID, CIDCodec: "raw", Multihash: "sha2-256"}
	uniq := map[string]struct{}{}
	for _, name := range names {
		ref := m.Labels[name]
		if _, err := storage.ParseCID(ref); err != nil {
			return err
		}
		idx.Labels = append(idx.Labels, indexLabel{Name: name, CID: ref})
		uniq[ref] = struct{}{}
	}
	refs := make([]string, 0, len(uniq))
	for ref := range uniq {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	for _, ref := range refs {
		id, _ := storage.ParseCID(ref)
		b, err := cas.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", ref, err)
		}
		if !cidutil.Matches(id, b) {
			return storage.ErrCIDMismatch
		}
		if err := writeFile(tw, "blocks/"+ref, b); err != nil {
			return err
		}
		idx.Blocks = append(idx.Blocks, indexBlock{CID: ref, Size: len(b)})
	}

	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeFile(tw, "index.json", append(b, '\n'))
}

// Import stores every block of the bundle in cas and returns its manifest.
// Unknown entries, duplicate blocks and blocks that do not hash to their
// name are rejected.
func Import(ctx context.Context, r io.Reader, cas storage.CAS) (Manifest, error) {
	if cas == nil {
		return Manifest{}, fmt.Errorf("bundle: nil archive")
	}
	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *index

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Manifest{}, err
		}
		name := cleanPath(h.Name)
		if name == "" || h.Typeflag != tar.TypeReg {
			return Manifest{}, fmt.Errorf("bundle: unexpected entry %q", h.Name)
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return Manifest{}, err
		}

		if name == "index.json" {
			idx = new(index)
			if err := json.Unmarshal(payload, idx); err != nil {
				return Manifest{}, fmt.Errorf("bundle: index: %w", err)
			}
			continue
		}
		ref, ok := strings.CutPrefix(name, "blocks/")
		if !ok {
			return Manifest{}, fmt.Errorf("bundle: unknown entry %s", name)
		}
		id, err := storage.ParseCID(ref)
		if err != nil {
			return Manifest{}, err
		}
		if !cidutil.Matches(id, payload) {
			return Manifest{}, storage.ErrCIDMismatch
		}
		if _, dup := seen[ref]; dup {
			return Manifest{}, fmt.Errorf("bundle: duplicate block %s", ref)
		}
		seen[ref] = struct{}{}
		if _, err := cas.Put(ctx, payload); err != nil {
			return Manifest{}, err
		}
	}

	if idx == nil {
		return Manifest{}, fmt.Errorf("bundle: missing index.json")
	}
	if idx.Version != FormatVersion {
		return Manifest{}, fmt.Errorf("bundle: unsupported version %d", idx.Version)
	}
	m := Manifest{ProductID: idx.ProductID, Labels: make(map[string]string, len(idx.Labels))}
	for _, l := range idx.Labels {
		if _, ok := seen[l.CID]; !ok {
			return Manifest{}, fmt.Errorf("bundle: label %q names missing block %s", l.Name, l.CID)
		}
		m.Labels[l.Name] = l.CID
	}
	return m, nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanPath normalizes a TAR entry name and rejects traversal.
func cleanPath(name string) string {
	name = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
