package epub

import (
	"archive/zip"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"sort"
	"strconv"

	"marvin-sync/core/model"

	"github.com/pkg/errors"
)

// NoHash is returned for archives that cannot be hashed.
const NoHash = model.NoHash

// IsValid reports whether h is a usable content hash.
func IsValid(h string) bool {
	return model.IsValidHash(h)
}

// Hash returns the content hash of the EPUB at path, or NoHash on any failure.
func Hash(path string) string {
	h, err := Compute(path)
	if err != nil {
		return NoHash
	}
	return h
}

// Compute returns the content hash of the EPUB at path.
func Compute(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return NoHash, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return NoHash, errors.WithStack(err)
	}
	return HashReader(f, stats.Size())
}

// HashReader hashes an EPUB held in r.
//
// The digest covers the name and uncompressed size of every entry the manifest
// declares as text or style content, in entry-name order. Content bytes, the
// OPF itself, images and the container are left out, so a metadata or cover
// edit keeps the hash stable.
func HashReader(r io.ReaderAt, size int64) (string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return NoHash, errors.WithStack(err)
	}

	pkg, base, err := ParsePackage(zr)
	if err != nil {
		return NoHash, err
	}

	wanted := make(map[string]struct{})
	for _, item := range pkg.Manifest.Item {
		if IsPayload(item.MediaType) && item.Href != "" {
			wanted[resolveHref(base, item.Href)] = struct{}{}
		}
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if _, ok := wanted[f.Name]; ok {
			entries = append(entries, f)
		}
	}
	if len(entries) == 0 {
		return NoHash, errors.New("no text or style payload in manifest")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	sum := md5.New()
	for _, f := range entries {
		io.WriteString(sum, f.Name)
		io.WriteString(sum, strconv.FormatUint(f.UncompressedSize64, 10))
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
