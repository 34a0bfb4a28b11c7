package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

const containerPath = "META-INF/container.xml"

// Container is META-INF/container.xml.
type Container struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Package is the subset of the OPF package document the hasher reads.
type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Manifest struct {
		Item []ManifestItem `xml:"item"`
	} `xml:"manifest"`
}

// ManifestItem is one entry of the OPF manifest.
type ManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// payloadTypes are the media types that carry text or style content.
var payloadTypes = map[string]struct{}{
	"application/xhtml+xml":    {},
	"text/html":                {},
	"text/css":                 {},
	"application/x-dtbook+xml": {},
	"text/x-oeb1-document":     {},
	"text/x-oeb1-css":          {},
}

// IsPayload reports whether a manifest media type is part of the content hash.
func IsPayload(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	_, ok := payloadTypes[mt]
	return ok
}

// findOPF locates the package document through container.xml, falling back to
// the first .opf entry in the archive.
func findOPF(zr *zip.Reader) (*zip.File, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	if cf, ok := files[containerPath]; ok {
		var c Container
		if err := decodeXML(cf, &c); err == nil {
			for _, rf := range c.Rootfiles.Rootfile {
				if f, ok := files[strings.TrimPrefix(rf.FullPath, "/")]; ok {
					return f, nil
				}
			}
		}
	}

	for _, f := range zr.File {
		if strings.EqualFold(path.Ext(f.Name), ".opf") {
			return f, nil
		}
	}
	return nil, errors.New("no opf file found")
}

// ParsePackage reads the OPF manifest of an open archive and returns the package
// together with the directory its hrefs are relative to.
func ParsePackage(zr *zip.Reader) (*Package, string, error) {
	f, err := findOPF(zr)
	if err != nil {
		return nil, "", err
	}

	var pkg Package
	if err := decodeXML(f, &pkg); err != nil {
		return nil, "", errors.Wrapf(err, "parse %s", f.Name)
	}

	base := path.Dir(f.Name)
	if base == "." {
		base = ""
	}
	return &pkg, base, nil
}

// resolveHref turns a manifest href into an archive entry name.
func resolveHref(base, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return strings.TrimPrefix(path.Clean(path.Join("/", base, href)), "/")
}

func decodeXML(f *zip.File, v any) error {
	r, err := f.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	dec := xml.NewDecoder(io.LimitReader(r, 16<<20))
	dec.Strict = false
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	return errors.WithStack(dec.Decode(v))
}
