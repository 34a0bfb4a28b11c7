// Package epubtest builds small EPUB archives for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Options describes a generated book.
type Options struct {
	Title    string
	UUID     string
	Chapters map[string]string // href (relative to OEBPS) -> xhtml body
	CSS      string
	Cover    []byte
	// OPFDir is the folder holding content.opf. Defaults to OEBPS.
	OPFDir string
	// SkipContainer omits META-INF/container.xml.
	SkipContainer bool
	// NoText leaves the manifest without text or style items.
	NoText bool
}

// Build returns the bytes of an EPUB built from opts.
func Build(opts Options) []byte {
	if opts.OPFDir == "" {
		opts.OPFDir = "OEBPS"
	}
	if opts.NoText {
		opts.Chapters = nil
	} else if len(opts.Chapters) == 0 {
		opts.Chapters = map[string]string{"chapter1.xhtml": "<p>Once upon a time.</p>"}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, _ := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	_, _ = w.Write([]byte("application/epub+zip"))

	if !opts.SkipContainer {
		write(zw, "META-INF/container.xml", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, opts.OPFDir))
	}

	hrefs := make([]string, 0, len(opts.Chapters))
	for href := range opts.Chapters {
		hrefs = append(hrefs, href)
	}
	sort.Strings(hrefs)

	var items strings.Builder
	for i, href := range hrefs {
		fmt.Fprintf(&items, `    <item id="ch%d" href="%s" media-type="application/xhtml+xml"/>`+"\n", i, href)
		write(zw, opts.OPFDir+"/"+href, `<html xmlns="http://www.w3.org/1999/xhtml"><body>`+opts.Chapters[href]+`</body></html>`)
	}
	if opts.CSS != "" {
		items.WriteString(`    <item id="css" href="styles/main.css" media-type="text/css"/>` + "\n")
		write(zw, opts.OPFDir+"/styles/main.css", opts.CSS)
	}
	if opts.Cover != nil {
		items.WriteString(`    <item id="cover" href="images/cover.jpg" media-type="image/jpeg"/>` + "\n")
		writeBytes(zw, opts.OPFDir+"/images/cover.jpg", opts.Cover)
	}

	write(zw, opts.OPFDir+"/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uuid_id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>%s</dc:title>
    <dc:identifier id="uuid_id">%s</dc:identifier>
  </metadata>
  <manifest>
%s  </manifest>
  <spine/>
</package>`, opts.Title, opts.UUID, items.String()))

	_ = zw.Close()
	return buf.Bytes()
}

func write(zw *zip.Writer, name, content string) {
	writeBytes(zw, name, []byte(content))
}

func writeBytes(zw *zip.Writer, name string, content []byte) {
	w, _ := zw.Create(name)
	_, _ = w.Write(content)
}
