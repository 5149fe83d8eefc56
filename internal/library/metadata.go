package library

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mrlokans/kompanion/internal/entities"
)

// Metadata is what the uploader supplied or what could be read from the file.
type Metadata struct {
	Title     string
	Author    string
	Publisher string
	ISBN      string
	Language  string
}

var formatByExtension = map[string]entities.BookFormat{
	".epub": entities.BookFormatEPUB,
	".pdf":  entities.BookFormatPDF,
	".mobi": entities.BookFormatMOBI,
	".azw3": entities.BookFormatMOBI,
	".fb2":  entities.BookFormatFB2,
	".cbz":  entities.BookFormatCBZ,
	".djvu": entities.BookFormatDJVU,
	".txt":  entities.BookFormatTXT,
}

// FormatFromFilename maps a file extension to a book format.
func FormatFromFilename(filename string) (entities.BookFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, ok := formatByExtension[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return format, nil
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multipleSpaces       = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes a title safe to offer as a download filename.
func SanitizeFilename(name string) string {
	name = multipleSpaces.ReplaceAllString(name, " ")
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = multipleSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	if len(name) > 200 {
		name = strings.TrimSpace(name[:200])
	}
	if name == "" {
		name = "book"
	}
	return name
}

// MetadataFromFilename guesses title and author from names like
// "Title - Author.epub".
func MetadataFromFilename(filename string) Metadata {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(strings.ReplaceAll(base, "_", " "))

	if title, author, ok := strings.Cut(base, " - "); ok {
		return Metadata{Title: strings.TrimSpace(title), Author: strings.TrimSpace(author)}
	}
	return Metadata{Title: base}
}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubIdentifier struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

type epubMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type epubItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type epubPackage struct {
	Titles      []string         `xml:"metadata>title"`
	Creators    []string         `xml:"metadata>creator"`
	Publishers  []string         `xml:"metadata>publisher"`
	Languages   []string         `xml:"metadata>language"`
	Identifiers []epubIdentifier `xml:"metadata>identifier"`
	Metas       []epubMeta       `xml:"metadata>meta"`
	Items       []epubItem       `xml:"manifest>item"`
}

// Cover is an image found inside a book file.
type Cover struct {
	Data      []byte
	MediaType string
}

const (
	// maxEPUBEntrySize bounds how much of container.xml or the OPF is parsed.
	maxEPUBEntrySize = 1 << 20
	maxCoverSize     = 10 << 20
)

// readEPUB reads the Dublin Core metadata from an EPUB's package document
// and the cover image its manifest points at. A book without a usable
// cover yields a nil Cover.
func readEPUB(r io.ReaderAt, size int64) (Metadata, *Cover, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("open epub: %w", err)
	}

	var container epubContainer
	if err := decodeZipXML(zr, "META-INF/container.xml", &container); err != nil {
		return Metadata{}, nil, err
	}
	if len(container.Rootfiles) == 0 {
		return Metadata{}, nil, fmt.Errorf("epub container lists no package document")
	}

	opfPath := path.Clean(container.Rootfiles[0].FullPath)
	var pkg epubPackage
	if err := decodeZipXML(zr, opfPath, &pkg); err != nil {
		return Metadata{}, nil, err
	}

	meta := Metadata{
		Title:     firstNonEmpty(pkg.Titles),
		Author:    firstNonEmpty(pkg.Creators),
		Publisher: firstNonEmpty(pkg.Publishers),
		Language:  firstNonEmpty(pkg.Languages),
		ISBN:      pkg.isbn(),
	}

	item, ok := pkg.coverItem()
	if !ok {
		return meta, nil, nil
	}
	data, err := readZipEntry(zr, resolveHref(opfPath, item.Href), maxCoverSize)
	if err != nil {
		return meta, nil, fmt.Errorf("read cover: %w", err)
	}
	return meta, &Cover{Data: data, MediaType: strings.ToLower(item.MediaType)}, nil
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (p *epubPackage) isbn() string {
	for _, id := range p.Identifiers {
		value := strings.TrimSpace(id.Value)
		lower := strings.ToLower(value)
		switch {
		case strings.EqualFold(id.Scheme, "isbn"):
			return value
		case strings.HasPrefix(lower, "urn:isbn:"):
			return value[len("urn:isbn:"):]
		}
	}
	return ""
}

// coverItem finds the cover image: the EPUB 3 cover-image property first,
// then the EPUB 2 <meta name="cover">, then any image named like a cover.
func (p *epubPackage) coverItem() (epubItem, bool) {
	isImage := func(item epubItem) bool {
		return strings.HasPrefix(strings.ToLower(item.MediaType), "image/")
	}

	for _, item := range p.Items {
		if isImage(item) && strings.Contains(" "+item.Properties+" ", " cover-image ") {
			return item, true
		}
	}
	for _, m := range p.Metas {
		if m.Name != "cover" {
			continue
		}
		for _, item := range p.Items {
			if item.ID == m.Content && isImage(item) {
				return item, true
			}
		}
	}
	for _, item := range p.Items {
		if isImage(item) && (strings.Contains(strings.ToLower(item.ID), "cover") ||
			strings.Contains(strings.ToLower(item.Href), "cover")) {
			return item, true
		}
	}
	return epubItem{}, false
}

// resolveHref turns a manifest href into a zip entry name. Hrefs are
// relative to the package document.
func resolveHref(opfPath, href string) string {
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return path.Join(path.Dir(opfPath), href)
}

func decodeZipXML(zr *zip.Reader, name string, v any) error {
	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := xml.NewDecoder(io.LimitReader(f, maxEPUBEntrySize)).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func readZipEntry(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", name, limit)
	}
	return data, nil
}
