package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"time"
)

// Command types understood by the app.
const (
	CmdUpdateMetadata        = "update_metadata"
	CmdUpdateCollections     = "update_collections"
	CmdDeleteBooks           = "delete_books"
	CmdRefreshHighlights     = "refresh_highlights"
	CmdGenerateDeepView      = "generate_deep_view"
	CmdDeepViewOrder         = "deep_view_order"
	CmdCollectionMaintenance = "collection_maintenance"
	CmdCancel                = "cancel"
)

// TimestampLayout formats envelope timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

var bom = []byte{0xEF, 0xBB, 0xBF}

// Envelope is a document written to the command artifact.
type Envelope interface {
	CommandType() string
	SetTimestamp(ts string)
}

// Parameter is a name/value pair of a general command.
type Parameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Param builds a Parameter.
func Param(name, value string) Parameter {
	return Parameter{Name: name, Value: value}
}

// Command is the general command envelope.
type Command struct {
	XMLName    xml.Name          `xml:"command"`
	Type       string            `xml:"type,attr"`
	Timestamp  string            `xml:"timestamp,attr"`
	Parameters []Parameter       `xml:"parameters>parameter,omitempty"`
	Books      []CollectionsBook `xml:"manifest>book,omitempty"`
}

// NewCommand creates a general command.
func NewCommand(typ string, params ...Parameter) *Command {
	return &Command{Type: typ, Parameters: params}
}

func (c *Command) CommandType() string    { return c.Type }
func (c *Command) SetTimestamp(ts string) { c.Timestamp = ts }

// CollectionsBook assigns the collection list of one book.
type CollectionsBook struct {
	Filename    string      `xml:"filename,attr"`
	Collections *Collection `xml:"collections"`
}

// Collection is the <collections> element. A non-nil empty Collection still
// renders the element, which tells the app to clear the list.
type Collection struct {
	Items []string `xml:"collection"`
}

// Subjects is the <subjects> element.
type Subjects struct {
	Items []string `xml:"subject"`
}

// Cover carries a base64 cover image.
type Cover struct {
	Hash     string `xml:"hash,attr"`
	Encoding string `xml:"encoding,attr"`
	Data     string `xml:",chardata"`
}

// NewCover encodes image bytes.
func NewCover(hash string, data []byte) *Cover {
	return &Cover{Hash: hash, Encoding: "base64", Data: base64.StdEncoding.EncodeToString(data)}
}

// ManifestBook is one book of a metadata update. Every attribute is written so
// that values absent on the desktop clear the device field.
type ManifestBook struct {
	Author      string      `xml:"author,attr"`
	AuthorSort  string      `xml:"authorsort,attr"`
	Filename    string      `xml:"filename,attr"`
	Pubdate     string      `xml:"pubdate,attr"`
	Publisher   string      `xml:"publisher,attr"`
	Series      string      `xml:"series,attr"`
	SeriesIndex string      `xml:"seriesindex,attr"`
	Title       string      `xml:"title,attr"`
	TitleSort   string      `xml:"titlesort,attr"`
	UUID        string      `xml:"uuid,attr"`
	Cover       *Cover      `xml:"cover,omitempty"`
	Subjects    *Subjects   `xml:"subjects,omitempty"`
	Collections *Collection `xml:"collections,omitempty"`
}

// UpdateMetadata is the metadata update envelope.
type UpdateMetadata struct {
	XMLName   xml.Name       `xml:"updatemetadata"`
	Timestamp string         `xml:"timestamp,attr"`
	Books     []ManifestBook `xml:"manifest>book"`
}

func (u *UpdateMetadata) CommandType() string    { return CmdUpdateMetadata }
func (u *UpdateMetadata) SetTimestamp(ts string) { u.Timestamp = ts }

// Encode serializes an envelope as UTF-8 XML with a byte order mark and declaration.
func Encode(env Envelope) ([]byte, error) {
	body, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.CommandType(), err)
	}
	var buf bytes.Buffer
	buf.Grow(len(bom) + len(xml.Header) + len(body))
	buf.Write(bom)
	buf.WriteString(xml.Header)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Stamp formats t as an envelope timestamp.
func Stamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
