package protocol

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Status codes reported by the app.
const (
	CodeInProgress = -1
	CodeSuccess    = 0
	CodeWarnings   = 1
	CodeFailed     = 2
	CodeCancelled  = 3
)

// Status is the status artifact written by the app.
type Status struct {
	XMLName   xml.Name `xml:"status"`
	Code      int      `xml:"code,attr"`
	Timestamp string   `xml:"timestamp,attr"`
	Progress  float64  `xml:"progress"`
	Messages  []string `xml:"messages>message"`
}

// ParseStatus decodes a status artifact.
func ParseStatus(data []byte) (*Status, error) {
	data = bytes.TrimPrefix(data, bom)
	var st Status
	if err := xml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	return &st, nil
}

// EncodeStatus serializes a status artifact.
func EncodeStatus(st *Status) ([]byte, error) {
	body, err := xml.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	return append(append(append([]byte(nil), bom...), xml.Header...), body...), nil
}
