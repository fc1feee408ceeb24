package body

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pthm-cable/voxsoc/grid"
)

// EncodingVersion is incremented when the serialized layout changes.
const EncodingVersion = 1

type encodedBody struct {
	Version int           `json:"version"`
	W       int           `json:"w"`
	H       int           `json:"h"`
	Cells   []encodedCell `json:"cells"`
}

type encodedCell struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Material Material `json:"material"`
}

// Encode serializes a body as base64 text of a gzip-compressed JSON document.
func Encode(b *Body) (string, error) {
	if b == nil {
		return "", ErrEmptyBody
	}
	doc := encodedBody{Version: EncodingVersion, W: b.W(), H: b.H()}
	b.Each(func(x, y int, m *Material) {
		doc.Cells = append(doc.Cells, encodedCell{X: x, Y: y, Material: *m})
	})

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		return "", fmt.Errorf("encoding body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compressing body: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses text produced by Encode.
func Decode(s string) (*Body, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing body: %w", err)
	}
	var doc encodedBody
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing body: %w", err)
	}
	if doc.Version != EncodingVersion {
		return nil, fmt.Errorf("unsupported body encoding version %d", doc.Version)
	}
	if !grid.ValidSize(doc.W, doc.H) {
		return nil, fmt.Errorf("invalid body size %dx%d", doc.W, doc.H)
	}

	b := New(doc.W, doc.H)
	for _, c := range doc.Cells {
		if !b.Valid(c.X, c.Y) {
			return nil, fmt.Errorf("cell (%d,%d) outside %dx%d body", c.X, c.Y, doc.W, doc.H)
		}
		b.Set(c.X, c.Y, c.Material.Spawn())
	}
	return b, nil
}
