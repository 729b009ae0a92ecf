package shred

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// EventKind identifies a structural event.
type EventKind int

const (
	// StartElement opens an element.
	StartElement EventKind = iota + 1
	// Text carries character data or CDATA of the open element.
	Text
	// EndElement closes the open element.
	EndElement
)

// Attr is an attribute reported with a StartElement.
type Attr struct {
	Space string
	Local string
	Value string
}

// Event is one structural event. Local and Space are set for StartElement
// and EndElement; Attrs and SelfClosing only for StartElement; Data only for
// Text. A source that sets SelfClosing does not emit the matching EndElement.
type Event struct {
	Kind        EventKind
	Local       string
	Space       string
	Attrs       []Attr
	SelfClosing bool
	Data        string
}

// Source is a forward-only stream of structural events. Next returns io.EOF
// after the last event.
type Source interface {
	Next() (Event, error)
}

// XMLSource reads events from an XML document. Namespace prefixes are
// resolved to URIs; comments, processing instructions, directives and
// whitespace-only character data are skipped. Declared non-UTF-8 encodings
// are decoded through golang.org/x/text.
type XMLSource struct {
	dec *xml.Decoder
}

// NewXMLSource returns a Source over r.
func NewXMLSource(r io.Reader) *XMLSource {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = charsetReader
	return &XMLSource{dec: dec}
}

// Next implements Source.
func (s *XMLSource) Next() (Event, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("%w: %w", types.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			ev := Event{Kind: StartElement, Local: t.Name.Local, Space: t.Name.Space}
			if len(t.Attr) > 0 {
				ev.Attrs = make([]Attr, len(t.Attr))
				for i, a := range t.Attr {
					ev.Attrs[i] = Attr{Space: a.Name.Space, Local: a.Name.Local, Value: a.Value}
				}
			}
			return ev, nil
		case xml.EndElement:
			return Event{Kind: EndElement, Local: t.Name.Local, Space: t.Name.Space}, nil
		case xml.CharData:
			if len(strings.TrimSpace(string(t))) == 0 {
				continue
			}
			return Event{Kind: Text, Data: string(t)}, nil
		}
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// isNamespaceDecl reports whether a is an xmlns or xmlns:* declaration.
func isNamespaceDecl(a Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Local == "xmlns")
}
