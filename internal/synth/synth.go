// Package synth writes synthetic XML documents for load testing and for
// exercising the importer's batch boundaries.
package synth

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultNamespace is the default namespace declared on the root element.
const DefaultNamespace = "urn:xmlshred:synthetic"

// Options shapes a generated document.
type Options struct {
	Customers         int
	OrdersPerCustomer int
	// Seed makes the output reproducible. Zero picks a random seed.
	Seed      int64
	Namespace string
}

// Elements returns the number of elements a document generated with o
// contains, root included.
func (o Options) Elements() int {
	// Customer, Name, Email, Address, Street, City, Zip plus Order and Note per order.
	perCustomer := 7 + 2*o.OrdersPerCustomer
	return 1 + o.Customers*perCustomer
}

// Generate writes a Catalog of customers with nested addresses and orders.
// Customers and orders carry attributes; names, emails and address parts
// are leaf scalars; notes are leaves; the root has a default namespace.
func Generate(w io.Writer, o Options) error {
	if o.Customers < 0 || o.OrdersPerCustomer < 0 {
		return fmt.Errorf("synth: negative counts")
	}
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	faker := gofakeit.New(o.Seed)

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	g := &gen{enc: enc}

	g.start("Catalog", xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: o.Namespace},
		attr("customers", strconv.Itoa(o.Customers)))
	for c := 1; c <= o.Customers; c++ {
		g.start("Customer", attr("id", "C"+strconv.Itoa(c)), attr("company", faker.Company()))
		g.leaf("Name", faker.Name())
		g.leaf("Email", faker.Email())
		g.start("Address")
		g.leaf("Street", faker.Street())
		g.leaf("City", faker.City())
		g.leaf("Zip", faker.Zip())
		g.end("Address")
		for n := 1; n <= o.OrdersPerCustomer; n++ {
			g.start("Order",
				attr("number", strconv.Itoa(n)),
				attr("total", strconv.FormatFloat(faker.Price(1, 500), 'f', 2, 64)))
			g.leaf("Note", faker.Sentence(6))
			g.end("Order")
		}
		g.end("Customer")
	}
	g.end("Catalog")

	if g.err != nil {
		return fmt.Errorf("synth: %w", g.err)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("synth: %w", err)
	}
	return nil
}

type gen struct {
	enc *xml.Encoder
	err error
}

func (g *gen) token(t xml.Token) {
	if g.err == nil {
		g.err = g.enc.EncodeToken(t)
	}
}

func (g *gen) start(name string, attrs ...xml.Attr) {
	g.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (g *gen) end(name string) {
	g.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (g *gen) leaf(name, text string) {
	g.start(name)
	g.token(xml.CharData(text))
	g.end(name)
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}
