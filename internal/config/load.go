package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes and validates a configuration document. JSON documents are
// accepted as well since they are valid YAML. Every validation issue is
// reported in the returned error, and a document is only returned when it has
// none.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("configuration is empty")
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := doc.check().Err(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	doc.index()

	return &doc, nil
}

// LoadFromFile reads and parses the configuration at path.
func LoadFromFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// index builds the id lookups. Called only on a validated document, whose
// slices are not modified afterwards.
func (d *Document) index() {
	d.categories = make(map[string]*Category, len(d.Categories))
	for i := range d.Categories {
		d.categories[d.Categories[i].ID] = &d.Categories[i]
	}

	d.formats = make(map[string]*Format, len(d.Formats))
	for i := range d.Formats {
		f := &d.Formats[i]
		if f.DataFormat == "" {
			f.DataFormat = DataFormatCSV
		}
		d.formats[f.ID] = f
	}

	d.accounts = make(map[string]*Account, len(d.Accounts))
	for i := range d.Accounts {
		a := &d.Accounts[i]
		a.payees = make(map[string]*Payee, len(a.Payees))
		for j := range a.Payees {
			a.payees[a.Payees[j].ID] = &a.Payees[j]
		}
		d.accounts[a.ID] = a
	}
}
