package schema

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and structurally decodes a goal/v1 workflow YAML.
// Returns a structural error if the YAML contains unknown fields.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a goal/v1 workflow from a reader.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // strict: reject unknown fields
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	normalizeUnits(&doc)
	return &doc, nil
}

// normalizeUnits lower-cases time bases so "M" and "m" mean the same.
func normalizeUnits(doc *Document) {
	if doc.Goal.Timer != nil {
		doc.Goal.Timer.Unit = normalizeUnit(doc.Goal.Timer.Unit)
	}
	fn := func(b *Block) {
		if b.Timer != nil {
			b.Timer.Unit = normalizeUnit(b.Timer.Unit)
		}
		if b.Duration != nil {
			b.Duration.Unit = normalizeUnit(b.Duration.Unit)
		}
	}
	WalkBlocks(doc.Goal.Blocks, fn)
	WalkBlocks(doc.Detached, fn)
}

func normalizeUnit(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// WalkBlocks visits every block in document order, depth first.
func WalkBlocks(blocks []Block, fn func(*Block)) {
	for i := range blocks {
		fn(&blocks[i])
		WalkBlocks(blocks[i].Then, fn)
		WalkBlocks(blocks[i].Else, fn)
		WalkBlocks(blocks[i].Body, fn)
	}
}
