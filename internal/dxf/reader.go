package dxf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrNotDXF is returned when the input contains no DXF sections.
	ErrNotDXF = errors.New("not a DXF file")
	// ErrBinaryDXF is returned for binary DXF, which this reader does not decode.
	ErrBinaryDXF = errors.New("binary DXF is not supported")
)

const (
	binarySentinel = "AutoCAD Binary DXF"
	maxLineBytes   = 4 << 20
)

// ReadFile opens and parses path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Read parses an ASCII DXF stream.
func Read(r io.Reader) (*Document, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	if head, _ := br.Peek(len(binarySentinel)); bytes.Equal(head, []byte(binarySentinel)) {
		return nil, ErrBinaryDXF
	}

	doc := &Document{Header: make(map[string][]Tag)}
	recs, err := readRecords(br, doc)
	if err != nil {
		return nil, err
	}

	p := &parser{doc: doc, recs: recs}
	if !p.run() {
		return nil, ErrNotDXF
	}
	return doc, nil
}

// record is a group of tags opened by a code 0 tag.
type record struct {
	typ  string
	tags []Tag
}

func (r record) str(code int) string {
	for _, t := range r.tags {
		if t.Code == code {
			return t.Value
		}
	}
	return ""
}

func readRecords(r io.Reader, doc *Document) ([]record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	var (
		recs   []record
		line   int
		stray  int
		cur    *record
		code   int
		inPair bool
	)
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if !inPair {
			c, err := strconv.Atoi(strings.TrimSpace(text))
			if err != nil {
				if strings.TrimSpace(text) != "" {
					doc.warnf("line %d: invalid group code %q skipped", line, truncate(text))
				}
				continue
			}
			code, inPair = c, true
			continue
		}
		inPair = false
		value := strings.TrimSpace(text)
		if code == 0 {
			recs = append(recs, record{typ: strings.ToUpper(value)})
			cur = &recs[len(recs)-1]
			continue
		}
		if cur == nil {
			stray++
			continue
		}
		cur.tags = append(cur.tags, Tag{Code: code, Value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read DXF: %w", err)
	}
	if inPair {
		doc.warnf("line %d: group code %d has no value (truncated file)", line, code)
	}
	if stray > 0 {
		doc.warnf("%d tags before the first record ignored", stray)
	}
	return recs, nil
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}

type parser struct {
	doc  *Document
	recs []record
	pos  int
}

func (p *parser) run() bool {
	sections, sawEOF := 0, false
	for p.pos < len(p.recs) && !sawEOF {
		r := p.recs[p.pos]
		switch r.typ {
		case "SECTION":
			sections++
			p.section(r)
		case "EOF":
			sawEOF = true
			p.pos++
		default:
			p.doc.warnf("record %s outside any section skipped", r.typ)
			p.pos++
		}
	}
	if sections == 0 {
		return false
	}
	if !sawEOF {
		p.doc.warnf("missing EOF marker (file may be truncated)")
	}
	return true
}

// section consumes one SECTION ... ENDSEC range starting at p.pos.
func (p *parser) section(head record) {
	name := strings.ToUpper(head.str(2))
	p.pos++
	start := p.pos
	for p.pos < len(p.recs) {
		switch p.recs[p.pos].typ {
		case "ENDSEC":
			body := p.recs[start:p.pos]
			p.pos++
			p.dispatch(name, head, body)
			return
		case "SECTION", "EOF":
			p.doc.warnf("section %s not terminated by ENDSEC", name)
			p.dispatch(name, head, p.recs[start:p.pos])
			return
		}
		p.pos++
	}
	p.doc.warnf("section %s not terminated by ENDSEC", name)
	p.dispatch(name, head, p.recs[start:])
}

func (p *parser) dispatch(name string, head record, body []record) {
	switch name {
	case "HEADER":
		p.header(head)
	case "TABLES":
		p.tables(body)
	case "BLOCKS":
		p.blocks(body)
	case "ENTITIES":
		p.doc.Entities = append(p.doc.Entities, p.entities(body)...)
	case "CLASSES", "OBJECTS", "THUMBNAILIMAGE", "ACDSDATA":
	default:
		p.doc.warnf("unknown section %q skipped", name)
	}
}

// header collects $VARIABLES; the whole section is one record because it has no code 0 tags.
func (p *parser) header(head record) {
	var name string
	for _, t := range head.tags {
		switch {
		case t.Code == 9:
			name = t.Value
			if _, ok := p.doc.Header[name]; !ok {
				p.doc.Header[name] = nil
			}
		case t.Code == 2 && name == "":
			// the section name itself
		case name != "":
			p.doc.Header[name] = append(p.doc.Header[name], t)
		}
	}
}

func (p *parser) tables(body []record) {
	var table string
	for _, r := range body {
		switch r.typ {
		case "TABLE":
			table = strings.ToUpper(r.str(2))
		case "ENDTAB":
			table = ""
		case "LAYER":
			if table != "LAYER" {
				continue
			}
			e := &Entity{Type: r.typ, Tags: r.tags}
			layer := Layer{
				Name:       e.String(2),
				Color:      e.Int(62),
				Linetype:   e.String(6),
				Lineweight: e.Int(370),
				Flags:      e.Int(70),
				Plot:       !e.Has(290) || e.Int(290) != 0,
			}
			if layer.Name == "" {
				p.doc.warnf("layer table entry without a name skipped")
				continue
			}
			p.doc.Layers = append(p.doc.Layers, layer)
		}
	}
}

func (p *parser) blocks(body []record) {
	for i := 0; i < len(body); i++ {
		if body[i].typ != "BLOCK" {
			if body[i].typ != "ENDBLK" {
				p.doc.warnf("%s outside a block definition skipped", body[i].typ)
			}
			continue
		}
		head := &Entity{Type: "BLOCK", Tags: body[i].tags}
		j := i + 1
		for j < len(body) && body[j].typ != "ENDBLK" && body[j].typ != "BLOCK" {
			j++
		}
		if j == len(body) || body[j].typ == "BLOCK" {
			p.doc.warnf("block %q not terminated by ENDBLK", head.String(2))
		}
		p.doc.Blocks = append(p.doc.Blocks, Block{
			Name:      head.String(2),
			Flags:     head.Int(70),
			BasePoint: head.Point(10),
			Entities:  p.entities(body[i+1 : j]),
		})
		if j < len(body) && body[j].typ == "BLOCK" {
			i = j - 1
		} else {
			i = j
		}
	}
}

// entities groups records into entities, attaching ATTRIB and VERTEX followers.
func (p *parser) entities(body []record) []*Entity {
	var out []*Entity
	for i := 0; i < len(body); i++ {
		r := body[i]
		switch r.typ {
		case "SEQEND":
			p.doc.warnf("orphan SEQEND skipped")
			continue
		case "ATTRIB", "VERTEX":
			p.doc.warnf("orphan %s skipped", r.typ)
			continue
		}

		e := &Entity{Type: r.typ, Tags: r.tags}
		var follower string
		switch r.typ {
		case "INSERT":
			follower = "ATTRIB"
		case "POLYLINE":
			follower = "VERTEX"
		}
		if follower != "" {
			j := i + 1
			for j < len(body) && body[j].typ == follower {
				child := &Entity{Type: follower, Tags: body[j].tags}
				if follower == "ATTRIB" {
					e.Attribs = append(e.Attribs, child)
				} else {
					e.Vertices = append(e.Vertices, child)
				}
				j++
			}
			switch {
			case j < len(body) && body[j].typ == "SEQEND":
				j++
			case j > i+1 || (r.typ == "POLYLINE"):
				p.doc.warnf("%s %s missing SEQEND", r.typ, e.Handle())
			}
			i = j - 1
		}
		out = append(out, e)
	}
	return out
}
