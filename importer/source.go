package importer

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// rowSource streams normalized-header -> raw-text rows from one
// source format (spec.md §4.8's "Header mapping" step).
type rowSource interface {
	// headers returns the normalized ("trim().lower()") header list, as
	// encountered in the source's first row.
	headers() ([]string, error)
	// next returns the next row's raw text fields keyed by normalized
	// header, or ok=false at EOF.
	next() (row map[string]string, ok bool, err error)
}

func newSource(format Format, r io.Reader) (rowSource, error) {
	switch format {
	case CSV:
		return newDelimitedSource(r, ',', false)
	case TXT:
		return newDelimitedSource(r, '\t', true)
	case JSON:
		return newJSONSource(r, false)
	case JSONL:
		return newJSONSource(r, true)
	case XML:
		return newXMLSource(r)
	case XLSX:
		return newXLSXSource(r)
	case XLS:
		return nil, fmt.Errorf("importer: legacy .xls import is not supported (no ecosystem decoder for the binary OLE2 format); convert to .xlsx first")
	default:
		return nil, fmt.Errorf("importer: unsupported format")
	}
}

// delimitedSource backs both CSV and TXT. TXT additionally strips a
// leading UTF-8 BOM and unwraps "..."-quoted values with ""-escaped
// quotes, per spec.md §4.8's format-specific notes.
type delimitedSource struct {
	reader  *csv.Reader
	head    []string
	dedup   map[string]bool
	quoted  bool
}

func newDelimitedSource(r io.Reader, delim rune, quotedValues bool) (*delimitedSource, error) {
	if quotedValues {
		br := bufio.NewReader(r)
		stripBOM(br)
		r = br
	}

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: reading header row: %w", err)
	}

	s := &delimitedSource{reader: cr, quoted: quotedValues}
	norm, dedup, err := normalizeHeaders(head)
	if err != nil {
		return nil, err
	}
	s.head = norm
	s.dedup = dedup
	return s, nil
}

func (s *delimitedSource) headers() ([]string, error) { return s.head, nil }

func (s *delimitedSource) next() (map[string]string, bool, error) {
	rec, err := s.reader.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("importer: reading row: %w", err)
	}
	row := make(map[string]string, len(s.head))
	for i, h := range s.head {
		if i < len(rec) {
			row[h] = rec[i]
		} else {
			row[h] = ""
		}
	}
	return row, true, nil
}

func stripBOM(br *bufio.Reader) {
	bom, err := br.Peek(3)
	if err == nil && len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		br.Discard(3)
	}
}

// normalizeHeaders applies trim().lower() and rejects duplicates
// (spec.md §4.8).
func normalizeHeaders(raw []string) ([]string, map[string]bool, error) {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		n := strings.ToLower(strings.TrimSpace(h))
		if seen[n] {
			return nil, nil, fmt.Errorf("importer: duplicate header %q", n)
		}
		seen[n] = true
		out[i] = n
	}
	return out, seen, nil
}

// jsonSource backs both JSON (top-level array or single object) and
// JSONL (one object per line, blanks skipped). Both are read fully
// into memory up front: a JSON value's shape (array vs. object) can
// only be told apart by looking at the whole document, and import
// files here are desktop-sized, not warehouse-scale.
type jsonSource struct {
	rows []map[string]interface{}
	idx  int
	head []string
}

func newJSONSource(r io.Reader, lines bool) (*jsonSource, error) {
	s := &jsonSource{}

	if lines {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				var obj map[string]interface{}
				if jerr := json.Unmarshal([]byte(trimmed), &obj); jerr != nil {
					return nil, fmt.Errorf("importer: parsing JSONL row: %w", jerr)
				}
				s.rows = append(s.rows, obj)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("importer: reading JSONL: %w", err)
			}
		}
	} else {
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("importer: reading JSON: %w", err)
		}
		var anyVal interface{}
		if err := json.Unmarshal(raw, &anyVal); err != nil {
			return nil, fmt.Errorf("importer: parsing JSON: %w", err)
		}
		switch v := anyVal.(type) {
		case []interface{}:
			for _, item := range v {
				obj, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("importer: JSON array elements must be objects")
				}
				s.rows = append(s.rows, obj)
			}
		case map[string]interface{}:
			s.rows = append(s.rows, v)
		default:
			return nil, fmt.Errorf("importer: JSON top level must be an array or an object")
		}
	}

	if len(s.rows) > 0 {
		head, _, err := normalizeHeaderSet(s.rows[0])
		if err != nil {
			return nil, err
		}
		s.head = head
	}
	return s, nil
}

func (s *jsonSource) headers() ([]string, error) { return s.head, nil }

func normalizeHeaderSet(row map[string]interface{}) ([]string, map[string]bool, error) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	return normalizeHeaders(keys)
}

func (s *jsonSource) next() (map[string]string, bool, error) {
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	raw := s.rows[s.idx]
	s.idx++

	row := make(map[string]string, len(raw))
	for k, v := range raw {
		n := strings.ToLower(strings.TrimSpace(k))
		row[n] = jsonValueToText(v)
	}
	return row, true, nil
}

func jsonValueToText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// xmlRecords captures the flat <RECORDS><RECORD><Col>v</Col>...</RECORD></RECORDS>
// shape spec.md §4.8 describes for XML import.
type xmlRecords struct {
	Records []xmlRecord `xml:"RECORD"`
}

type xmlRecord struct {
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlSource struct {
	rows []map[string]string
	head []string
	idx  int
}

func newXMLSource(r io.Reader) (*xmlSource, error) {
	var recs xmlRecords
	if err := xml.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("importer: parsing XML: %w", err)
	}
	if len(recs.Records) == 0 {
		return &xmlSource{}, nil
	}

	var order []string
	rows := make([]map[string]string, len(recs.Records))
	for i, rec := range recs.Records {
		row := make(map[string]string, len(rec.Fields))
		for _, f := range rec.Fields {
			n := strings.ToLower(strings.TrimSpace(f.XMLName.Local))
			if i == 0 {
				order = append(order, n)
			}
			row[n] = f.Value
		}
		rows[i] = row
	}
	head, _, err := normalizeHeaders(order)
	if err != nil {
		return nil, err
	}
	return &xmlSource{rows: rows, head: head}, nil
}

func (s *xmlSource) headers() ([]string, error) { return s.head, nil }

func (s *xmlSource) next() (map[string]string, bool, error) {
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	return row, true, nil
}

// xlsxSource reads the first worksheet via excelize, first row as
// headers.
type xlsxSource struct {
	rows [][]string
	head []string
	idx  int
}

func newXLSXSource(r io.Reader) (*xlsxSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("importer: opening XLSX: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("importer: reading XLSX sheet: %w", err)
	}
	if len(rows) == 0 {
		return &xlsxSource{}, nil
	}

	head, _, err := normalizeHeaders(rows[0])
	if err != nil {
		return nil, err
	}
	return &xlsxSource{rows: rows[1:], head: head}, nil
}

func (s *xlsxSource) headers() ([]string, error) { return s.head, nil }

func (s *xlsxSource) next() (map[string]string, bool, error) {
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	rec := s.rows[s.idx]
	s.idx++
	row := make(map[string]string, len(s.head))
	for i, h := range s.head {
		if i < len(rec) {
			row[h] = rec[i]
		} else {
			row[h] = ""
		}
	}
	return row, true, nil
}
