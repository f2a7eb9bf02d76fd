// Package ingest converts uploaded tabular files (CSV or spreadsheet)
// into a validated recipient list. Container decoding is separated from
// normalization: decoders produce a Table, Normalize turns a Table into
// recipients.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// emailColumns and nameColumns are the candidate header names, matched
// case-insensitively. Order matters: the first header matching any
// candidate wins.
var (
	emailColumns = []string{"email", "e-mail", "mail", "email_address", "address"}
	nameColumns  = []string{"name", "full_name", "fullname", "username", "display_name", "user"}
)

// Row is one decoded tabular row: column name to cell value.
type Row map[string]string

// Recipient is a validated email address eligible to receive a campaign
// email. Raw preserves the original row's fields.
type Recipient struct {
	Email string
	Name  string
	Raw   Row
}

// Table is a decoded tabular dataset: an ordered header plus records.
type Table struct {
	Header  []string
	Records [][]string
}

// Columns is the detected column mapping for a dataset. An index of -1
// means the column was not found.
type Columns struct {
	Email int
	Name  int
}

// DetectColumns locates the email- and name-bearing columns in a header.
// Detection runs once per dataset and the mapping is applied uniformly
// to every record.
func DetectColumns(header []string) Columns {
	cols := Columns{Email: -1, Name: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if cols.Email == -1 && matchesAny(h, emailColumns) {
			cols.Email = i
		}
		if cols.Name == -1 && matchesAny(h, nameColumns) {
			cols.Name = i
		}
	}
	return cols
}

func matchesAny(header string, candidates []string) bool {
	for _, c := range candidates {
		if header == c {
			return true
		}
	}
	return false
}

// Normalize produces the recipient list for a table. A record yields a
// recipient only if its email cell, after trimming, contains both "@"
// and ".". Records failing validation are silently dropped; duplicates
// are kept. The result is a pure function of the input table.
func Normalize(t *Table) []Recipient {
	cols := DetectColumns(t.Header)
	if cols.Email == -1 {
		return nil
	}

	var recipients []Recipient
	for _, record := range t.Records {
		email := strings.TrimSpace(cell(record, cols.Email))
		if email == "" || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
			continue
		}

		name := ""
		if cols.Name != -1 {
			name = strings.TrimSpace(cell(record, cols.Name))
		}

		raw := make(Row, len(t.Header))
		for i, h := range t.Header {
			raw[h] = cell(record, i)
		}

		recipients = append(recipients, Recipient{Email: email, Name: name, Raw: raw})
	}
	return recipients
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// ReadCSV decodes delimited text into a Table. The first row is the
// header; ragged records are tolerated (missing cells read as empty).
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		records = append(records, record)
	}

	return &Table{Header: header, Records: records}, nil
}

// ReadFile decodes a recipient file by extension (.csv, .xlsx, .xls)
// and normalizes it. Re-reading the same file yields the same list.
func ReadFile(path string) ([]Recipient, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		f, err := openFile(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		t, err := ReadCSV(f)
		if err != nil {
			return nil, err
		}
		return Normalize(t), nil

	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		t, err := ReadXLSX(path)
		if err != nil {
			return nil, err
		}
		return Normalize(t), nil

	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}
