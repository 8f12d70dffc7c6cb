// Package facts loads audit targets and the business facts each site is
// expected to show from a CSV or XLSX brief.
package facts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/pkg/utils"
	"github.com/xuri/excelize/v2"
)

var (
	ErrMissingColumn     = errors.New("required column missing")
	ErrUnsupportedFormat = errors.New("unsupported facts file format")
	ErrEmpty             = errors.New("facts file has no header row")
)

// RowError describes a row that could not become a target.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// LoadResult holds the valid targets and the rejected rows of a brief.
type LoadResult struct {
	Targets []entity.SiteTarget
	Errors  []RowError
}

// Load reads path as CSV or XLSX according to its extension.
func Load(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV parses a CSV brief. Malformed rows, such as a wrong field count or
// a stray quote, are reported and skipped.
func ReadCSV(r io.Reader) (*LoadResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := newColumns(header)
	if err != nil {
		return nil, err
	}

	res := &LoadResult{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				res.Errors = append(res.Errors, RowError{Line: pe.StartLine, Reason: pe.Err.Error()})
				continue
			}
			return res, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		cols.add(res, line, record)
	}
	return res, nil
}

// ReadXLSX parses the first sheet of a workbook.
func ReadXLSX(r io.Reader) (*LoadResult, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	cols, err := newColumns(rows[0])
	if err != nil {
		return nil, err
	}

	res := &LoadResult{}
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cols.add(res, i+2, row)
	}
	return res, nil
}

// columns maps header names to field positions.
type columns map[string]int

const (
	colWebsite  = "website"
	colCompany  = "companyname"
	colPhone    = "phone"
	colAddress  = "address"
	colHours    = "hours"
	colSitemap  = "sitemap"
	colUsername = "username"
	colPassword = "password"
	colMaxPages = "maxpages"
)

func newColumns(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.NewReplacer(" ", "", "_", "").Replace(key)
		if _, dup := cols[key]; !dup && key != "" {
			cols[key] = i
		}
	}
	if _, ok := cols[colWebsite]; !ok {
		return nil, fmt.Errorf("%w: Website", ErrMissingColumn)
	}
	return cols, nil
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columns) add(res *LoadResult, line int, record []string) {
	website := c.get(record, colWebsite)
	if website == "" {
		res.Errors = append(res.Errors, RowError{Line: line, Reason: "missing website"})
		return
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	site := utils.MustParseSite(website)
	if site == nil || (site.Scheme != "http" && site.Scheme != "https") {
		res.Errors = append(res.Errors, RowError{Line: line, Reason: fmt.Sprintf("invalid website %q", c.get(record, colWebsite))})
		return
	}

	target := entity.SiteTarget{
		Website:    website,
		SitemapURL: c.get(record, colSitemap),
		Facts: entity.ExpectedFacts{
			CompanyName: c.get(record, colCompany),
			Phones:      SplitMulti(c.get(record, colPhone)),
			Addresses:   SplitMulti(c.get(record, colAddress)),
			Hours:       SplitMulti(c.get(record, colHours)),
		},
	}
	if user := c.get(record, colUsername); user != "" {
		target.Auth = &entity.BasicAuth{Username: user, Password: c.get(record, colPassword)}
	}
	if raw := c.get(record, colMaxPages); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			res.Errors = append(res.Errors, RowError{Line: line, Reason: fmt.Sprintf("invalid max pages %q", raw)})
			return
		}
		target.MaxPages = n
	}
	res.Targets = append(res.Targets, target)
}

// SplitMulti splits a multi-valued cell on ';', dropping empty parts.
func SplitMulti(cell string) []string {
	var out []string
	for _, part := range strings.Split(cell, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
