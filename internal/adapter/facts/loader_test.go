package facts

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/entity"
	"github.com/xuri/excelize/v2"
)

const brief = `Website,Company Name,Phone,Address,Hours,Sitemap,Username,Password
https://acme.example,Acme Plumbing,555-0100; 555-0199 ;,"123 Main St, Springfield",Mon-Fri 9-5,,,
,Nobody,,,,,,
acme-staging.example,Acme,,,,https://acme-staging.example/sitemap_index.xml,qa,secret
https://short.example,too,few
`

func TestReadCSV(t *testing.T) {
	res, err := ReadCSV(strings.NewReader(brief))
	require.NoError(t, err)
	require.Len(t, res.Targets, 2)

	first := res.Targets[0]
	assert.Equal(t, "https://acme.example", first.Website)
	assert.Equal(t, entity.ExpectedFacts{
		CompanyName: "Acme Plumbing",
		Phones:      []string{"555-0100", "555-0199"},
		Addresses:   []string{"123 Main St, Springfield"},
		Hours:       []string{"Mon-Fri 9-5"},
	}, first.Facts)
	assert.Nil(t, first.Auth)

	second := res.Targets[1]
	assert.Equal(t, "https://acme-staging.example", second.Website)
	assert.Equal(t, "https://acme-staging.example/sitemap_index.xml", second.SitemapURL)
	require.NotNil(t, second.Auth)
	assert.Equal(t, "qa", second.Auth.Username)
	assert.Equal(t, "secret", second.Auth.Password)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Errors[0].Line)
	assert.Equal(t, "missing website", res.Errors[0].Reason)
	assert.Equal(t, 5, res.Errors[1].Line)
}

func TestReadCSVSkipsMalformedRow(t *testing.T) {
	const body = "Website,Company Name,Phone\n" +
		"https://a.example,Acme,555-0100\n" +
		"https://b.example,Bob \"The\" Builder,555-0101\n" +
		"https://c.example,Cee,555-0102\n"
	res, err := ReadCSV(strings.NewReader(body))
	require.NoError(t, err)

	require.Len(t, res.Targets, 2)
	assert.Equal(t, "https://a.example", res.Targets[0].Website)
	assert.Equal(t, "https://c.example", res.Targets[1].Website)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Line)
	assert.Contains(t, res.Errors[0].Reason, "bare \"")
}

func TestReadCSVMissingWebsiteColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Company,Phone\nAcme,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReadXLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"WEBSITE", "CompanyName", "Phone", "MaxPages"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"https://acme.example", "Acme", "555-0100;555-0199", "25"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A4", &[]any{"notaurl://", "Broken"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A5", &[]any{"https://b.example", "B", "", "lots"}))
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	res, err := ReadXLSX(&buf)
	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, 25, res.Targets[0].MaxPages)
	assert.Equal(t, []string{"555-0100", "555-0199"}, res.Targets[0].Facts.Phones)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, 4, res.Errors[0].Line)
	assert.Equal(t, 5, res.Errors[1].Line)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.csv")
	require.NoError(t, os.WriteFile(path, []byte("Website\nhttps://acme.example\n"), 0o644))
	res, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, res.Targets, 1)

	other := filepath.Join(dir, "brief.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	_, err = Load(other)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSplitMulti(t *testing.T) {
	assert.Nil(t, SplitMulti(" ; ;"))
	assert.Equal(t, []string{"a", "b"}, SplitMulti("a;b;"))
}
