package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var ErrRecipeFile = errors.New("invalid recipe file")

// ReadRecipe reads component lines from a .csv or .xlsx file: material id in
// the first column, quantity per unit in the second. A leading header row and
// blank rows are skipped. encoding "gbk" decodes CSV exported by Chinese Excel.
func ReadRecipe(r io.Reader, filename, encoding string) ([]model.BomComponentInput, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = xlsxRows(r)
	case ".csv", "":
		rows, err = csvRows(r, encoding)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrRecipeFile, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	return parseRecipeRows(rows)
}

func csvRows(r io.Reader, encoding string) ([][]string, error) {
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
	case "gbk":
		// GBK → UTF-8
		r = transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrRecipeFile, encoding)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecipeFile, err)
	}
	return rows, nil
}

func xlsxRows(r io.Reader) ([][]string, error) {
	xlsx, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read Excel file: %v", ErrRecipeFile, err)
	}
	defer xlsx.Close()

	sheets := xlsx.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheet found in the Excel file", ErrRecipeFile)
	}
	rows, err := xlsx.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read rows from sheet: %v", ErrRecipeFile, err)
	}
	return rows, nil
}

func parseRecipeRows(rows [][]string) ([]model.BomComponentInput, error) {
	var out []model.BomComponentInput
	for i, row := range rows {
		if blank(row) {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: row %d needs a material id and a quantity", ErrRecipeFile, i+1)
		}
		idCell, qtyCell := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		id, err := strconv.ParseInt(idCell, 10, 64)
		if err != nil {
			if len(out) == 0 && i == firstNonBlank(rows) {
				continue // header
			}
			return nil, fmt.Errorf("%w: row %d: invalid material id %q", ErrRecipeFile, i+1, idCell)
		}
		qty, err := decimal.NewFromString(qtyCell)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: invalid quantity %q", ErrRecipeFile, i+1, qtyCell)
		}
		out = append(out, model.BomComponentInput{ComponentID: id, Quantity: qty})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no components found", ErrRecipeFile)
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(rows [][]string) int {
	for i, row := range rows {
		if !blank(row) {
			return i
		}
	}
	return -1
}
