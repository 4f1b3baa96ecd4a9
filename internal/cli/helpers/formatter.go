package helpers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// Formatter writes data to w. Table and CSV output need a slice of structs
// whose printable fields carry a `header:"..."` tag.
type Formatter interface {
	Format(data any, w io.Writer) error
}

// NewFormatter returns the formatter for format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatTable:
		return &TableFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// JSONFormatter prints indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// TableFormatter prints aligned columns.
type TableFormatter struct{}

func (f *TableFormatter) Format(data any, w io.Writer) error {
	headers, rows, err := tabulate(data)
	if err != nil || headers == nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// CSVFormatter prints RFC 4180 CSV with a header row.
type CSVFormatter struct{}

func (f *CSVFormatter) Format(data any, w io.Writer) error {
	headers, rows, err := tabulate(data)
	if err != nil || headers == nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// tabulate returns nil headers for an empty slice.
func tabulate(data any) ([]string, [][]string, error) {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("data must be a slice, got %T", data)
	}
	if val.Len() == 0 {
		return nil, nil, nil
	}

	elem := val.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	var (
		headers []string
		fields  []int
	)
	for i := 0; i < elem.NumField(); i++ {
		if tag := elem.Field(i).Tag.Get("header"); tag != "" {
			headers = append(headers, tag)
			fields = append(fields, i)
		}
	}

	rows := make([][]string, val.Len())
	for i := range rows {
		item := reflect.Indirect(val.Index(i))
		row := make([]string, len(fields))
		for j, idx := range fields {
			row[j] = cell(item.Field(idx).Interface())
		}
		rows[i] = row
	}
	return headers, rows, nil
}

func cell(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case time.Time:
		return x.Local().Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
