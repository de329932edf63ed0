package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/facette/natsort"
)

// CSV rows sort naturally by their first column.
type CSV [][]string

func (data CSV) Less(i, j int) bool {
	return natsort.Compare(data[i][0], data[j][0])
}

func (data CSV) Len() int {
	return len(data)
}

func (data CSV) Swap(i, j int) {
	data[i], data[j] = data[j], data[i]
}

// WriteCSV writes a header line followed by data. Rows are sorted first
// when sorted is set.
func WriteCSV(w io.Writer, columns []string, data CSV, sorted bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if sorted {
		sort.Stable(data)
	}
	if err := cw.WriteAll(data); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteAsCSV creates the output file for modelName and writes data into it.
func WriteAsCSV(data CSV, makeDir bool, path, subpath, modelName string, columns []string, sorted bool) error {
	f, err := OpenFile(makeDir, path, subpath, GetFilename(modelName), "csv")
	if err != nil {
		return fmt.Errorf("open %s output: %w", subpath, err)
	}
	if err := WriteCSV(f, columns, data, sorted); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
