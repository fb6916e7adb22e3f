package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/jiaming2012/optionprisma/src/models"
)

func ExportToCsv(outDir string, results []models.SimulationResult, outFilePrefix string) (string, error) {
	now := time.Now()
	outFilePath := path.Join(outDir, fmt.Sprintf("%s_%s.csv", outFilePrefix, now.Format("2006-01-02_15-04-05")))

	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("ExportToCsv: failed to create directory: %w", err)
	}

	file, err := os.Create(outFilePath)
	if err != nil {
		return "", fmt.Errorf("ExportToCsv: failed to create file: %w", err)
	}
	defer file.Close()

	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		writer := csv.NewWriter(out)
		writer.Comma = ','
		return gocsv.NewSafeCSVWriter(writer)
	})

	rows := make([]models.SimulationRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.ToRow())
	}

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return "", fmt.Errorf("ExportToCsv: failed to write to file: %w", err)
	}

	return outFilePath, nil
}
