// Package xlsx renders aggregation results as a spreadsheet: one sheet per
// metric with entities as rows and report dates as columns, shaded with a
// two-colour scale, plus a sheet of historic pandemic death tolls for scale.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/reference"
)

// HistoricSheet names the sheet listing historic pandemics.
const HistoricSheet = "historic"

const (
	lowColor  = "#FFFFFF"
	highColor = "#F8696B"
)

// Write renders result to w. lag is the doubling-time window, in report days,
// for the trailing doubling column of each sheet.
func Write(w io.Writer, result *domain.Result, lag int) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	first := true
	for _, m := range metrics(result) {
		name := string(m)
		if first {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return err
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeMetricSheet(f, name, result, m, lag, bold); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	if _, err := f.NewSheet(HistoricSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", HistoricSheet, err)
	}
	if err := writeHistoricSheet(f, bold); err != nil {
		return fmt.Errorf("sheet %s: %w", HistoricSheet, err)
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

// metrics lists the metrics every entity of the result carries.
func metrics(result *domain.Result) []domain.Metric {
	out := []domain.Metric{domain.MetricConfirmed, domain.MetricDeaths, domain.MetricRecovered, domain.MetricActive, domain.MetricDaily}
	if result.Universe == domain.UniverseUS {
		out = append(out, domain.MetricConfirmedNormalized)
	}
	return out
}

func writeMetricSheet(f *excelize.File, sheet string, result *domain.Result, m domain.Metric, lag int, headerStyle int) error {
	header := make([]any, 0, len(result.Dates)+2)
	header = append(header, "entity")
	for _, d := range result.Dates {
		header = append(header, d.Format("2006-01-02"))
	}
	header = append(header, fmt.Sprintf("doubling days (%d-day lag)", lag))
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	keys := result.Rank(m)
	for i, key := range keys {
		s, ok := result.Metric(key, m)
		if !ok {
			continue
		}
		row := make([]any, 0, len(s)+2)
		row = append(row, key)
		for _, v := range s {
			if domain.IsNoValue(v) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		doubling, _ := domain.LatestDoublingTime(s, lag)
		row = append(row, doubling)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if len(keys) > 0 && len(result.Dates) > 0 {
		dataEnd, _ := excelize.CoordinatesToCellName(len(result.Dates)+1, len(keys)+1)
		err := f.SetConditionalFormat(sheet, "B2:"+dataEnd, []excelize.ConditionalFormatOptions{{
			Type:     "2_color_scale",
			Criteria: "=",
			MinType:  "min",
			MaxType:  "max",
			MinColor: lowColor,
			MaxColor: highColor,
		}})
		if err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	})
}

func writeHistoricSheet(f *excelize.File, headerStyle int) error {
	header := []any{"name", "year", "deaths", "label"}
	if err := f.SetSheetRow(HistoricSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(HistoricSheet, "A1", "D1", headerStyle); err != nil {
		return err
	}
	for i, h := range reference.HistoricDeathTolls() {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{h.Name, h.Year, h.Deaths, h.Label}
		if err := f.SetSheetRow(HistoricSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(HistoricSheet, "A", "A", 28)
}
