package loader

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/rewired-gh/slotscope/internal/models"
)

// Mandatory columns of every store export. Japanese headers from the raw
// exports are accepted as aliases.
const (
	ColDate    = "date"
	ColModel   = "model name"
	ColMachine = "machine id"
)

var columnAliases = map[string][]string{
	ColDate:    {ColDate, "日付"},
	ColModel:   {ColModel, "機種名"},
	ColMachine: {ColMachine, "台番号"},
}

// Columns never offered as metrics even when numeric.
var excludedMetricColumns = map[string]bool{
	"store": true,
	"店舗名":   true,
}

var dateLayouts = []string{"2006-01-02", "2006/01/02"}

// ParseTable parses a raw CSV payload into a Table. The date column is
// normalized to midnight UTC; all other columns are preserved verbatim, with
// fully numeric non-mandatory columns becoming the metric enumeration.
// Empty metric cells stay absent from the record, never zero.
func ParseTable(store string, payload []byte) (*models.Table, error) {
	df := dataframe.ReadCSV(bytes.NewReader(payload),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
	)
	if df.Err != nil {
		return nil, &models.LoadError{Store: store, Cause: df.Err}
	}

	names := df.Names()
	dateIdx, err := findColumn(store, names, ColDate)
	if err != nil {
		return nil, err
	}
	modelIdx, err := findColumn(store, names, ColModel)
	if err != nil {
		return nil, err
	}
	machineIdx, err := findColumn(store, names, ColMachine)
	if err != nil {
		return nil, err
	}

	rows := df.Records()
	if len(rows) > 0 {
		rows = rows[1:] // header
	}

	metricIdx := detectMetricColumns(names, rows, dateIdx, modelIdx, machineIdx)
	if len(metricIdx) == 0 {
		return nil, &models.LoadError{Store: store, Cause: fmt.Errorf("no numeric metric column found")}
	}

	table := &models.Table{
		Store:     store,
		Columns:   names,
		FetchedAt: time.Now(),
	}
	for _, idx := range metricIdx {
		table.MetricColumns = append(table.MetricColumns, names[idx])
	}

	for i, row := range rows {
		date, err := parseDate(row[dateIdx])
		if err != nil {
			return nil, &models.LoadError{
				Store: store,
				Cause: fmt.Errorf("row %d: %w", i+1, err),
			}
		}
		record := models.Record{
			Date:      date,
			Model:     strings.TrimSpace(row[modelIdx]),
			MachineID: strings.TrimSpace(row[machineIdx]),
			Store:     store,
			Metrics:   make(map[string]float64, len(metricIdx)),
		}
		for _, idx := range metricIdx {
			cell := strings.TrimSpace(row[idx])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			record.Metrics[names[idx]] = v
		}
		table.Records = append(table.Records, record)
	}

	if err := table.Validate(); err != nil {
		return nil, &models.LoadError{Store: store, Cause: err}
	}
	return table, nil
}

func findColumn(store string, names []string, canonical string) (int, error) {
	for _, alias := range columnAliases[canonical] {
		for i, name := range names {
			if strings.EqualFold(strings.TrimSpace(name), alias) {
				return i, nil
			}
		}
	}
	return -1, &models.MissingColumnError{Store: store, Column: canonical}
}

// detectMetricColumns returns the indexes of columns whose every non-empty
// cell parses as a number, with at least one non-empty cell. Column order
// is preserved.
func detectMetricColumns(names []string, rows [][]string, mandatory ...int) []int {
	isMandatory := make(map[int]bool, len(mandatory))
	for _, idx := range mandatory {
		isMandatory[idx] = true
	}

	var out []int
	for idx, name := range names {
		if isMandatory[idx] || excludedMetricColumns[strings.ToLower(strings.TrimSpace(name))] {
			continue
		}
		numeric := false
		for _, row := range rows {
			cell := strings.TrimSpace(row[idx])
			if cell == "" {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
			numeric = true
		}
		if numeric {
			out = append(out, idx)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}
