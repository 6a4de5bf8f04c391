package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rewired-gh/slotscope/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(date, model, machine string, metric string, value float64) models.Record {
	return models.Record{
		Date:      day(date),
		Model:     model,
		MachineID: machine,
		Store:     "test-store",
		Metrics:   map[string]float64{metric: value},
	}
}

func testTable(records ...models.Record) *models.Table {
	return &models.Table{
		Store:         "test-store",
		Records:       records,
		Columns:       []string{"date", "model name", "machine id", "max retained balls"},
		MetricColumns: []string{"max retained balls"},
		FetchedAt:     time.Now(),
	}
}

func TestFilterByModel(t *testing.T) {
	table := testTable(
		rec("2024-01-01", "M1", "1", "max retained balls", 100),
		rec("2024-01-01", "M2", "7", "max retained balls", 300),
		rec("2024-01-02", "M1", "1", "max retained balls", 150),
	)

	view := FilterByModel(table, "M1")
	if len(view.Records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(view.Records))
	}
	for i := range view.Records {
		if view.Records[i].Model != "M1" {
			t.Errorf("row %d has model %q, want M1", i, view.Records[i].Model)
		}
	}
}

func TestFilterByModel_Partition(t *testing.T) {
	table := testTable(
		rec("2024-01-01", "M1", "1", "max retained balls", 100),
		rec("2024-01-01", "M2", "7", "max retained balls", 300),
		rec("2024-01-02", "M1", "1", "max retained balls", 150),
		rec("2024-01-02", "M3", "21", "max retained balls", 50),
	)

	total := 0
	for _, m := range table.Models() {
		total += len(FilterByModel(table, m).Records)
	}
	if total != len(table.Records) {
		t.Errorf("union of per-model views has %d rows, want %d", total, len(table.Records))
	}
}

func TestFilterByModel_AbsentModel(t *testing.T) {
	table := testTable(rec("2024-01-01", "M1", "1", "max retained balls", 100))

	view := FilterByModel(table, "no-such-model")
	if !view.Empty() {
		t.Errorf("expected empty view, got %d rows", len(view.Records))
	}
}

func TestFilterByMachine(t *testing.T) {
	table := testTable(
		rec("2024-01-01", "M1", "1", "max retained balls", 100),
		rec("2024-01-01", "M1", "2", "max retained balls", 200),
		rec("2024-01-02", "M1", "1", "max retained balls", 150),
	)

	view := FilterByMachine(FilterByModel(table, "M1"), "1")
	if len(view.Records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(view.Records))
	}
	for i := range view.Records {
		if view.Records[i].MachineID != "1" {
			t.Errorf("row %d has machine %q, want 1", i, view.Records[i].MachineID)
		}
	}
}

func TestComputeRollingAverages_ClippedWindow(t *testing.T) {
	// The worked example from the dashboard docs: sparse dates, window 7.
	table := testTable(
		rec("2024-01-01", "M1", "1", "x", 100),
		rec("2024-01-02", "M1", "1", "x", 150),
		rec("2024-01-08", "M1", "1", "x", 200),
	)

	series := ComputeRollingAverages(FilterByModel(table, "M1"), "x", []int{7})
	want := []float64{100, 125, 150}
	if len(series.Points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(series.Points))
	}
	for i, p := range series.Points {
		if math.Abs(p.Means[0]-want[i]) > 1e-9 {
			t.Errorf("point %d: 7-day mean = %v, want %v", i, p.Means[0], want[i])
		}
	}
}

func TestComputeRollingAverages_SortsAndMatchesLength(t *testing.T) {
	table := testTable(
		rec("2024-01-03", "M1", "1", "x", 30),
		rec("2024-01-01", "M1", "1", "x", 10),
		rec("2024-01-02", "M1", "1", "x", 20),
	)

	series := ComputeRollingAverages(FilterByModel(table, "M1"), "x", nil)
	if len(series.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(series.Points))
	}
	for i := 1; i < len(series.Points); i++ {
		if !series.Points[i-1].Date.Before(series.Points[i].Date) {
			t.Errorf("points not ascending at index %d", i)
		}
	}
	// First point's means equal the first raw value for every window.
	first := series.Points[0]
	for wi := range series.Windows {
		if first.Means[wi] != first.Raw {
			t.Errorf("window %d: first mean = %v, want raw %v", series.Windows[wi], first.Means[wi], first.Raw)
		}
	}
}

func TestComputeRollingAverages_FullWindowMean(t *testing.T) {
	var records []models.Record
	base := day("2024-01-01")
	for i := 0; i < 20; i++ {
		records = append(records, models.Record{
			Date:      base.AddDate(0, 0, i),
			Model:     "M1",
			MachineID: "1",
			Store:     "test-store",
			Metrics:   map[string]float64{"x": float64(i + 1)},
		})
	}
	table := testTable(records...)

	series := ComputeRollingAverages(FilterByModel(table, "M1"), "x", []int{7, 14})
	last := series.Points[len(series.Points)-1]

	// Last 14 raw values are 7..20; their mean is 13.5.
	if math.Abs(last.Means[1]-13.5) > 1e-9 {
		t.Errorf("14-day mean at final point = %v, want 13.5", last.Means[1])
	}
	// Last 7 raw values are 14..20; their mean is 17.
	if math.Abs(last.Means[0]-17) > 1e-9 {
		t.Errorf("7-day mean at final point = %v, want 17", last.Means[0])
	}
}

func TestComputeRollingAverages_SkipsRowsMissingMetric(t *testing.T) {
	table := testTable(
		rec("2024-01-01", "M1", "1", "x", 100),
		models.Record{Date: day("2024-01-02"), Model: "M1", MachineID: "1", Store: "test-store", Metrics: map[string]float64{"other": 5}},
		rec("2024-01-03", "M1", "1", "x", 200),
	)

	series := ComputeRollingAverages(FilterByModel(table, "M1"), "x", []int{7})
	if len(series.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series.Points))
	}
	if series.Points[1].Means[0] != 150 {
		t.Errorf("second mean = %v, want 150", series.Points[1].Means[0])
	}
}

func TestBuildPivot(t *testing.T) {
	table := testTable(
		rec("2024-01-01", "M1", "1", "x", 100),
		rec("2024-01-02", "M1", "1", "x", 150),
		rec("2024-01-01", "M1", "2", "x", 300),
	)

	pivot, err := BuildPivot(FilterByModel(table, "M1"), "x", models.DuplicateFail)
	if err != nil {
		t.Fatalf("BuildPivot: %v", err)
	}
	if len(pivot.MachineIDs) != 2 || len(pivot.Dates) != 2 {
		t.Fatalf("got %dx%d pivot, want 2x2", len(pivot.MachineIDs), len(pivot.Dates))
	}
	if v, ok := pivot.Cell("1", day("2024-01-02")); !ok || v != 150 {
		t.Errorf("cell (1, 01-02) = %v, %v; want 150, true", v, ok)
	}
	// Machine 2 never reported on 01-02: cell must be absent, not zero.
	if _, ok := pivot.Cell("2", day("2024-01-02")); ok {
		t.Error("cell (2, 01-02) should be absent")
	}
}

func TestBuildPivot_DuplicatePolicies(t *testing.T) {
	dup := func() *models.FilteredView {
		table := testTable(
			rec("2024-01-01", "M1", "1", "x", 100),
			rec("2024-01-01", "M1", "1", "x", 200),
		)
		return FilterByModel(table, "M1")
	}

	if _, err := BuildPivot(dup(), "x", models.DuplicateFail); err == nil {
		t.Error("expected error under fail policy")
	} else {
		var ambiguous *models.AmbiguousValueError
		if !errors.As(err, &ambiguous) {
			t.Errorf("expected AmbiguousValueError, got %T", err)
		}
	}

	pivot, err := BuildPivot(dup(), "x", models.DuplicateLast)
	if err != nil {
		t.Fatalf("last policy: %v", err)
	}
	if v, _ := pivot.Cell("1", day("2024-01-01")); v != 200 {
		t.Errorf("last policy cell = %v, want 200", v)
	}

	pivot, err = BuildPivot(dup(), "x", models.DuplicateMean)
	if err != nil {
		t.Fatalf("mean policy: %v", err)
	}
	if v, _ := pivot.Cell("1", day("2024-01-01")); math.Abs(v-150) > 1e-9 {
		t.Errorf("mean policy cell = %v, want 150", v)
	}
}

func TestDailyMeans(t *testing.T) {
	table := testTable(
		rec("2024-01-01", "M1", "1", "x", 100),
		rec("2024-01-01", "M1", "2", "x", 200),
		rec("2024-01-02", "M1", "1", "x", 50),
	)

	means := DailyMeans(FilterByModel(table, "M1"), "x")
	if len(means) != 2 {
		t.Fatalf("expected 2 daily means, got %d", len(means))
	}
	if means[0].Mean != 150 {
		t.Errorf("day 1 mean = %v, want 150", means[0].Mean)
	}
	if means[1].Mean != 50 {
		t.Errorf("day 2 mean = %v, want 50", means[1].Mean)
	}
}

func TestMachinesOrdering(t *testing.T) {
	table := testTable(
		rec("2024-01-01", "M1", "21", "x", 1),
		rec("2024-01-01", "M1", "3", "x", 2),
		rec("2024-01-01", "M1", "101", "x", 3),
	)
	got := FilterByModel(table, "M1").Machines()
	want := []string{"3", "21", "101"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("machines = %v, want %v", got, want)
		}
	}
}
