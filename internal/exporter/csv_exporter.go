package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/YKarmar/JobMail/internal/types"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
	topCompanies    = 10
)

type CSVExporter struct {
	filename string
}

func NewCSVExporter(filename string) *CSVExporter {
	return &CSVExporter{
		filename: filename,
	}
}

func (ce *CSVExporter) Filename() string {
	return ce.filename
}

// StatisticsFilename is the companion statistics file, e.g. jobs.csv gives
// jobs_statistics.csv.
func (ce *CSVExporter) StatisticsFilename() string {
	ext := filepath.Ext(ce.filename)
	if ext == "" {
		ext = ".csv"
	}
	return strings.TrimSuffix(ce.filename, filepath.Ext(ce.filename)) + "_statistics" + ext
}

func (ce *CSVExporter) ExportJobApplications(applications []types.JobApplication) error {
	return writeCSVFile(ce.filename, func(writer *csv.Writer) error {
		headers := []string{
			"Company",
			"Position",
			"Status",
			"Location",
			"Salary Range",
			"Job URL",
			"Source",
			"Applied Date",
			"Email ID",
			"Notes",
			"Created At",
		}
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("write CSV headers: %w", err)
		}

		for _, app := range applications {
			record := []string{
				app.Company,
				app.Position,
				string(app.Status),
				deref(app.Location),
				deref(app.SalaryRange),
				deref(app.JobURL),
				deref(app.Source),
				formatDate(app.AppliedDate),
				deref(app.EmailID),
				deref(app.Notes),
				app.CreatedAt.Format(timestampLayout),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write CSV record: %w", err)
			}
		}
		return nil
	})
}

// ExportStatistics writes status counts and the most frequent companies to
// StatisticsFilename.
func (ce *CSVExporter) ExportStatistics(applications []types.JobApplication) error {
	return writeCSVFile(ce.StatisticsFilename(), func(writer *csv.Writer) error {
		statusCount := countByStatus(applications)

		rows := [][]string{
			{"Status Summary"},
			{"Status", "Count"},
		}
		for _, status := range types.Statuses {
			rows = append(rows, []string{string(status), strconv.Itoa(statusCount[status])})
		}

		rows = append(rows,
			[]string{},
			[]string{"Top Companies"},
			[]string{"Company", "Applications"},
		)
		for _, cs := range rankCompanies(applications, topCompanies) {
			rows = append(rows, []string{cs.name, strconv.Itoa(cs.count)})
		}

		if err := writer.WriteAll(rows); err != nil {
			return fmt.Errorf("write statistics: %w", err)
		}
		return nil
	})
}

// PrintJobStatistics writes a short human readable summary to w.
func PrintJobStatistics(w io.Writer, applications []types.JobApplication) {
	if len(applications) == 0 {
		fmt.Fprintln(w, "No job applications found")
		return
	}

	fmt.Fprintf(w, "\n=== Job Application Summary ===\n")
	fmt.Fprintf(w, "%d applications tracked\n\n", len(applications))

	statusCount := countByStatus(applications)
	fmt.Fprintln(w, "By status:")
	for _, status := range types.Statuses {
		if n := statusCount[status]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", status, n)
		}
	}

	companies := rankCompanies(applications, 0)
	fmt.Fprintf(w, "\nCompanies: %d\n", len(companies))

	if len(companies) > 5 {
		companies = companies[:5]
	}
	if len(companies) > 0 {
		fmt.Fprintln(w, "\nMost applications:")
		for _, cs := range companies {
			fmt.Fprintf(w, "  %s: %d\n", cs.name, cs.count)
		}
	}
}

type companyStats struct {
	name  string
	count int
}

// rankCompanies orders companies by application count, then name. A limit
// of zero keeps every company.
func rankCompanies(applications []types.JobApplication, limit int) []companyStats {
	companyCount := make(map[string]int)
	for _, app := range applications {
		if app.Company != "" {
			companyCount[app.Company]++
		}
	}

	companies := make([]companyStats, 0, len(companyCount))
	for company, count := range companyCount {
		companies = append(companies, companyStats{company, count})
	}
	sort.Slice(companies, func(i, j int) bool {
		if companies[i].count != companies[j].count {
			return companies[i].count > companies[j].count
		}
		return companies[i].name < companies[j].name
	})

	if limit > 0 && len(companies) > limit {
		companies = companies[:limit]
	}
	return companies
}

func countByStatus(applications []types.JobApplication) map[types.Status]int {
	statusCount := make(map[types.Status]int)
	for _, app := range applications {
		statusCount[app.Status]++
	}
	return statusCount
}

func writeCSVFile(filename string, fill func(*csv.Writer) error) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := fill(writer); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", filename, err)
	}
	return file.Close()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
