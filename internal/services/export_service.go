package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/xuri/excelize/v2"
)

const rosterSheet = "Contributors"

var rosterHeader = []interface{}{
	"Login", "Role", "Blocked", "Total PRs", "Avg Lines Changed",
	"Issues Resolved", "Issues Stale", "Open Assignments", "Manual Assignments", "Nearest Deadline",
}

// ExportService writes the contributor roster as a spreadsheet.
type ExportService struct {
	contributors *repositories.ContributorRepository
}

func NewExportService(contributors *repositories.ContributorRepository) *ExportService {
	return &ExportService{contributors: contributors}
}

// BuildRoster builds the workbook for the given records, sorted by login.
func BuildRoster(contributors []*models.Contributor) (*excelize.File, error) {
	sorted := append([]*models.Contributor(nil), contributors...)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].GitHub.Login) < strings.ToLower(sorted[j].GitHub.Login)
	})

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetRow(rosterSheet, "A1", &rosterHeader); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetRowStyle(rosterSheet, 1, 1, bold); err != nil {
		f.Close()
		return nil, err
	}

	for i, c := range sorted {
		deadline := ""
		if d, ok := c.NearestDeadline(); ok {
			deadline = d.UTC().Format("2006-01-02 15:04")
		}
		row := []interface{}{
			c.GitHub.Login,
			string(c.Status.CurrentRole),
			c.Status.Blocked,
			c.Stats.TotalPRs,
			c.Stats.AvgLinesChanged,
			c.Stats.IssuesResolved,
			c.Stats.IssuesStale,
			len(c.Assignments),
			len(c.ManualAssignments),
			deadline,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(rosterSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.SetColWidth(rosterSheet, "A", "J", 18); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Export writes the roster to w and returns the number of contributors.
func (s *ExportService) Export(ctx context.Context, w io.Writer) (int, error) {
	all, err := s.contributors.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	f, err := BuildRoster(all)
	if err != nil {
		return 0, fmt.Errorf("failed to build roster: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write roster: %w", err)
	}
	logger.Component("export").WithField("contributors", len(all)).Info("Exported roster")
	return len(all), nil
}
