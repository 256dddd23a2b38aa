package surveyapi

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName       = "Responses"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var fixedColumns = []string{"Submission ID", "Submitted At", "User ID", "Extra Info"}

// WriteXLSX writes one row per submission. Question columns follow the survey's
// question order; an unanswered question leaves its cell empty.
func WriteXLSX(w io.Writer, s survey.Survey, submissions []Submission) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	err := f.SetSheetName("Sheet1", SheetName)
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExportFailed, err)
	}

	header := make([]interface{}, 0, len(fixedColumns)+len(s.Questions))
	for _, c := range fixedColumns {
		header = append(header, c)
	}
	for _, q := range s.Questions {
		title := q.Title
		if title == "" {
			title = q.ID
		}
		header = append(header, title)
	}
	err = f.SetSheetRow(SheetName, "A1", &header)
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExportFailed, err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExportFailed, err)
	}
	err = f.SetRowStyle(SheetName, 1, 1, bold)
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExportFailed, err)
	}

	for i, sub := range submissions {
		byQuestion := make(map[string]survey.Entry, len(sub.Responses))
		for _, e := range sub.Responses {
			byQuestion[e.QuestionID] = e
		}

		row := []interface{}{
			sub.ID.String(),
			sub.SubmittedAt.UTC().Format(time.RFC3339),
			sub.UserID,
			sub.ExtraInfo,
		}
		for _, q := range s.Questions {
			row = append(row, CellValue(byQuestion[q.ID]))
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%w: %v", internal.ErrExportFailed, err)
		}
		err = f.SetSheetRow(SheetName, cell, &row)
		if err != nil {
			return fmt.Errorf("%w: %v", internal.ErrExportFailed, err)
		}
	}

	err = f.Write(w)
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExportFailed, err)
	}
	return nil
}

// CellValue renders an entry as spreadsheet text.
func CellValue(e survey.Entry) string {
	switch {
	case len(e.Answers) > 0:
		parts := make([]string, len(e.Answers))
		for i, a := range e.Answers {
			parts[i] = a.TextValue
		}
		return strings.Join(parts, ", ")
	case e.NumberValue != nil && e.TextValue == "":
		return strconv.Itoa(*e.NumberValue)
	case e.BooleanValue != nil && e.TextValue == "":
		return strconv.FormatBool(*e.BooleanValue)
	}
	return e.TextValue
}
