package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/brightclass/exam-service/internal/models"
	"github.com/brightclass/exam-service/internal/repositories"
)

// ExportScores renders an exam's marked scores as an xlsx workbook for
// offline review and record keeping.
func (s *resultService) ExportScores(ctx context.Context, examID uint, userID string) ([]byte, error) {
	user, err := s.requireStaff(ctx, userID, examID, "result", "export")
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if user.Role != models.RoleGlobalAdmin && user.SchoolID != exam.SchoolID {
		return nil, NewPermissionError(userID, examID, "result", "export", "different school")
	}

	submissions, err := s.listMarkedSessions(ctx, examID, nil)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Scores"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []interface{}{"Student ID", "Student Name", "Score", "Out Of", "Marked By", "Marked At", "Published"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, submission := range submissions {
		name := ""
		if user, uerr := s.repo.User().GetByID(ctx, submission.StudentID); uerr == nil {
			name = user.FullName
		}

		markedAt := ""
		if submission.MarkedAt != nil {
			markedAt = submission.MarkedAt.Format("2006-01-02 15:04")
		}

		row := []interface{}{
			submission.StudentID,
			name,
			submission.TotalScore,
			exam.TotalMarks,
			string(submission.MarkedBy),
			markedAt,
			submission.IsPublished,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Scores exported",
		"exam_id", examID,
		"rows", len(submissions),
		"exported_by", userID)

	return buf.Bytes(), nil
}
