package services

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	rankingSheet = "Ranking"
	answersSheet = "Respostas"
)

// ExportRanking renders a session's ranking and answer history as an .xlsx workbook.
func ExportRanking(session *models.GroupSession) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rankingSheet); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "rename sheet")
	}
	if err := writeRows(f, rankingSheet, rankingRows(session)); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(answersSheet); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "create answers sheet")
	}
	if err := writeRows(f, answersSheet, answerRows(session)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "write workbook")
	}
	return buf.Bytes(), nil
}

func rankingRows(session *models.GroupSession) [][]interface{} {
	rows := [][]interface{}{{"Posição", "Participante", "Pontos", "Acertos", "Respostas", "Aproveitamento (%)"}}
	for i, p := range session.Ranking() {
		rows = append(rows, []interface{}{
			i + 1, p.DisplayName(), p.TotalScore, p.CorrectAnswers, p.TotalAnswers,
			fmt.Sprintf("%.0f", p.Percentage()),
		})
	}
	return rows
}

func answerRows(session *models.GroupSession) [][]interface{} {
	rows := [][]interface{}{{"Pergunta", "Participante", "Resposta", "Correta", "Pontos", "Horário"}}
	for _, qs := range session.History {
		for _, a := range qs.Answers {
			letter := ""
			if a.AnswerIndex >= 0 && a.AnswerIndex < len(models.OptionLabels) {
				letter = models.OptionLabels[a.AnswerIndex]
			}
			correct := "não"
			if a.IsCorrect {
				correct = "sim"
			}
			rows = append(rows, []interface{}{
				qs.Ordinal, a.ParticipantName, letter, correct, a.PointsEarned,
				a.AnsweredAt.Format("2006-01-02 15:04:05"),
			})
		}
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "write row")
		}
	}
	return nil
}

// ReadGroupIDs reads group ids from the first column of every sheet,
// skipping a header row and blank cells.
func ReadGroupIDs(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "open workbook")
	}
	defer f.Close()

	var ids []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "read sheet "+sheet)
		}
		for i, row := range rows {
			if len(row) == 0 {
				continue
			}
			id := strings.TrimSpace(row[0])
			if id == "" || (i == 0 && !strings.Contains(id, "@")) {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
