package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func playedSession() *models.GroupSession {
	s := models.NewGroupSession("120363@g.us")
	s.OpenLobby("5511999990001@s.whatsapp.net")
	s.AddParticipant("5511999990001@s.whatsapp.net", "Ana")
	s.AddParticipant("5511999990002@s.whatsapp.net", "Bruno")

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.BeginGame("abcd1234", 2, now)
	s.RecordAnswer("5511999990001@s.whatsapp.net", 1, false, 1, now)
	s.AdvanceQuestion(now)
	s.RecordAnswer("5511999990002@s.whatsapp.net", 2, true, 3, now)
	return s
}

func TestExportRanking(t *testing.T) {
	data, err := ExportRanking(playedSession())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Ranking", "Respostas"}, f.GetSheetList())

	rows, err := f.GetRows("Ranking")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Posição", rows[0][0])
	assert.Equal(t, []string{"1", "Bruno (0002)", "3", "1", "1", "100"}, rows[1])
	assert.Equal(t, "Ana (0001)", rows[2][1])

	answers, err := f.GetRows("Respostas")
	require.NoError(t, err)
	require.Len(t, answers, 3)
	assert.Equal(t, []string{"1", "Ana", "B", "não", "0", "2026-03-01 10:00:00"}, answers[1])
	assert.Equal(t, "C", answers[2][2])
	assert.Equal(t, "sim", answers[2][3])
}

func TestReadGroupIDs(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "group_id"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "120363001@g.us"))
	require.NoError(t, f.SetCellValue("Sheet1", "A4", "  120363002@g.us "))
	_, err := f.NewSheet("Extra")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Extra", "A1", "120363003@g.us"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	ids, err := ReadGroupIDs(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"120363001@g.us", "120363002@g.us", "120363003@g.us"}, ids)
}

func TestReadGroupIDs_NotAWorkbook(t *testing.T) {
	_, err := ReadGroupIDs(bytes.NewReader([]byte("not a zip")))
	assert.Error(t, err)
}
