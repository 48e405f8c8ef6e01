package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clinicbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xuri/excelize/v2"
)

func (b *Bot) handleExport(ctx context.Context, chatID, userID int64) {
	records, err := b.appointments.ListAppointments(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to load appointments for export")
		b.sendText(chatID, "Could not load your appointments.")
		return
	}
	if len(records) == 0 {
		b.sendText(chatID, "Nothing to export yet. Use /book to make an appointment.")
		return
	}

	path, err := b.exportToExcel(userID, records)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Export failed")
		b.sendText(chatID, "Could not build the export file.")
		return
	}
	defer os.Remove(path)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = "Your appointment history"
	if _, err := b.tg.Send(doc); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send export")
	}
}

// exportToExcel writes the user's appointment history to an xlsx file and
// returns its path. The caller removes the file after sending.
func (b *Bot) exportToExcel(userID int64, records []models.AppointmentRecord) (string, error) {
	if err := os.MkdirAll(b.config.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Appointments"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Date", "Time", "Clinic", "Doctor", "Specialty", "Patient", "Email", "Phone", "Notes", "Fee", "Booked at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)

	for row, r := range records {
		values := []interface{}{
			r.Date, r.Slot, r.ClinicName, r.DoctorName, r.Specialty,
			r.PatientName, r.PatientEmail, r.PatientContact, r.Notes, r.Fee,
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "K", 18)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("appointments_%d_%s.xlsx", userID, time.Now().Format("2006-01-02"))
	path := filepath.Join(b.config.Exports.Path, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	b.logger.Info().Str("file_path", path).Msg("Excel export created")
	return path, nil
}
