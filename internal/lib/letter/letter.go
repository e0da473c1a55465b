// Package letter формирует PDF письмо с обжалованием штрафа.
package letter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/magabrotheeeer/clearride/internal/models"
)

var (
	colorHeader = [3]int{20, 52, 90}
	colorText   = [3]int{40, 40, 40}
	colorMuted  = [3]int{120, 120, 120}
)

// Render возвращает PDF документ письма по сохранённой жалобе.
func Render(appeal *models.Appeal, email string, generatedAt time.Time) ([]byte, error) {
	const op = "letter.Render"
	if appeal == nil {
		return nil, fmt.Errorf("%s: appeal is nil", op)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(25, 25, 25)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetTitle("Penalty Charge Notice appeal "+appeal.TicketNumber, true)
	pdf.SetAuthor("ClearRide", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(colorHeader[0], colorHeader[1], colorHeader[2])
	pdf.CellFormat(0, 10, "Formal appeal against penalty charge", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 6, generatedAt.Format("2 January 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
	writeField(pdf, "Penalty charge notice", appeal.TicketNumber)
	writeField(pdf, "Vehicle registration", appeal.VehicleRegistration)
	writeField(pdf, "Amount", "GBP "+appeal.FineAmount.StringFixed(2))
	writeField(pdf, "Date of issue", appeal.IssueDate.Format("2 January 2006"))
	if appeal.DueDate != nil {
		writeField(pdf, "Payment due", appeal.DueDate.Format("2 January 2006"))
	}
	writeField(pdf, "Contact", email)
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, "Dear Sir or Madam,", "", "L", false)
	pdf.Ln(2)
	pdf.MultiCell(0, 6, fmt.Sprintf(
		"I am writing to formally appeal the penalty charge notice %s issued to vehicle %s on the grounds of: %s.",
		appeal.TicketNumber, appeal.VehicleRegistration, appeal.Reason), "", "L", false)
	pdf.Ln(2)
	if d := strings.TrimSpace(appeal.Description); d != "" {
		pdf.MultiCell(0, 6, d, "", "L", false)
		pdf.Ln(2)
	}
	pdf.MultiCell(0, 6, "I respectfully request that the penalty charge is cancelled. Please confirm the outcome of this appeal in writing.", "", "L", false)
	pdf.Ln(8)
	pdf.MultiCell(0, 6, "Yours faithfully,", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}

func writeField(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
}
