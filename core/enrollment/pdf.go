package enrollment

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// formatDate formats t as "2 de enero de 2006".
func formatDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), months[t.Month()-1], t.Year())
}

func CertificateFilename(cert CertificateDetail) string {
	return fmt.Sprintf("certificado-%s.pdf", cert.Code)
}

// RenderCertificatePDF renders a landscape A4 certificate.
func RenderCertificatePDF(cert CertificateDetail) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificado de finalización", true)
	pdf.SetCreator("Cursos Online", true)
	pdf.SetCreationDate(cert.IssuedAt)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// core fonts are cp1252 encoded
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	// double border
	pdf.SetDrawColor(30, 64, 175)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, pageW-20, pageH-20, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(15, 15, pageW-30, pageH-30, "D")

	center := func(y float64, family, style string, size float64, txt string) {
		pdf.SetFont(family, style, size)
		pdf.SetXY(15, y)
		pdf.CellFormat(pageW-30, size/2, tr(txt), "", 0, "C", false, 0, "")
	}

	pdf.SetTextColor(30, 64, 175)
	center(40, "Helvetica", "B", 34, "CERTIFICADO DE FINALIZACIÓN")

	pdf.SetTextColor(55, 65, 81)
	center(70, "Helvetica", "", 16, "Se certifica que")

	pdf.SetTextColor(17, 24, 39)
	center(88, "Times", "BI", 30, cert.StudentName)

	pdf.SetTextColor(55, 65, 81)
	center(112, "Helvetica", "", 16, "ha completado satisfactoriamente el curso")

	pdf.SetTextColor(17, 24, 39)
	center(128, "Helvetica", "B", 22, cert.CourseTitle)

	pdf.SetTextColor(75, 85, 99)
	center(158, "Helvetica", "", 12, "Fecha de emisión: "+formatDate(cert.IssuedAt))
	center(168, "Courier", "", 11, "Código: "+cert.Code)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
