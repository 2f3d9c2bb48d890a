package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/olgkv/drivefetch/internal/domain"
)

// BuildRunReport renders a download run as a one-line-per-task PDF.
func BuildRunReport(summary domain.Summary, generated time.Time) ([]byte, error) {
	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()
	p.SetFont("Arial", "B", 14)

	p.Cell(40, 10, "Download report")
	p.Ln(12)

	p.SetFont("Arial", "", 11)
	p.Cell(40, 8, fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)))
	p.Ln(7)
	p.Cell(40, 8, fmt.Sprintf("Directory: %s", summary.Directory))
	p.Ln(7)
	p.Cell(40, 8, fmt.Sprintf("Succeeded: %d   Failed: %d", summary.Succeeded, summary.Failed))
	p.Ln(12)

	tr := p.UnicodeTranslatorFromDescriptor("")
	p.SetFont("Arial", "", 9)
	for i, t := range summary.Tasks {
		line := fmt.Sprintf("%d. [%s] %s", i+1, t.Status, t.SourceURL)
		p.MultiCell(0, 5, tr(line), "", "L", false)
		detail := fmt.Sprintf("    -> %s (%d bytes)", t.OutputPath, t.BytesWritten)
		if t.Status == domain.StatusFailed {
			detail = "    error: " + t.Error
		}
		p.MultiCell(0, 5, tr(detail), "", "L", false)
		p.Ln(2)
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
