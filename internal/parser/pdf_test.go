package parser

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/dgallion1/alertledger/internal/notice"
)

// buildPDF writes a one-page PDF whose content stream is content, with a
// WinAnsi Helvetica font bound to /F1.
func buildPDF(content string) string {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.String()
}

func TestPDFTokenizer_Rows(t *testing.T) {
	content := "BT /F1 12 Tf " +
		"1 0 0 1 72 700 Tm (Amount) Tj " +
		"1 0 0 1 200 700 Tm ($4.50) Tj " +
		"1 0 0 1 72 680 Tm (Coffee Shop) Tj " +
		"ET"
	got := chunks(t, &PDFTokenizer{}, buildPDF(content))
	want := []string{"Amount $4.50", "Coffee Shop"}
	if !equalStrings(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPDFTokenizer_Invalid(t *testing.T) {
	err := (&PDFTokenizer{}).Tokenize(bytes.NewReader([]byte("not a pdf")), func(f notice.Fragment) {})
	if err == nil {
		t.Error("expected an error for non-PDF input")
	}
}
