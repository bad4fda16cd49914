package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".txt", ".md", ".rst", ".TXT"} {
		got, err := e.ExtractBytes([]byte("Hello world\nLine 2"), ext)
		if err != nil {
			t.Fatalf("ExtractBytes(%s): %v", ext, err)
		}
		if got != "Hello world\nLine 2" {
			t.Errorf("%s: got %q", ext, got)
		}
	}
}

func TestExtractBytes_plainDropsInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("caf\xc3\xa9 hello\x80world\xff"), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "café helloworld" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".exe", ".pptx", ""} {
		_, err := e.ExtractBytes([]byte("raw"), ext)
		if !errors.Is(err, ErrUnsupportedFileType) {
			t.Errorf("%q: expected ErrUnsupportedFileType, got %v", ext, err)
		}
		if apperr.KindOf(err) != apperr.Validation {
			t.Errorf("%q: expected validation kind", ext)
		}
	}
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"notes.txt":   true,
		"README.MD":   true,
		"paper.pdf":   true,
		"report.docx": true,
		"sheet.xlsx":  true,
		"index.rst":   true,
		"slides.pptx": false,
		"noext":       false,
		"archive.zip": false,
	}
	for name, want := range cases {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
	if got := strings.Join(SupportedExtensions(), ","); got != ".docx,.md,.pdf,.rst,.txt,.xlsx" {
		t.Errorf("SupportedExtensions() = %s", got)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_corruptFileIsValidation(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".pdf", ".docx", ".xlsx"} {
		_, err := e.ExtractBytes([]byte("definitely not a document"), ext)
		if err == nil {
			t.Fatalf("%s: expected error", ext)
		}
		if apperr.KindOf(err) != apperr.Validation {
			t.Errorf("%s: kind = %v", ext, apperr.KindOf(err))
		}
	}
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_excelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Searchable text" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

const docxBody = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">First </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>cell</w:t></w:r></w:p>` +
	`<w:p></w:p>` +
	`</w:body></w:document>`

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	content := buildDocx(t, map[string]string{"word/document.xml": docxBody})
	got, err := NewExtractor().ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "First paragraph\nSecond\tcell" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxContentTypesOverride(t *testing.T) {
	for _, override := range []string{
		`<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		`<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		content := buildDocx(t, map[string]string{
			contentTypesPath: `<?xml version="1.0" encoding="UTF-8"?>` +
				`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + override + `</Types>`,
			"word/document2.xml": docxBody,
		})
		got, err := NewExtractor().ExtractFile("letter.docx", content)
		if err != nil {
			t.Fatalf("ExtractFile: %v", err)
		}
		if !strings.HasPrefix(got, "First paragraph") {
			t.Errorf("got %q", got)
		}
	}
}

func TestExtractBytes_docxMissingBody(t *testing.T) {
	content := buildDocx(t, map[string]string{"word/other.xml": docxBody})
	if _, err := NewExtractor().ExtractBytes(content, ".docx"); err == nil {
		t.Error("expected error when the body part is missing")
	}
}
