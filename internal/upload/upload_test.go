package upload

import (
	"context"
	"strings"
	"testing"

	"github.com/smartys-dev/chatdesk/internal/storage"
)

func TestValidateSize(t *testing.T) {
	if err := Validate(25<<20, "image/jpeg"); err != ErrFileTooLarge {
		t.Fatalf("expected ErrFileTooLarge for 25MiB jpeg, got %v", err)
	}
	if err := Validate(5<<20, "image/jpeg"); err != nil {
		t.Fatalf("expected 5MiB jpeg to pass, got %v", err)
	}
}

func TestValidateType(t *testing.T) {
	if err := Validate(1024, "application/x-msdownload"); err != ErrUnsupportedType {
		t.Fatalf("expected ErrUnsupportedType for exe, got %v", err)
	}
	if err := Validate(1024, "application/pdf"); err != nil {
		t.Fatalf("expected pdf to pass, got %v", err)
	}
	// content type parameters are ignored
	if err := Validate(1024, "text/plain; charset=utf-8"); err != nil {
		t.Fatalf("expected text/plain with charset to pass, got %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"rechnung (final).pdf": "rechnung_final_.pdf",
		"___a___b___":          "a_b",
		"фото.jpg":             ".jpg",
		"normal-name.txt":      "normal-name.txt",
		"":                     "file",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUploadStoresAndReturnsURL(t *testing.T) {
	mem := storage.NewMemory()
	svc := NewService(mem)

	url, err := svc.Upload(context.Background(), "receipt.pdf", 100, "application/pdf", strings.NewReader("pdfdata"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(url, "receipt.pdf") {
		t.Fatalf("url missing sanitized name: %q", url)
	}
	if !strings.HasPrefix(url, "mem://") {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestUploadRejectsBadFile(t *testing.T) {
	svc := NewService(storage.NewMemory())
	if _, err := svc.Upload(context.Background(), "tool.exe", 10, "application/x-msdownload", strings.NewReader("x")); err != ErrUnsupportedType {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}
