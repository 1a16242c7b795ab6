package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/geocoder89/lifeplus/internal/domain/exam"
)

const MaxUploadBytes = 10 << 20

// allowed declared types, mapped to the canonical type the sniffer reports
var allowedUploadTypes = map[string]string{
	"image/jpeg":      "image/jpeg",
	"image/jpg":       "image/jpeg",
	"image/png":       "image/png",
	"application/pdf": "application/pdf",
}

var (
	errFileTooLarge       = errors.New("file exceeds the 10 MiB limit")
	errUnsupportedType    = errors.New("only JPEG, PNG and PDF files are accepted")
	errContentTypeSpoofed = errors.New("file content does not match its declared type")
)

type uploadError struct {
	file string
	err  error
}

func (e *uploadError) Error() string { return fmt.Sprintf("%s: %v", e.file, e.err) }
func (e *uploadError) Unwrap() error { return e.err }

// formFiles collects the parts sent under key or key[].
func formFiles(form *multipart.Form, key string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	return append(form.File[key], form.File[key+"[]"]...)
}

func formValues(form *multipart.Form, key string) []string {
	if form == nil {
		return nil
	}
	return append(form.Value[key], form.Value[key+"[]"]...)
}

// readUploads validates and reads every file. The declared type has to be
// allowed and has to agree with what the bytes look like.
func readUploads(headers []*multipart.FileHeader) ([]exam.NewPhoto, error) {
	out := make([]exam.NewPhoto, 0, len(headers))

	for _, fh := range headers {
		if fh.Size > MaxUploadBytes {
			return nil, &uploadError{file: fh.Filename, err: errFileTooLarge}
		}

		declared := strings.ToLower(strings.TrimSpace(fh.Header.Get("Content-Type")))
		if i := strings.IndexByte(declared, ';'); i >= 0 {
			declared = strings.TrimSpace(declared[:i])
		}
		canonical, ok := allowedUploadTypes[declared]
		if !ok {
			return nil, &uploadError{file: fh.Filename, err: errUnsupportedType}
		}

		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}

		if !mimetype.Detect(data).Is(canonical) {
			return nil, &uploadError{file: fh.Filename, err: errContentTypeSpoofed}
		}

		out = append(out, exam.NewPhoto{
			FileName: fh.Filename,
			MimeType: declared,
			Data:     data,
		})
	}

	return out, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	// one extra byte tells an oversized part from an exact fit
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, &uploadError{file: fh.Filename, err: errFileTooLarge}
	}
	return data, nil
}

// parseExamDate accepts a calendar date or a full RFC3339 timestamp.
func parseExamDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
