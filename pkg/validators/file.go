package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNoFile              = errors.New("no file provided")
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
)

// SniffedFile is an opened upload whose type was detected from its content
type SniffedFile struct {
	multipart.File
	Size        int64
	ContentType string
	Extension   string
}

// MediaFileValidator opens fh and detects its real type. Only images and
// videos are accepted, whatever the client claims in the part headers.
func MediaFileValidator(fh *multipart.FileHeader, maxSize int64) (*SniffedFile, error) {
	return sniff(fh, maxSize, "image/", "video/")
}

// ImageFileValidator is MediaFileValidator for images only
func ImageFileValidator(fh *multipart.FileHeader, maxSize int64) (*SniffedFile, error) {
	return sniff(fh, maxSize, "image/")
}

func sniff(fh *multipart.FileHeader, maxSize int64, allowed ...string) (*SniffedFile, error) {
	if fh == nil {
		return nil, ErrNoFile
	}

	if fh.Size <= 0 {
		return nil, ErrNoFile
	}

	if maxSize > 0 && fh.Size > maxSize {
		return nil, ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	ok := false
	for _, prefix := range allowed {
		if strings.HasPrefix(mime.String(), prefix) {
			ok = true
			break
		}
	}

	if !ok {
		f.Close()
		return nil, ErrFileTypeUnsupported
	}

	// Strip parameters such as "; charset=utf-8"
	contentType, _, _ := strings.Cut(mime.String(), ";")

	return &SniffedFile{
		File:        f,
		Size:        fh.Size,
		ContentType: contentType,
		Extension:   mime.Extension(),
	}, nil
}
