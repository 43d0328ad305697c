package models

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MimeType is one of the attachment types the shop accepts.
type MimeType string

const (
	MimeJPEG  MimeType = "image/jpeg"
	MimePJPEG MimeType = "image/pjpeg"
	MimePNG   MimeType = "image/png"
	MimeMP4   MimeType = "video/mp4"
	MimeWAV   MimeType = "audio/wav"
)

var extensions = map[MimeType]string{
	MimeJPEG:  "jpg",
	MimePJPEG: "jpg",
	MimePNG:   "png",
	MimeMP4:   "mp4",
	MimeWAV:   "wav",
}

// ParseMimeType maps a MIME string (parameters ignored) onto a supported type.
func ParseMimeType(s string) (MimeType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	switch s {
	case "audio/wave", "audio/x-wav":
		s = string(MimeWAV)
	}
	mt := MimeType(s)
	if _, ok := extensions[mt]; !ok {
		return "", fmt.Errorf("models: unsupported mime type %q", s)
	}
	return mt, nil
}

// DetectMimeType sniffs the content type of data.
func DetectMimeType(data []byte) (MimeType, error) {
	return ParseMimeType(http.DetectContentType(data))
}

// Extension returns the filename extension without the dot.
func (m MimeType) Extension() string { return extensions[m] }

// Kind derives the multimedia kind from the MIME prefix.
func (m MimeType) Kind() MultimediaKind {
	switch {
	case strings.HasPrefix(string(m), "image/"):
		return Image
	case strings.HasPrefix(string(m), "video/"):
		return Video
	case strings.HasPrefix(string(m), "audio/"):
		return Audio
	default:
		return ""
	}
}

type MultimediaKind string

const (
	Image MultimediaKind = "I"
	Video MultimediaKind = "V"
	Audio MultimediaKind = "A"
)

// File is a binary attachment. Filename is unique across the store.
type File struct {
	ID        uint           `gorm:"primaryKey"                   json:"id"`
	Filename  string         `gorm:"size:64;not null;uniqueIndex" json:"filename"`
	MimeType  MimeType       `gorm:"size:32;not null"             json:"mimeType"`
	Kind      MultimediaKind `gorm:"size:1;not null"              json:"kind"`
	Data      []byte         `json:"-"`
	Version   int            `gorm:"not null"                     json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AttachmentFilename is the deterministic name of an entity's attachment,
// e.g. "Customer_42.png".
func AttachmentFilename(entity string, id uint, mt MimeType) string {
	return fmt.Sprintf("%s_%d.%s", entity, id, mt.Extension())
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	out := *f
	out.Data = append([]byte(nil), f.Data...)
	return &out
}
