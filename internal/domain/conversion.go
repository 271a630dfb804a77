package domain

import "time"

type ConversionStatus string

const (
	ConversionProcessing ConversionStatus = "processing"
	ConversionCompleted  ConversionStatus = "completed"
	ConversionFailed     ConversionStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s ConversionStatus) Terminal() bool {
	return s == ConversionCompleted || s == ConversionFailed
}

type ConversionFormat string

const (
	FormatWord  ConversionFormat = "word"
	FormatExcel ConversionFormat = "excel"
	FormatPPT   ConversionFormat = "ppt"
	FormatJPG   ConversionFormat = "jpg"
	FormatPNG   ConversionFormat = "png"
)

// OutputExtension returns the file extension of the converted artifact.
func (f ConversionFormat) OutputExtension() string {
	switch f {
	case FormatWord:
		return ".docx"
	case FormatExcel:
		return ".xlsx"
	case FormatPPT:
		return ".pptx"
	case FormatJPG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	}
	return ""
}

func (f ConversionFormat) Valid() bool {
	switch f {
	case FormatWord, FormatExcel, FormatPPT, FormatJPG, FormatPNG:
		return true
	}
	return false
}

// Conversion is one ledger row per admitted conversion request. The actual
// byte work happens in an external converter; this record only tracks the
// terminal outcome.
type Conversion struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"index;not null" json:"user_id"`
	FileName    string           `gorm:"size:512;not null" json:"file_name"`
	FileSize    int64            `gorm:"not null" json:"file_size"`
	FromFormat  string           `gorm:"size:16;not null;default:pdf" json:"from_format"`
	ToFormat    ConversionFormat `gorm:"size:16;not null" json:"to_format"`
	Status      ConversionStatus `gorm:"size:16;not null;index" json:"status"`
	InputKey    string           `gorm:"size:512" json:"-"`
	OutputKey   string           `gorm:"size:512" json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}
