package entities

import "time"

type BookFormat string

const (
	BookFormatEPUB BookFormat = "epub"
	BookFormatPDF  BookFormat = "pdf"
	BookFormatMOBI BookFormat = "mobi"
	BookFormatFB2  BookFormat = "fb2"
	BookFormatCBZ  BookFormat = "cbz"
	BookFormatDJVU BookFormat = "djvu"
	BookFormatTXT  BookFormat = "txt"
)

// Book is the metadata row for a stored book file. DocumentID matches the
// partial MD5 the reader computes for the same file, so progress records
// can be joined back to books.
type Book struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Title      string     `gorm:"index;size:512" json:"title"`
	Author     string     `gorm:"index;size:256" json:"author"`
	Publisher  string     `gorm:"size:256" json:"publisher,omitempty"`
	ISBN       string     `gorm:"size:32" json:"isbn,omitempty"`
	Language   string     `gorm:"size:32" json:"language,omitempty"`
	DocumentID string     `gorm:"uniqueIndex;size:32;not null" json:"document_id"`
	Format     BookFormat `gorm:"size:16;not null" json:"format"`
	FilePath   string     `gorm:"size:1024;not null" json:"-"`
	CoverPath  string     `gorm:"size:1024" json:"-"`
	Size       int64      `json:"size"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// HasCover reports whether a cover image was extracted for the book.
func (b Book) HasCover() bool {
	return b.CoverPath != ""
}

func (Book) TableName() string {
	return "books"
}
