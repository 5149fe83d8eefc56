package http

import (
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/kompanion/internal/entities"
	"github.com/mrlokans/kompanion/internal/library"
	"github.com/mrlokans/kompanion/internal/storage"
)

var bookContentTypes = map[entities.BookFormat]string{
	entities.BookFormatEPUB: "application/epub+zip",
	entities.BookFormatPDF:  "application/pdf",
	entities.BookFormatMOBI: "application/x-mobipocket-ebook",
	entities.BookFormatFB2:  "application/x-fictionbook+xml",
	entities.BookFormatCBZ:  "application/vnd.comicbook+zip",
	entities.BookFormatDJVU: "image/vnd.djvu",
	entities.BookFormatTXT:  "text/plain; charset=utf-8",
}

func contentTypeFor(format entities.BookFormat) string {
	if ct, ok := bookContentTypes[format]; ok {
		return ct
	}
	return "application/octet-stream"
}

type updateBookRequest struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
	ISBN      string `json:"isbn"`
	Language  string `json:"language"`
}

type BooksController struct {
	shelf BookShelf
}

func NewBooksController(shelf BookShelf) *BooksController {
	return &BooksController{shelf: shelf}
}

// GET /api/books
func (bc *BooksController) List(c *gin.Context) {
	page, ok := parseIntQuery(c, "page", 1)
	if !ok {
		return
	}
	perPage, ok := parseIntQuery(c, "per_page", library.DefaultPerPage)
	if !ok {
		return
	}

	result, err := bc.shelf.List(c.Request.Context(), library.ListOptions{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	book, err := bc.shelf.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, library.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}

	c.JSON(http.StatusOK, book)
}

// POST /api/books
//
// Multipart form: file (required), title and author (optional overrides).
func (bc *BooksController) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		respondInternalError(c, err, "open upload")
		return
	}
	defer file.Close()

	meta := library.Metadata{
		Title:  strings.TrimSpace(c.PostForm("title")),
		Author: strings.TrimSpace(c.PostForm("author")),
	}

	book, err := bc.shelf.Store(c.Request.Context(), file, header.Filename, meta)
	if err != nil {
		switch {
		case errors.Is(err, library.ErrBookExists):
			respondError(c, http.StatusConflict, err.Error())
		case errors.Is(err, library.ErrUnknownFormat), errors.Is(err, library.ErrEmptyFile):
			respondBadRequest(c, err.Error())
		default:
			respondInternalError(c, err, "store book")
		}
		return
	}

	respondCreated(c, book)
}

// GET /api/books/:id/download
func (bc *BooksController) Download(c *gin.Context) {
	book, rc, err := bc.shelf.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, library.ErrBookNotFound):
			respondNotFound(c, "book")
		case errors.Is(err, storage.ErrNotFound):
			log.Printf("Books: file missing for book %s", c.Param("id"))
			respondNotFound(c, "book file")
		default:
			respondInternalError(c, err, "open book")
		}
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": library.DownloadName(book),
	})
	c.DataFromReader(http.StatusOK, book.Size, contentTypeFor(book.Format), rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

// PUT /api/books/:id
//
// Fields left empty keep their stored value.
func (bc *BooksController) Update(c *gin.Context) {
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	book, err := bc.shelf.Update(c.Request.Context(), c.Param("id"), library.Metadata{
		Title:     req.Title,
		Author:    req.Author,
		Publisher: req.Publisher,
		ISBN:      req.ISBN,
		Language:  req.Language,
	})
	if err != nil {
		if errors.Is(err, library.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "update book")
		return
	}

	c.JSON(http.StatusOK, book)
}

// GET /api/books/:id/cover
func (bc *BooksController) Cover(c *gin.Context) {
	rc, contentType, err := bc.shelf.Cover(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, library.ErrBookNotFound):
			respondNotFound(c, "book")
		case errors.Is(err, library.ErrCoverNotFound):
			respondNotFound(c, "cover")
		default:
			respondInternalError(c, err, "open cover")
		}
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control": "private, max-age=86400",
	})
}

// DELETE /api/books/:id
func (bc *BooksController) Delete(c *gin.Context) {
	if err := bc.shelf.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, library.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "delete book")
		return
	}

	respondSuccess(c, fmt.Sprintf("book %s deleted", c.Param("id")))
}
