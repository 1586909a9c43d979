package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"holocene.dev/holod/store"
)

// handleLinksList returns a paginated page of links, most recently seen first.
func (s *Server) handleLinksList(c echo.Context) error {
	limit, offset := parsePagination(c)
	links, err := s.store.ListLinks(limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, links)
}

// linkCreateRequest is the JSON body accepted by POST /links.
type linkCreateRequest struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	Title  string `json:"title"`
}

// handleLinksCreate upserts a link and publishes links.added.
func (s *Server) handleLinksCreate(c echo.Context) error {
	var req linkCreateRequest
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "url is required"})
	}

	linkID, wasNew, err := s.store.UpsertLink(req.URL, req.Source, req.Title)
	if err != nil {
		return err
	}
	if wasNew {
		s.bus.Publish("links.added", map[string]any{"link_id": linkID, "url": req.URL}, "api")
	}
	link, err := s.store.GetLink(linkID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

// handleLinkGet fetches a single link by ID.
func (s *Server) handleLinkGet(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	link, err := s.store.GetLink(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

// handleBooksList returns a paginated page of books.
func (s *Server) handleBooksList(c echo.Context) error {
	limit, offset := parsePagination(c)
	books, err := s.store.ListBooks(limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

// handleBooksCreate inserts a Book and publishes books.added.
func (s *Server) handleBooksCreate(c echo.Context) error {
	var book store.Book
	if err := c.Bind(&book); err != nil || book.Title == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "title is required"})
	}
	created, err := s.store.CreateBook(book)
	if err != nil {
		return err
	}
	s.bus.Publish("books.added", map[string]any{"book_id": created.ID}, "api")
	return c.JSON(http.StatusOK, created)
}

// handleBookGet fetches a single Book by ID.
func (s *Server) handleBookGet(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	book, err := s.store.GetBook(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, book)
}

// handlePapersList returns a paginated page of papers.
func (s *Server) handlePapersList(c echo.Context) error {
	limit, offset := parsePagination(c)
	papers, err := s.store.ListPapers(limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, papers)
}

// handlePapersCreate inserts a Paper and publishes papers.added.
func (s *Server) handlePapersCreate(c echo.Context) error {
	var paper store.Paper
	if err := c.Bind(&paper); err != nil || paper.Title == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "title is required"})
	}
	created, err := s.store.CreatePaper(paper)
	if err != nil {
		return err
	}
	s.bus.Publish("papers.added", map[string]any{"paper_id": created.ID}, "api")
	return c.JSON(http.StatusOK, created)
}

// handlePaperGet fetches a single Paper by ID.
func (s *Server) handlePaperGet(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	paper, err := s.store.GetPaper(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paper)
}

func parseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}
