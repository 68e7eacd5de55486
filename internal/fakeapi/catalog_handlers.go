package fakeapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jrsteele09/bookstore-session/catalog"
)

const defaultPageLimit = 20

// SeedBook adds book to the catalog, assigning an ID when it has none.
func (s *Server) SeedBook(book catalog.Book) catalog.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putBookLocked(book)
}

func (s *Server) SeedCategory(category catalog.Category) catalog.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	s.categories = append(s.categories, category)
	return category
}

func (s *Server) putBookLocked(book catalog.Book) catalog.Book {
	now := NowTimeFunc().UTC()
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if _, exists := s.books[book.ID]; !exists {
		s.bookOrder = append(s.bookOrder, book.ID)
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	s.books[book.ID] = book
	return book
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v >= 0 {
		return v
	}
	return fallback
}

func queryFloat(r *http.Request, key string) (float64, bool) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return v, err == nil
}

func (s *Server) matches(book catalog.Book, r *http.Request) bool {
	q := r.URL.Query()
	if title := q.Get("title"); title != "" && !strings.Contains(strings.ToLower(book.Title), strings.ToLower(title)) {
		return false
	}
	if author := q.Get("author"); author != "" {
		found := false
		for _, a := range book.Authors {
			if strings.Contains(strings.ToLower(a.Name), strings.ToLower(author)) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if categoryID := q.Get("category_id"); categoryID != "" {
		found := false
		for _, c := range book.Categories {
			if c.ID == categoryID {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if minPrice, ok := queryFloat(r, "min_price"); ok && book.Price < minPrice {
		return false
	}
	if maxPrice, ok := queryFloat(r, "max_price"); ok && book.Price > maxPrice {
		return false
	}
	return true
}

// ListBooks handles GET /api/v1/books
func (s *Server) ListBooks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", defaultPageLimit)
		offset := queryInt(r, "offset", 0)

		s.mu.Lock()
		matched := make([]catalog.Book, 0, len(s.bookOrder))
		for _, id := range s.bookOrder {
			if book := s.books[id]; s.matches(book, r) {
				matched = append(matched, book)
			}
		}
		s.mu.Unlock()

		page := catalog.BooksPage{Data: []catalog.Book{}, Total: len(matched), Limit: limit, Offset: offset}
		if offset < len(matched) {
			end := min(offset+limit, len(matched))
			page.Data = matched[offset:end]
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// GetBook handles GET /api/v1/books/{id}
func (s *Server) GetBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		book, ok := s.books[r.PathValue("id")]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "Book not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": book})
	}
}

// CreateBook handles POST /api/v1/books
func (s *Server) CreateBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var book catalog.Book
		if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if book.Title == "" {
			writeError(w, http.StatusBadRequest, "Title is required")
			return
		}
		book.ID = ""

		s.mu.Lock()
		created := s.putBookLocked(book)
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"data": created})
	}
}

// UpdateBook handles PUT /api/v1/books/{id}
func (s *Server) UpdateBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var book catalog.Book
		if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		id := r.PathValue("id")

		s.mu.Lock()
		defer s.mu.Unlock()
		existing, ok := s.books[id]
		if !ok {
			writeError(w, http.StatusNotFound, "Book not found")
			return
		}
		book.ID = id
		book.CreatedAt = existing.CreatedAt
		writeJSON(w, http.StatusOK, map[string]any{"data": s.putBookLocked(book)})
	}
}

// DeleteBook handles DELETE /api/v1/books/{id}
func (s *Server) DeleteBook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.books[id]; !ok {
			writeError(w, http.StatusNotFound, "Book not found")
			return
		}
		delete(s.books, id)
		for i, bookID := range s.bookOrder {
			if bookID == id {
				s.bookOrder = append(s.bookOrder[:i], s.bookOrder[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListCategories handles GET /api/v1/categories
func (s *Server) ListCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		categories := append([]catalog.Category{}, s.categories...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": categories})
	}
}

// GetCategory handles GET /api/v1/categories/{id}
func (s *Server) GetCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range s.categories {
			if c.ID == id {
				writeJSON(w, http.StatusOK, map[string]any{"data": c})
				return
			}
		}
		writeError(w, http.StatusNotFound, "Category not found")
	}
}

// ListWishlist handles GET /api/v1/users/me/wishlist
func (s *Server) ListWishlist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := claimsFrom(r).Subject

		s.mu.Lock()
		items := make([]catalog.WishlistItem, 0, len(s.wishlists[userID]))
		for _, item := range s.wishlists[userID] {
			if book, ok := s.books[item.BookID]; ok {
				item.Book = &book
			}
			items = append(items, item)
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, catalog.Wishlist{Data: items, Total: len(items)})
	}
}

// AddWishlist handles POST /api/v1/users/me/wishlist
func (s *Server) AddWishlist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BookID string `json:"book_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == "" {
			writeError(w, http.StatusBadRequest, "book_id is required")
			return
		}
		userID := claimsFrom(r).Subject

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.books[req.BookID]; !ok {
			writeError(w, http.StatusBadRequest, "Book does not exist")
			return
		}
		for _, item := range s.wishlists[userID] {
			if item.BookID == req.BookID {
				writeError(w, http.StatusConflict, "Book already in wishlist")
				return
			}
		}
		item := catalog.WishlistItem{
			ID:        uuid.NewString(),
			UserID:    userID,
			BookID:    req.BookID,
			CreatedAt: NowTimeFunc().UTC(),
		}
		s.wishlists[userID] = append(s.wishlists[userID], item)
		writeJSON(w, http.StatusCreated, map[string]any{"data": item})
	}
}

// RemoveWishlist handles DELETE /api/v1/users/me/wishlist/{book_id}
func (s *Server) RemoveWishlist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := claimsFrom(r).Subject
		bookID := r.PathValue("book_id")

		s.mu.Lock()
		defer s.mu.Unlock()
		items := s.wishlists[userID]
		for i, item := range items {
			if item.BookID == bookID {
				s.wishlists[userID] = append(items[:i], items[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeError(w, http.StatusNotFound, "Book not in wishlist")
	}
}
