// Package catalog lists books and manages their stock outside of carts.
package catalog

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/events"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Items      []domain.Book `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
	TotalItems int64         `json:"totalItems"`
}

type NewBook struct {
	Title             string          `json:"title"`
	Author            string          `json:"author"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"availableQuantity"`
}

type Service struct {
	repo   Repository
	events events.Publisher
}

func NewService(repo Repository, pub events.Publisher) *Service {
	return &Service{repo: repo, events: pub}
}

// List normalizes paging: page starts at 1, size defaults to 20 and is capped at 100.
func (s *Service) List(ctx context.Context, q string, page, size int) (*Page, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	total, err := s.repo.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, q, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
		TotalItems: total,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Book, error) {
	if id <= 0 {
		return nil, apperr.New(apperr.Invalid, "id must be > 0")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in NewBook) (*domain.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, apperr.New(apperr.Invalid, "title is required")
	case in.Price.IsNegative():
		return nil, apperr.New(apperr.Invalid, "price must be >= 0")
	case in.AvailableQuantity < 0:
		return nil, apperr.New(apperr.Invalid, "availableQuantity must be >= 0")
	}
	b, err := s.repo.Create(ctx, domain.Book{
		Title:             in.Title,
		Author:            strings.TrimSpace(in.Author),
		Price:             in.Price,
		AvailableQuantity: in.AvailableQuantity,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("book_id", b.ID).Str("title", b.Title).Msg("book created")
	events.Emit(ctx, s.events, events.BookCreated, events.BookCreatedEvent{BookID: b.ID, Title: b.Title})
	return b, nil
}

// Restock adds qty units to a book's available quantity.
func (s *Service) Restock(ctx context.Context, id int64, qty int) (*domain.Book, error) {
	if qty <= 0 {
		return nil, apperr.New(apperr.Invalid, "quantity must be > 0")
	}
	b, err := s.repo.Restock(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("book_id", id).Int("added", qty).Int("available", b.AvailableQuantity).Msg("book restocked")
	return b, nil
}
