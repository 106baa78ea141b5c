package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/cutecleansoaps/api/internal/domain"
	pfirestore "github.com/cutecleansoaps/api/internal/platform/firestore"
)

type CatalogRepository struct {
	soaps *pfirestore.BaseRepository[productDocument]
}

func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		soaps: pfirestore.NewBaseRepository[productDocument](provider, soapsCollection, nil, nil),
	}, nil
}

type productDocument struct {
	Name        string    `firestore:"name"`
	PriceCents  int64     `firestore:"priceCents"`
	Stock       int64     `firestore:"stock"`
	Active      bool      `firestore:"active"`
	RatingAvg   float64   `firestore:"ratingAvg"`
	RatingCount int64     `firestore:"ratingCount"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		PriceCents:  d.PriceCents,
		Stock:       d.Stock,
		Active:      d.Active,
		RatingAvg:   d.RatingAvg,
		RatingCount: d.RatingCount,
	}
}

func (r *CatalogRepository) FindProduct(ctx context.Context, soapID string) (domain.Product, error) {
	if r == nil || r.soaps == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	doc, err := r.soaps.Get(ctx, soapID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}
