package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/company-portal/internal/client"
	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/observability"
)

// ProductService serves the top-rated products from the external catalog.
type ProductService struct {
	catalog client.CatalogClient
}

func NewProductService(catalog client.CatalogClient) *ProductService {
	return &ProductService{catalog: catalog}
}

// TopProducts returns the merged catalog listing. The result is never a partial list.
func (s *ProductService) TopProducts(ctx context.Context) ([]models.Product, error) {
	start := time.Now()
	products, err := s.catalog.FetchTopProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	observability.LoggerFromContext(ctx).Debug("top products served",
		zap.Int("count", len(products)),
		zap.Duration("duration", time.Since(start)))
	return products, nil
}
