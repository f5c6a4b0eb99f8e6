package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dynatos/pos-terminal/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// Snapshot is the catalog as loaded at one point in time; stock figures are
// only as fresh as LoadedAt.
type Snapshot struct {
	Products   []domain.Product  `json:"products"`
	Categories []domain.Category `json:"categories"`
	LoadedAt   time.Time         `json:"loaded_at"`
}

func (s *Snapshot) Product(id int64) (domain.Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

type Source interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

type Service struct {
	source Source
	cache  Cache
	sfg    singleflight.Group // Prevents cache stampede
}

func NewService(source Source, cache Cache) *Service {
	return &Service{source: source, cache: cache}
}

const loadKey = "catalog"

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.sfg.Do(loadKey, func() (interface{}, error) {
		snapshot, err := s.cache.Get(ctx)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("catalog cache get error: %v", err) // log cache error but continue
		}
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (s *Service) load(ctx context.Context) (*Snapshot, error) {
	products, err := s.source.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	categories, err := s.source.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	snapshot := &Snapshot{Products: products, Categories: categories, LoadedAt: time.Now()}
	if err := s.cache.Set(ctx, snapshot); err != nil {
		log.Printf("catalog cache set error: %v", err)
	}
	return snapshot, nil
}

func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Products, nil
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Categories, nil
}

func (s *Service) Product(ctx context.Context, id int64) (domain.Product, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	p, ok := snapshot.Product(id)
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return p, nil
}

// Reload drops the cached snapshot and fetches a fresh one, so stock
// decremented by the backend after a sale becomes visible.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	if err := s.cache.Delete(ctx); err != nil {
		log.Printf("catalog cache invalidate error: %v", err)
	}
	s.sfg.Forget(loadKey)
	return s.Snapshot(ctx)
}
