package product

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-market-saga/internal/auth"
	"github.com/ariefcatur/go-market-saga/internal/events"
	"github.com/ariefcatur/go-market-saga/internal/listing"
)

type AddInput struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

type Service struct {
	store  Store
	events events.Emitter
	log    *logrus.Entry
	now    func() time.Time
}

func NewService(store Store, emitter events.Emitter, log *logrus.Entry) *Service {
	return &Service{store: store, events: emitter, log: log, now: time.Now}
}

// Add creates an ACTIVE product and announces it to the replicas.
func (s *Service) Add(ctx context.Context, owner auth.Identity, in AddInput) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || in.Description == "" || in.Price <= 0 {
		return Product{}, ErrInvalidInput
	}
	p := Product{
		Name:        in.Name,
		Price:       in.Price,
		Description: in.Description,
		Status:      StatusActive,
		OwnerID:     owner.ID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Create(ctx, &p); err != nil {
		return Product{}, errors.Wrap(err, "create product")
	}

	payload := events.NewProductPayload{ID: p.ID, Name: p.Name, Price: p.Price, Description: p.Description}
	if err := s.events.Publish(ctx, events.NewProduct, events.ProductKey(p.ID), payload, events.TopicOrder, events.TopicSearch); err != nil {
		s.log.WithError(err).WithField("product_id", p.ID).Error("new_product not published")
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q listing.Query) (listing.Page[Product], error) {
	q = q.Normalize()
	items, total, err := s.store.ListActive(ctx, q)
	if err != nil {
		return listing.Page[Product]{}, errors.Wrap(err, "list products")
	}
	return listing.NewPage(items, total, q.OnPage), nil
}

// Reserve moves an ACTIVE product to RESERVED. Anything else, including a
// missing product, is ErrNotAvailable.
func (s *Service) Reserve(ctx context.Context, id int64) error {
	ok, err := s.store.Transition(ctx, id, StatusActive, StatusReserved)
	if err != nil {
		return errors.Wrap(err, "reserve product")
	}
	if !ok {
		return ErrNotAvailable
	}
	return nil
}

// Sell moves RESERVED to SOLD. Selling a SOLD product is a no-op; selling
// from any other status is ErrConflict.
func (s *Service) Sell(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusReserved, StatusSold)
}

// Release returns a RESERVED product to ACTIVE. Releasing an ACTIVE product
// is a no-op; a SOLD product stays SOLD and yields ErrConflict.
func (s *Service) Release(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusReserved, StatusActive)
}

func (s *Service) transition(ctx context.Context, id int64, from, to Status) error {
	ok, err := s.store.Transition(ctx, id, from, to)
	if err != nil {
		return errors.Wrapf(err, "product %s -> %s", from, to)
	}
	if ok {
		return nil
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if cur.Status == to {
		return nil
	}
	return errors.Wrapf(ErrConflict, "product %d is %s, want %s", id, cur.Status, from)
}
