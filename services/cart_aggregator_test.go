package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"checkout-service/apperrors"
	"checkout-service/clients"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadCart_ResolvesAndReportsLoss(t *testing.T) {
	b := newFakeBackend()
	b.products["p1"] = product("p1", 2500)
	b.products["p2"] = product("p2", 1000)
	b.productErr["bad"] = fmt.Errorf("get product bad: %w", clients.ErrMalformed)
	b.productErr["slow"] = errors.New("context deadline exceeded")
	b.cart = []models.CartEntry{
		{ID: "c1", Products: []models.ProductRef{ref("p1", 2), ref("gone", 1)}},
		{ID: "c2", Products: []models.ProductRef{ref("p2", 0), ref("bad", 1)}},
		{ID: "c3", Products: []models.ProductRef{{ProductID: "", Quantity: models.NewQuantity(1)}, ref("slow", 1), ref("p2", 3)}},
	}
	agg := services.NewCartAggregator(b, b, 2, zap.NewNop())

	report, err := agg.LoadCart(context.Background(), "u-1")
	require.NoError(t, err)

	require.Len(t, report.Lines, 2)
	assert.Equal(t, "p1", report.Lines[0].Product.ID.String())
	assert.Equal(t, "c1", report.Lines[0].CartEntryID)
	assert.Equal(t, 2, report.Lines[0].Quantity)
	assert.Equal(t, "p2", report.Lines[1].Product.ID.String())
	assert.Equal(t, int64(8000), report.Subtotal())

	reasons := map[string]string{}
	for _, u := range report.Unresolved {
		reasons[u.CartEntryID+"/"+u.ProductID] = u.Reason
	}
	assert.Equal(t, map[string]string{
		"c1/gone": models.UnresolvedNotFound,
		"c2/p2":   models.UnresolvedInvalidQuantity,
		"c2/bad":  models.UnresolvedMalformed,
		"c3/":     models.UnresolvedMalformed,
		"c3/slow": models.UnresolvedFetchFailed,
	}, reasons)
}

// reverseCatalog answers each product only after the next id in order has answered.
type reverseCatalog struct {
	ids      []string
	done     map[string]chan struct{}
	mu       sync.Mutex
	answered []string
}

func newReverseCatalog(ids ...string) *reverseCatalog {
	c := &reverseCatalog{ids: ids, done: map[string]chan struct{}{}}
	for _, id := range ids {
		c.done[id] = make(chan struct{})
	}
	return c
}

func (c *reverseCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	for i, other := range c.ids {
		if other != id || i == len(c.ids)-1 {
			continue
		}
		select {
		case <-c.done[c.ids[i+1]]:
		case <-time.After(2 * time.Second):
			return nil, errors.New("lookups are not concurrent")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	c.answered = append(c.answered, id)
	c.mu.Unlock()
	close(c.done[id])
	p := product(id, 100)
	return &p, nil
}

func (c *reverseCatalog) GetProducts(context.Context, []string) ([]models.Product, error) {
	return nil, nil
}

func TestLoadCart_KeepsInputOrderWhenAnswersArriveReversed(t *testing.T) {
	b := newFakeBackend()
	b.cart = []models.CartEntry{
		{ID: "c1", Products: []models.ProductRef{ref("a", 1), ref("b", 1)}},
		{ID: "c2", Products: []models.ProductRef{ref("c", 1), ref("d", 1)}},
	}
	catalog := newReverseCatalog("a", "b", "c", "d")

	report, err := services.NewCartAggregator(b, catalog, 4, zap.NewNop()).LoadCart(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, catalog.answered)

	var got []string
	for _, l := range report.Lines {
		got = append(got, l.CartEntryID+"/"+l.Product.ID.String())
	}
	assert.Equal(t, []string{"c1/a", "c1/b", "c2/c", "c2/d"}, got)
	assert.Empty(t, report.Unresolved)
}

func TestLoadCart_InvalidQuantitySkipsLookup(t *testing.T) {
	b := newFakeBackend()
	b.cart = []models.CartEntry{{ID: "c1", Products: []models.ProductRef{ref("p1", -1)}}}

	report, err := services.NewCartAggregator(b, b, 0, zap.NewNop()).LoadCart(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Empty(t, report.Lines)
	assert.Zero(t, b.count("GetProduct"))
}

func TestLoadCart_EmptyCart(t *testing.T) {
	b := newFakeBackend()

	report, err := services.NewCartAggregator(b, b, 4, zap.NewNop()).LoadCart(context.Background(), "u-1")
	require.NoError(t, err)
	assert.NotNil(t, report.Lines)
	assert.Empty(t, report.Lines)
	assert.Zero(t, report.Subtotal())
}

func TestLoadCart_CartFetchFailure(t *testing.T) {
	b := newFakeBackend()
	b.cartErr = errors.New("503 from cart service")

	_, err := services.NewCartAggregator(b, b, 4, zap.NewNop()).LoadCart(context.Background(), "u-1")
	assert.Equal(t, apperrors.KindTransientFetchFailure, apperrors.KindOf(err))
}

func TestLoadCart_RequiresUser(t *testing.T) {
	b := newFakeBackend()

	_, err := services.NewCartAggregator(b, b, 4, zap.NewNop()).LoadCart(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.Zero(t, b.count("GetCart"))
}
