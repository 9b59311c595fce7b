package queries

import (
	"context"
	"net/http"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cache"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
)

const (
	pathAddresses     = "/customer/addresses"
	pathAddressCreate = "/customer/address/create"

	keyAddresses = "addresses"
)

type AddressQueries struct {
	*base
}

func NewAddressQueries(api Doer, tokens apiclient.TokenSource, qc cache.QueryCache, opts ...Option) *AddressQueries {
	return &AddressQueries{base: newBase(api, tokens, qc, opts)}
}

func (q *AddressQueries) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	scope, err := q.scope(ctx)
	if err != nil {
		return nil, err
	}

	return read(ctx, q.base, cache.Key(scope, keyAddresses), func(ctx context.Context) ([]domain.Address, error) {
		var resp envelope[[]domain.Address]
		if err := q.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: pathAddresses}, &resp); err != nil {
			return nil, err
		}
		return resp.Data, nil
	})
}

// CreateAddress stores a new address and returns it with its server ID.
// Validation failures come back as *apiclient.Error with FieldErrors set.
func (q *AddressQueries) CreateAddress(ctx context.Context, addr domain.Address) (domain.Address, error) {
	scope, err := q.scope(ctx)
	if err != nil {
		return domain.Address{}, err
	}

	var resp envelope[domain.Address]
	req := apiclient.Request{Method: http.MethodPost, Path: pathAddressCreate, Body: addr}
	if err := q.api.Do(ctx, req, &resp); err != nil {
		return domain.Address{}, q.failed(ctx, "create_address", err)
	}

	q.mutated(cache.Key(scope, keyAddresses))
	return resp.Data, nil
}
