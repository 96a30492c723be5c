package catalog

import (
	"net/http"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
	"github.com/pavelpascari/fetchstate/pkg/store"
)

// CartPath is the stored cart endpoint.
const CartPath = "/cart.json"

// Cart fetches the stored cart. A cart that was never saved is empty.
func Cart() fetchstate.Descriptor[store.CartState] {
	return fetchstate.Descriptor[store.CartState]{
		Request: fetchstate.Request{Method: http.MethodGet, Path: CartPath},
		Transform: fetchstate.JSON(func(raw *store.CartState) (store.CartState, error) {
			if raw == nil {
				return store.CartState{Items: []store.CartItem{}}, nil
			}
			cart := *raw
			if cart.Items == nil {
				cart.Items = []store.CartItem{}
			}
			return cart, nil
		}),
		ErrorMessage: firebaseMessage(),
	}
}

// SaveCart replaces the stored cart with cart.
//
//nolint:gocritic // CartState is copied into the request body
func SaveCart(cart store.CartState) fetchstate.Descriptor[store.CartState] {
	d := Cart()
	d.Request = fetchstate.Request{
		Method: http.MethodPut,
		Path:   CartPath,
		Body: store.CartState{
			Items:         cart.Items,
			TotalQuantity: cart.TotalQuantity,
		},
	}

	return d
}
