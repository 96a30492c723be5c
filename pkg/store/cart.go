package store

// CartItem is a line in the shopping cart.
type CartItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

// CartState is the state of the cart lessons.
type CartState struct {
	Items         []CartItem `json:"items"`
	TotalQuantity int        `json:"totalQuantity"`
	// Changed is set by local edits and stays false for states replaced
	// from the backend, so a replaced cart is not sent back.
	Changed bool `json:"-"`
}

// CartAction is dispatched to a cart store. Exactly one field is set.
type CartAction struct {
	Add     *CartItem
	Remove  string
	Replace *CartState
}

// AddToCart returns an action adding one unit of the product.
func AddToCart(id, title string, price float64) CartAction {
	return CartAction{Add: &CartItem{ID: id, Title: title, Price: price}}
}

// RemoveFromCart returns an action removing one unit of the product.
func RemoveFromCart(id string) CartAction {
	return CartAction{Remove: id}
}

// ReplaceCart returns an action replacing the whole cart.
func ReplaceCart(state CartState) CartAction {
	return CartAction{Replace: &state}
}

// CartReducer reduces cart actions. It never mutates the input items.
func CartReducer(state CartState, action CartAction) CartState {
	switch {
	case action.Replace != nil:
		next := *action.Replace
		next.Items = append([]CartItem(nil), action.Replace.Items...)
		next.Changed = false

		return next
	case action.Add != nil:
		return addItem(state, *action.Add)
	case action.Remove != "":
		return removeItem(state, action.Remove)
	}

	return state
}

func addItem(state CartState, item CartItem) CartState {
	items := append([]CartItem(nil), state.Items...)
	state.TotalQuantity++
	state.Changed = true

	for i := range items {
		if items[i].ID == item.ID {
			items[i].Quantity++
			items[i].TotalPrice += item.Price
			state.Items = items

			return state
		}
	}

	items = append(items, CartItem{
		ID:         item.ID,
		Title:      item.Title,
		Price:      item.Price,
		Quantity:   1,
		TotalPrice: item.Price,
	})
	state.Items = items

	return state
}

func removeItem(state CartState, id string) CartState {
	for i, existing := range state.Items {
		if existing.ID != id {
			continue
		}

		items := make([]CartItem, 0, len(state.Items))
		items = append(items, state.Items[:i]...)
		if existing.Quantity > 1 {
			existing.Quantity--
			existing.TotalPrice -= existing.Price
			items = append(items, existing)
		}
		items = append(items, state.Items[i+1:]...)

		state.Items = items
		state.TotalQuantity--
		state.Changed = true

		return state
	}

	return state
}

// NewCart creates an empty cart store.
func NewCart() *Store[CartState, CartAction] {
	return New(CartReducer, CartState{})
}
