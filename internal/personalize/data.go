package personalize

// Data is the source bundle a template is rendered against. Each field is
// typically decoded from JSON.
type Data struct {
	Customer map[string]any `json:"customer,omitempty" yaml:"customer,omitempty"`
	Cart     map[string]any `json:"cart,omitempty" yaml:"cart,omitempty"`
	Order    map[string]any `json:"order,omitempty" yaml:"order,omitempty"`
	Custom   map[string]any `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Source returns the bundle a data type reads from. Product fields live on
// the cart.
func (d Data) Source(t DataType) map[string]any {
	switch t {
	case DataCustomer:
		return d.Customer
	case DataCart, DataProduct:
		return d.Cart
	case DataOrder:
		return d.Order
	case DataCustom:
		return d.Custom
	}
	return nil
}

// SampleData is used for previews when the caller has no data of its own.
func SampleData(abandonedAt string) Data {
	return Data{
		Customer: map[string]any{
			"firstName": "John",
			"lastName":  "Doe",
			"email":     "john.doe@example.com",
		},
		Cart: map[string]any{
			"totalValue": 99.99,
			"products": []any{
				map[string]any{"name": "Premium Shoes", "price": 79.99, "quantity": 1},
				map[string]any{"name": "Socks", "price": 9.99, "quantity": 2},
			},
			"abandonedAt": abandonedAt,
		},
	}
}
