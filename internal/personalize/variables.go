package personalize

import (
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pathsplit/pathsplit/internal/format"
)

// DataType names the bundle a variable reads from.
type DataType string

const (
	DataCustomer DataType = "customer"
	DataCart     DataType = "cart"
	DataProduct  DataType = "product"
	DataOrder    DataType = "order"
	DataCustom   DataType = "custom"
)

// DataTypes lists every data type in display order.
var DataTypes = []DataType{DataCustomer, DataCart, DataProduct, DataOrder, DataCustom}

// Variable describes a template placeholder and where its value lives.
type Variable struct {
	Name         string   `json:"name" yaml:"name" validate:"required,excludesall={}:"`
	Label        string   `json:"label" yaml:"label" validate:"required"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	DataType     DataType `json:"dataType" yaml:"dataType" validate:"required,oneof=customer cart product order custom"`
	Path         string   `json:"path" yaml:"path" validate:"required"`
	DefaultValue string   `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Formatter    string   `json:"formatter,omitempty" yaml:"formatter,omitempty"`
}

var validate = validator.New()

// Validate checks the variable's required fields and data type.
func (v Variable) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid variable %q: %w", v.Name, err)
	}
	return nil
}

// Catalog is an ordered set of variables keyed by name.
type Catalog []Variable

var defaultCatalog = Catalog{
	{Name: "firstName", Label: "First Name", Description: "Customer's first name", DataType: DataCustomer, Path: "firstName", DefaultValue: "there"},
	{Name: "lastName", Label: "Last Name", Description: "Customer's last name", DataType: DataCustomer, Path: "lastName"},
	{Name: "email", Label: "Email", Description: "Customer's email address", DataType: DataCustomer, Path: "email"},

	{Name: "cartTotal", Label: "Cart Total", Description: "Total value of items in cart", DataType: DataCart, Path: "totalValue", DefaultValue: "0", Formatter: format.Currency},
	{Name: "itemCount", Label: "Item Count", Description: "Number of items in cart", DataType: DataCart, Path: "products.length", DefaultValue: "0"},
	{Name: "abandonedTime", Label: "Abandoned Time", Description: "How long ago the cart was abandoned", DataType: DataCart, Path: "abandonedAt", DefaultValue: "recently", Formatter: format.TimeAgo},

	{Name: "productName", Label: "Product Name", Description: "Name of the main product in cart", DataType: DataProduct, Path: "products[0].name", DefaultValue: "item"},
	{Name: "productNames", Label: "Product Names", Description: "Names of all products in cart", DataType: DataProduct, Path: "products[*].name", DefaultValue: "items", Formatter: format.List},
	{Name: "productPrice", Label: "Product Price", Description: "Price of the main product in cart", DataType: DataProduct, Path: "products[0].price", DefaultValue: "0", Formatter: format.Currency},

	{Name: "lastOrderDate", Label: "Last Order Date", Description: "Date of customer's last completed order", DataType: DataOrder, Path: "lastOrder.completedAt", Formatter: format.Date},
	{Name: "lastOrderTotal", Label: "Last Order Total", Description: "Total value of customer's last completed order", DataType: DataOrder, Path: "lastOrder.totalValue", DefaultValue: "0", Formatter: format.Currency},
}

// DefaultCatalog returns a copy of the built-in variables.
func DefaultCatalog() Catalog {
	out := make(Catalog, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// Lookup finds a variable by name.
func (c Catalog) Lookup(name string) (Variable, bool) {
	for _, v := range c {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Names returns the variable names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, v := range c {
		names[i] = v.Name
	}
	return names
}

// GroupByType buckets variables by their data type, preserving order
// within each bucket.
func (c Catalog) GroupByType() map[DataType][]Variable {
	groups := make(map[DataType][]Variable)
	for _, v := range c {
		groups[v.DataType] = append(groups[v.DataType], v)
	}
	return groups
}

// Merge returns a new catalog where overrides replace same-named entries in
// place and unknown names are appended.
func (c Catalog) Merge(overrides ...Variable) Catalog {
	out := make(Catalog, len(c), len(c)+len(overrides))
	copy(out, c)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].Name == o.Name {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

// LoadCatalog decodes a YAML list of variables, validating every entry.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var vars []Variable
	if err := yaml.NewDecoder(r).Decode(&vars); err != nil {
		if err == io.EOF {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("duplicate variable %q in catalog", v.Name)
		}
		seen[v.Name] = true
	}
	return Catalog(vars), nil
}
