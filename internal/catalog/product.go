package catalog

// Product is the persisted form of a catalog entry.
type Product struct {
	ID         string
	ProductNum string
	Name       string
	Price      float64
}

// ProductDTO is the wire form of a Product. ID is empty until the store
// has assigned one.
type ProductDTO struct {
	ID         string
	ProductNum string
	Name       string
	Price      float64
}

func ToDTO(p Product) ProductDTO {
	return ProductDTO{
		ID:         p.ID,
		ProductNum: p.ProductNum,
		Name:       p.Name,
		Price:      p.Price,
	}
}

func FromDTO(d ProductDTO) Product {
	return Product{
		ID:         d.ID,
		ProductNum: d.ProductNum,
		Name:       d.Name,
		Price:      d.Price,
	}
}
