package domain

// Customer — клиент. Для оформления заказа важен только факт существования.
type Customer struct {
	ID string
}

// Product — товар каталога с остатком и текущей ценой.
type Product struct {
	ID         string
	Quantity   int32
	PriceMinor int64
}

// StockUpdate задаёт новый остаток товара.
// ExpectedQuantity — остаток, от которого считался Quantity; каталог применяет
// обновление только если текущий остаток совпадает с ним.
type StockUpdate struct {
	ProductID        string
	Quantity         int32
	ExpectedQuantity int32
}

// IndexProducts строит индекс товаров по идентификатору.
func IndexProducts(products []Product) map[string]Product {
	index := make(map[string]Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}
