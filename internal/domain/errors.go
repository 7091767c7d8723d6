package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest объединяет ошибки формы запроса на создание заказа.
	ErrInvalidRequest = errors.New("invalid order request")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = fmt.Errorf("%w: customer_id is required", ErrInvalidRequest)
	// Ошибка отсутствующего идентификатора товара в позиции запроса.
	ErrProductIDRequired = fmt.Errorf("%w: product id is required", ErrInvalidRequest)
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = fmt.Errorf("%w: item qty must be greater than zero", ErrInvalidRequest)
	// Ошибка повторяющегося товара в одном запросе.
	ErrDuplicateProduct = fmt.Errorf("%w: product is requested more than once", ErrInvalidRequest)
	// Сумма заказа не помещается в int64.
	ErrAmountOverflow = fmt.Errorf("%w: order amount overflows int64", ErrInvalidRequest)

	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")

	// Клиента из запроса не существует.
	ErrCustomerNotFound = errors.New("customer not found")
	// Ни один из запрошенных товаров не найден в каталоге.
	ErrProductsNotFound = errors.New("products not found")
	// Часть запрошенных товаров отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// Запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// Остаток изменился между чтением и списанием.
	ErrStockConflict = errors.New("stock changed concurrently")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// Заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// Сообщение из outbox не удалось опубликовать или отметить.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ProductNotFoundError называет первый запрошенный товар, которого нет в каталоге.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// Is позволяет сравнивать ошибку с ErrProductNotFound через errors.Is.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientStockError описывает позицию, для которой не хватает остатка.
// Requested хранит запрошенное количество, а не недостачу.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d of product %s, available %d",
		e.Requested, e.ProductID, e.Available)
}

// Is позволяет сравнивать ошибку с ErrInsufficientStock через errors.Is.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsValidationError сообщает, что запрос отклонён до каких-либо изменений в хранилищах.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrProductsNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrInsufficientStock):
		return true
	default:
		return false
	}
}

// IsStockConflict проверяет, является ли ошибка конфликтом остатков.
func IsStockConflict(err error) bool {
	return errors.Is(err, ErrStockConflict)
}
