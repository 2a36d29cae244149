// Package cart содержит клиентскую корзину: чистые функции-редьюсеры и хранилище с сохранением состояния.
//
// Каждый редьюсер поддерживает инвариант TotalItemCount == сумма Quantity по всем позициям
// и не изменяет переданное состояние.
package cart

import "github.com/mmeshcher/storefront/internal/model"

func clone(s model.CartState) model.CartState {
	lines := make([]model.CartLine, len(s.Lines))
	copy(lines, s.Lines)
	return model.CartState{Lines: lines, TotalItemCount: s.TotalItemCount}
}

func indexOf(lines []model.CartLine, productID string) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Empty возвращает пустую корзину.
func Empty() model.CartState {
	return model.CartState{Lines: []model.CartLine{}}
}

// AddItem увеличивает количество существующей позиции на 1 или добавляет новую позицию в конец.
func AddItem(s model.CartState, item model.CartItem) model.CartState {
	next := clone(s)

	if i := indexOf(next.Lines, item.ProductID); i >= 0 {
		next.Lines[i].Quantity++
	} else {
		next.Lines = append(next.Lines, model.CartLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  1,
			Image:     item.Image,
		})
	}
	next.TotalItemCount++

	return next
}

// RemoveItem удаляет позицию. Отсутствующий товар не меняет состояние.
func RemoveItem(s model.CartState, productID string) model.CartState {
	i := indexOf(s.Lines, productID)
	if i < 0 {
		return s
	}

	next := clone(s)
	next.TotalItemCount -= next.Lines[i].Quantity
	next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)

	return next
}

// UpdateQuantity устанавливает количество позиции, но не меньше 1.
func UpdateQuantity(s model.CartState, productID string, quantity int) model.CartState {
	i := indexOf(s.Lines, productID)
	if i < 0 {
		return s
	}
	if quantity < 1 {
		quantity = 1
	}

	next := clone(s)
	next.TotalItemCount += quantity - next.Lines[i].Quantity
	next.Lines[i].Quantity = quantity

	return next
}

// Clear возвращает пустую корзину.
func Clear(model.CartState) model.CartState {
	return Empty()
}

// Consistent сообщает, выполняются ли инварианты корзины.
func Consistent(s model.CartState) bool {
	seen := make(map[string]struct{}, len(s.Lines))
	sum := 0
	for _, l := range s.Lines {
		if l.Quantity < 1 {
			return false
		}
		if _, dup := seen[l.ProductID]; dup {
			return false
		}
		seen[l.ProductID] = struct{}{}
		sum += l.Quantity
	}
	return sum == s.TotalItemCount
}
