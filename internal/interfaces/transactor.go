package interfaces

import "context"

// Transactor абстрагирует границу транзакции. Реализация обязана откатывать
// транзакцию при ошибке fn и при панике, освобождая соединение на всех путях выхода.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}
