package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

type txKey struct{}

// txLog копит откаты записей, сделанных через ctx транзакции.
type txLog struct {
	mu   sync.Mutex
	undo []func()
}

// onRollback регистрирует откат записи, если ctx принадлежит транзакции.
// Записи без транзакции откатывать некому, они применяются сразу.
func onRollback(ctx context.Context, undo func()) {
	log, ok := ctx.Value(txKey{}).(*txLog)
	if !ok {
		return
	}
	log.mu.Lock()
	log.undo = append(log.undo, undo)
	log.mu.Unlock()
}

func (l *txLog) rollback() {
	l.mu.Lock()
	undo := l.undo
	l.undo = nil
	l.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// TxManager эмулирует транзакции поверх in-memory хранилищ.
// Транзакции выполняются строго по одной. При ошибке fn откатываются только
// записи, сделанные через переданный в fn ctx; записи вне транзакции сохраняются.
type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager {
	return &TxManager{}
}

// WithinTx выполняет fn в транзакции. Вложенный вызов выполняется в объемлющей транзакции.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := &txLog{}
	defer func() {
		if r := recover(); r != nil {
			log.rollback()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

var _ domain.TxManager = (*TxManager)(nil)
