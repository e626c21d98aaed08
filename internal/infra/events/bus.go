package events

import (
	"context"
	"sync"

	"ecinventory/internal/domain/model"

	"github.com/sirupsen/logrus"
)

// プロセス内の在庫変更イベント配信。購読者ごとにバッファ付きchannel。
// 送信はブロックしない（満杯なら捨てて警告）。
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan model.StockChanged
	nextID int
	buffer int
	closed bool
	logger *logrus.Logger
}

func NewBus(buffer int, logger *logrus.Logger) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bus{
		subs:   map[int]chan model.StockChanged{},
		buffer: buffer,
		logger: logger,
	}
}

// 購読。戻り値の関数で解除（channelは閉じられる）
func (b *Bus) Subscribe() (<-chan model.StockChanged, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.StockChanged, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *Bus) Publish(_ context.Context, ev model.StockChanged) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"event_id":   ev.EventID,
				"product_id": ev.ProductID,
			}).Warn("stock event dropped, subscriber buffer full")
		}
	}
	return nil
}

// 全購読を閉じる
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
