// Package reservation управляет исключительным владением билетами внутри транзакции заказа.
package reservation

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/clock"
	"github.com/vladislavdragonenkov/resale/internal/domain"
)

// Service переводит билеты Active ⇄ Sold. Все методы требуют открытой единицы работы в ctx.
type Service struct {
	inventory domain.InventoryRepository
	clock     clock.Clock
	logger    *log.Entry
}

// NewService создаёт сервис резервирования.
func NewService(inventory domain.InventoryRepository, clk clock.Clock, logger *log.Entry) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = log.WithField("component", "reservation")
	}
	return &Service{inventory: inventory, clock: clk, logger: logger}
}

// Reserve блокирует билеты по возрастанию ID и переводит их в Sold.
// Если хотя бы один билет недоступен, ничего не меняется и возвращается ErrInventoryConflict.
func (s *Service) Reserve(ctx context.Context, itemIDs []string) ([]domain.InventoryItem, error) {
	ids := normalize(itemIDs)
	if len(ids) == 0 {
		return nil, domain.ErrItemsRequired
	}

	locked, err := s.inventory.LockItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, li := range locked {
		if li.Item.Status != domain.ItemStatusActive || li.ListingStatus != domain.ListingStatusActive {
			s.logger.WithFields(log.Fields{
				"item_id":        li.Item.ID,
				"item_status":    li.Item.Status,
				"listing_status": li.ListingStatus,
			}).Debug("item unavailable for reservation")
			return nil, fmt.Errorf("item %s is %s: %w", li.Item.ID, li.Item.Status, domain.ErrInventoryConflict)
		}
	}

	now := s.clock.Now()
	if err := s.inventory.SetStatus(ctx, ids, domain.ItemStatusSold, now); err != nil {
		return nil, err
	}

	items := make([]domain.InventoryItem, 0, len(locked))
	for _, li := range locked {
		item := li.Item
		item.Status = domain.ItemStatusSold
		item.UpdatedAt = now
		items = append(items, item)
	}
	return items, nil
}

// Release возвращает проданные билеты в продажу. Билет листинга, который уже завершился,
// получает статус, соответствующий листингу. Активные билеты не меняются.
func (s *Service) Release(ctx context.Context, itemIDs []string) error {
	ids := normalize(itemIDs)
	if len(ids) == 0 {
		return nil
	}

	locked, err := s.inventory.LockItems(ctx, ids)
	if err != nil {
		return err
	}

	targets := make(map[domain.ItemStatus][]string)
	for _, li := range locked {
		if li.Item.Status != domain.ItemStatusSold {
			if li.Item.Status != domain.ItemStatusActive {
				s.logger.WithFields(log.Fields{
					"item_id":     li.Item.ID,
					"item_status": li.Item.Status,
				}).Warn("release skipped: item is not sold")
			}
			continue
		}
		target := li.ListingStatus.ItemStatusFor()
		targets[target] = append(targets[target], li.Item.ID)
	}

	now := s.clock.Now()
	for status, group := range targets {
		if err := s.inventory.SetStatus(ctx, group, status, now); err != nil {
			return err
		}
	}
	return nil
}

func normalize(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
