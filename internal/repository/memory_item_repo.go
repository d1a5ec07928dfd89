package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/campusmart/internal/model"
)

// MemoryItemRepo はメモリ上に出品を保持するリポジトリ。
// DATABASE_URL未設定時の取得元として使用し、プロセス終了とともに内容は失われる。
type MemoryItemRepo struct {
	mu    sync.RWMutex
	items []model.Item
}

// NewMemoryItemRepo は指定した出品で初期化したMemoryItemRepoを生成する。
func NewMemoryItemRepo(seed []model.Item) *MemoryItemRepo {
	items := make([]model.Item, len(seed))
	for i, item := range seed {
		items[i] = cloneItem(item)
	}
	return &MemoryItemRepo{items: items}
}

// ListAll は全出品のコピーを作成日時の新しい順で返す。
func (r *MemoryItemRepo) ListAll(_ context.Context) ([]model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.Item, len(r.items))
	for i, item := range r.items {
		result[i] = cloneItem(item)
	}
	sortNewestFirst(result)
	return result, nil
}

// ListBySeller は指定出品者の出品のコピーを作成日時の新しい順で返す。
func (r *MemoryItemRepo) ListBySeller(_ context.Context, sellerID string) ([]model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []model.Item{}
	for _, item := range r.items {
		if item.SellerID == sellerID {
			result = append(result, cloneItem(item))
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// FindByID は指定IDの出品のコピーを返す。見つからない場合はnilを返す。
func (r *MemoryItemRepo) FindByID(_ context.Context, id string) (*model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return nil, nil
	}
	item := cloneItem(r.items[idx])
	return &item, nil
}

// Create は出品を追加する。
func (r *MemoryItemRepo) Create(_ context.Context, item *model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, cloneItem(*item))
	return nil
}

// IncrementViewCount は閲覧数を1増やす。
func (r *MemoryItemRepo) IncrementViewCount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := r.indexOf(id); idx >= 0 {
		r.items[idx].ViewCount++
	}
	return nil
}

// IncrementMessageCount は問い合わせ数を1増やす。
func (r *MemoryItemRepo) IncrementMessageCount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := r.indexOf(id); idx >= 0 {
		r.items[idx].MessageCount++
	}
	return nil
}

// PingContext はヘルスチェック用。メモリ上の取得元は常に正常。
func (r *MemoryItemRepo) PingContext(_ context.Context) error {
	return nil
}

// indexOf は指定IDの添字を返す。呼び出し側でロックを保持すること。
func (r *MemoryItemRepo) indexOf(id string) int {
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}

// cloneItem は画像スライスを複製した出品のコピーを返す。
func cloneItem(item model.Item) model.Item {
	item.Images = slices.Clone(item.Images)
	return item
}

// sortNewestFirst は作成日時の新しい順に安定ソートする。
func sortNewestFirst(items []model.Item) {
	slices.SortStableFunc(items, func(a, b model.Item) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// MockCatalog はプロトタイプで使用していたモックの出品一覧を返す。
// DATABASE_URL未設定時の初期データとして使用する。
func MockCatalog() []model.Item {
	at := func(s string) time.Time {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(err)
		}
		return t
	}

	return []model.Item{
		{
			ID:          "1",
			Title:       "Data Structures and Algorithms Textbook",
			Description: "Comprehensive textbook in excellent condition. Includes all chapters with minimal highlighting. Perfect for CSE students. Used for only one semester.",
			Price:       800,
			Category:    model.CategoryBooks,
			Images: []string{
				"https://via.placeholder.com/600x400?text=Book+Front",
				"https://via.placeholder.com/600x400?text=Book+Back",
				"https://via.placeholder.com/600x400?text=Book+Inside",
			},
			SellerID:     "seller-john",
			ViewCount:    45,
			MessageCount: 8,
			CreatedAt:    at("2025-01-15T10:30:00Z"),
			UpdatedAt:    at("2025-01-15T10:30:00Z"),
		},
		{
			ID:          "2",
			Title:       "MacBook Air M1 - Excellent Condition",
			Description: "8GB RAM, 256GB SSD. Battery health 91%. Charger included.",
			Price:       45000,
			Category:    model.CategoryElectronics,
			Images: []string{
				"https://via.placeholder.com/300x200?text=MacBook",
			},
			SellerID:  "seller-priya",
			CreatedAt: at("2025-01-14T15:20:00Z"),
			UpdatedAt: at("2025-01-14T15:20:00Z"),
		},
		{
			ID:          "3",
			Title:       "Mountain Bike - Trek 3500",
			Description: "21-speed, recently serviced. Minor scratches on the frame.",
			Price:       12000,
			Category:    model.CategoryBicycles,
			Images: []string{
				"https://via.placeholder.com/300x200?text=Bike",
			},
			SellerID:  "seller-arjun",
			CreatedAt: at("2025-01-13T09:15:00Z"),
			UpdatedAt: at("2025-01-13T09:15:00Z"),
		},
		{
			ID:          "4",
			Title:       "Scientific Calculator",
			Description: "Casio fx-991EX, works perfectly. Allowed in university exams.",
			Price:       1200,
			Category:    model.CategoryElectronics,
			Images: []string{
				"https://via.placeholder.com/300x200?text=Calculator",
			},
			SellerID:     "seller-john",
			ViewCount:    32,
			MessageCount: 5,
			CreatedAt:    at("2025-01-10T14:20:00Z"),
			UpdatedAt:    at("2025-01-10T14:20:00Z"),
		},
	}
}
