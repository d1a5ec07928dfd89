// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/campusmart/internal/model"
)

// ItemRepository は出品データの取得元インターフェース。
// 出品一覧の評価はこの取得元が返すスナップショットに対して行う。
type ItemRepository interface {
	// ListAll は全出品を作成日時の新しい順で返す。
	// 呼び出しごとに独立したスライスを返し、呼び出し側が変更しても取得元に影響しない。
	ListAll(ctx context.Context) ([]model.Item, error)

	// ListBySeller は指定出品者の出品を作成日時の新しい順で返す。
	ListBySeller(ctx context.Context, sellerID string) ([]model.Item, error)

	// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// Create は出品を作成する。
	Create(ctx context.Context, item *model.Item) error

	// IncrementViewCount は閲覧数を1増やす。対象がない場合は何もしない。
	IncrementViewCount(ctx context.Context, id string) error

	// IncrementMessageCount は問い合わせ数を1増やす。対象がない場合は何もしない。
	IncrementMessageCount(ctx context.Context, id string) error
}
