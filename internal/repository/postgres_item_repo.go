package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/campusmart/internal/model"
)

// itemColumns はitemsテーブルのSELECT対象カラム。scanItemの順序と一致させること。
const itemColumns = `id, title, description, price, category, images, seller_id,
	        view_count, message_count, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresItemRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// ListAll は全出品を作成日時の新しい順で返す。
// 評価エンジンはメモリ上の全件走査を前提としているため、ここでは絞り込みを行わない。
// TODO: 出品数が増えた場合はページネーションか条件のSQLへの押し下げに切り替える。
func (r *PostgresItemRepo) ListAll(ctx context.Context) ([]model.Item, error) {
	return r.query(ctx, "出品一覧",
		`SELECT `+itemColumns+`
		 FROM items
		 ORDER BY created_at DESC, id`,
	)
}

// ListBySeller は指定出品者の出品を作成日時の新しい順で返す。
func (r *PostgresItemRepo) ListBySeller(ctx context.Context, sellerID string) ([]model.Item, error) {
	return r.query(ctx, "出品者の出品一覧",
		`SELECT `+itemColumns+`
		 FROM items
		 WHERE seller_id = $1
		 ORDER BY created_at DESC, id`,
		sellerID,
	)
}

// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`,
		id,
	)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	return &item, nil
}

// Create は新規出品を作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, title, description, price, category, images, seller_id,
		                    view_count, message_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.Title, item.Description, item.Price, string(item.Category),
		pq.Array(item.Images), item.SellerID,
		item.ViewCount, item.MessageCount, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("出品の作成に失敗しました: %w", err)
	}
	return nil
}

// IncrementViewCount は閲覧数を1増やす。
func (r *PostgresItemRepo) IncrementViewCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET view_count = view_count + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
	}
	return nil
}

// IncrementMessageCount は問い合わせ数を1増やす。
func (r *PostgresItemRepo) IncrementMessageCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET message_count = message_count + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("問い合わせ数の更新に失敗しました: %w", err)
	}
	return nil
}

// query は複数行を取得して出品スライスに変換する。結果が0件でも空スライスを返す。
func (r *PostgresItemRepo) query(ctx context.Context, what, q string, args ...any) ([]model.Item, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", what, err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("出品行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの走査に失敗しました: %w", what, err)
	}

	return items, nil
}

// scanItem は1行をmodel.Itemに読み取る。
func scanItem(s rowScanner) (model.Item, error) {
	var item model.Item
	var category string

	err := s.Scan(
		&item.ID, &item.Title, &item.Description, &item.Price, &category,
		pq.Array(&item.Images), &item.SellerID,
		&item.ViewCount, &item.MessageCount, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return model.Item{}, err
	}

	item.Category = model.Category(category)
	return item, nil
}
