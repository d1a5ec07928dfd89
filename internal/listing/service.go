package listing

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hitoshi/campusmart/internal/metrics"
	"github.com/hitoshi/campusmart/internal/model"
	"github.com/hitoshi/campusmart/internal/repository"
	"github.com/hitoshi/campusmart/internal/security"
)

// defaultQueryTimeout はバックグラウンド評価で取得元に問い合わせる際の既定タイムアウト。
const defaultQueryTimeout = 5 * time.Second

// ServiceOptions はServiceの動作設定。
type ServiceOptions struct {
	// QueryTimeout はバックグラウンド評価の取得元タイムアウト。0以下なら既定値。
	QueryTimeout time.Duration
	// VerifyImages がtrueの場合、出品作成時に画像URLへHEADリクエストを送って到達確認する。
	VerifyImages bool
}

// Service は出品一覧の評価・セッションごとの条件管理・出品の作成を提供する。
type Service struct {
	repo      repository.ItemRepository
	sessions  *SessionStore
	sanitizer security.TextSanitizer
	images    security.ImageRefGuard
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	queryTimeout time.Duration
	verifyImages bool
	now          func() time.Time

	entropyMu sync.Mutex
	entropy   io.Reader

	wg sync.WaitGroup
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ItemRepository,
	sessions *SessionStore,
	sanitizer security.TextSanitizer,
	images security.ImageRefGuard,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts ServiceOptions,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}

	return &Service{
		repo:         repo,
		sessions:     sessions,
		sanitizer:    sanitizer,
		images:       images,
		metrics:      collector,
		logger:       logger,
		queryTimeout: opts.QueryTimeout,
		verifyImages: opts.VerifyImages,
		now:          time.Now,
		entropy:      ulid.Monotonic(rand.Reader, 0),
	}
}

// Query は取得元のスナップショットに条件を適用した結果を返す。
func (s *Service) Query(ctx context.Context, spec model.FilterSpec) ([]model.Item, error) {
	start := time.Now()

	items, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}

	result := Evaluate(items, spec)
	s.metrics.RecordEvaluation(time.Since(start), len(result))

	return result, nil
}

// QuerySequenced はクライアントが採番したseq付きで評価を行う。
// 評価中により新しいseqが同じセッションで観測された場合は結果を破棄し、stale=trueを返す。
func (s *Service) QuerySequenced(
	ctx context.Context,
	sessionID string,
	seq uint64,
	spec model.FilterSpec,
) (items []model.Item, stale bool, err error) {
	sess := s.sessions.GetOrCreate(sessionID)
	sess.BeginQuery(seq)

	items, err = s.Query(ctx, spec)
	if err != nil {
		return nil, false, err
	}

	if !sess.FinishQuery(seq) {
		s.metrics.RecordStaleDiscarded()
		s.logger.Debug("stale query result discarded",
			slog.String("session_id", sessionID),
			slog.Uint64("seq", seq),
		)
		return nil, true, nil
	}
	return items, false, nil
}

// SessionFilters はセッションの現在の条件を返す。
func (s *Service) SessionFilters(sessionID string) model.FilterSpec {
	return s.sessions.GetOrCreate(sessionID).Spec()
}

// UpdateSessionFilters はセッションの条件を部分更新し、バックグラウンドで再評価を開始する。
// 戻り値のseqで評価結果の適用を追跡できる。評価は途中で止めず、追い越された結果は破棄される。
func (s *Service) UpdateSessionFilters(
	ctx context.Context,
	sessionID string,
	patch FilterPatch,
) (model.FilterSpec, uint64) {
	sess := s.sessions.GetOrCreate(sessionID)
	spec, seq := sess.Apply(patch)
	s.evaluateAsync(ctx, sess, seq, spec)
	return spec, seq
}

// ClearSessionFilters はセッションの条件を空に戻し、バックグラウンドで再評価を開始する。
func (s *Service) ClearSessionFilters(ctx context.Context, sessionID string) (model.FilterSpec, uint64) {
	sess := s.sessions.GetOrCreate(sessionID)
	spec, seq := sess.Clear()
	s.evaluateAsync(ctx, sess, seq, spec)
	return spec, seq
}

// SessionResult はセッションに適用済みの評価結果を返す。
func (s *Service) SessionResult(sessionID string) Snapshot {
	return s.sessions.GetOrCreate(sessionID).Result()
}

// EnsureSessionResult はセッションの評価結果を返す。
// 一度も評価していないセッションでは現在の条件で評価を開始し、loading状態を返す。
func (s *Service) EnsureSessionResult(ctx context.Context, sessionID string) Snapshot {
	sess := s.sessions.GetOrCreate(sessionID)
	if spec, seq, ok := sess.RefreshIfUnevaluated(); ok {
		s.evaluateAsync(ctx, sess, seq, spec)
	}
	return sess.Result()
}

// Wait は実行中のバックグラウンド評価がすべて終わるまで待つ。
// シャットダウン時とテストで使用する。
func (s *Service) Wait() {
	s.wg.Wait()
}

// evaluateAsync はspecの評価をゴルーチンで実行し、結果をセッションに届ける。
// リクエストのキャンセルは引き継がず、取得元への問い合わせにはqueryTimeoutを適用する。
func (s *Service) evaluateAsync(ctx context.Context, sess *Session, seq uint64, spec model.FilterSpec) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.queryTimeout)
		defer cancel()

		items, err := s.Query(qctx, spec)
		if err != nil {
			s.logger.Error("background evaluation failed",
				slog.String("session_id", sess.ID),
				slog.Uint64("seq", seq),
				slog.String("error", err.Error()),
			)
		}

		if !sess.Deliver(seq, items, err) {
			s.metrics.RecordStaleDiscarded()
			s.logger.Debug("stale session result discarded",
				slog.String("session_id", sess.ID),
				slog.Uint64("seq", seq),
			)
		}
	}()
}

// GetItem は出品の詳細を返し、閲覧数を1増やす。
func (s *Service) GetItem(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}

	if err := s.repo.IncrementViewCount(ctx, id); err != nil {
		return nil, err
	}
	item.ViewCount++

	return item, nil
}

// RecordContact は出品者への問い合わせ意図を記録し、問い合わせ数を1増やす。
// メッセージの配送は行わない。
func (s *Service) RecordContact(ctx context.Context, id string) error {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if item == nil {
		return model.NewItemNotFoundError(id)
	}

	return s.repo.IncrementMessageCount(ctx, id)
}

// CreateItemInput は出品作成の入力。
type CreateItemInput struct {
	Title       string
	Description string
	Price       int64
	Category    string
	Images      []string
	SellerID    string
}

// CreateItem は入力を検証・無害化して出品を作成する。
// タイトルと説明はプレーンテキスト化し、画像は公開URLへの参照のみ受け付ける。
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (*model.Item, error) {
	title := s.sanitizer.Sanitize(input.Title)
	description := s.sanitizer.Sanitize(input.Description)
	category := model.Category(strings.TrimSpace(input.Category))
	sellerID := strings.TrimSpace(input.SellerID)

	images := make([]string, 0, len(input.Images))
	for _, raw := range input.Images {
		if u := strings.TrimSpace(raw); u != "" {
			images = append(images, u)
		}
	}

	fields := map[string]string{}
	if title == "" {
		fields["title"] = "required"
	}
	if description == "" {
		fields["description"] = "required"
	}
	if input.Price < 0 {
		fields["price"] = "must be non-negative"
	}
	if !category.Valid() {
		fields["category"] = "unknown category"
	}
	if n := len(images); n < model.MinImagesPerItem || n > model.MaxImagesPerItem {
		fields["images"] = fmt.Sprintf("between %d and %d required", model.MinImagesPerItem, model.MaxImagesPerItem)
	}
	if sellerID == "" {
		fields["seller_id"] = "required"
	}
	if len(fields) > 0 {
		return nil, model.NewInvalidItemError(fields)
	}

	for _, u := range images {
		if err := s.images.ValidateImageURL(u); err != nil {
			return nil, model.NewInvalidImageRefError(err.Error())
		}
	}
	if s.verifyImages {
		for _, u := range images {
			if err := s.images.Probe(ctx, u); err != nil {
				s.metrics.RecordImageProbeFailure()
				s.logger.Warn("image probe failed",
					slog.String("url", u),
					slog.String("error", err.Error()),
				)
				return nil, model.NewImageUnreachableError(u)
			}
		}
	}

	now := s.now().UTC()
	item := &model.Item{
		ID:          s.newID(now),
		Title:       title,
		Description: description,
		Price:       input.Price,
		Category:    category,
		Images:      images,
		SellerID:    sellerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := item.Validate(); err != nil {
		return nil, model.NewInvalidItemError(map[string]string{"item": err.Error()})
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.metrics.RecordItemCreated()
	s.logger.Info("item created",
		slog.String("item_id", item.ID),
		slog.String("seller_id", item.SellerID),
		slog.String("category", string(item.Category)),
	)

	return item, nil
}

// newID は作成日時を埋め込んだULIDを発行する。Monotonicエントロピーは並行利用できないためロックする。
func (s *Service) newID(at time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

// SellerStats は出品者ダッシュボードの集計値。
type SellerStats struct {
	TotalItems    int
	TotalViews    int
	TotalMessages int
	TotalValue    int64 // 出品中の商品の価格合計
}

// SellerDashboard は出品者の出品一覧と集計値。
type SellerDashboard struct {
	Items []model.Item
	Stats SellerStats
}

// SellerListings は出品者の出品を新しい順で返し、閲覧数・問い合わせ数・価格を集計する。
func (s *Service) SellerListings(ctx context.Context, sellerID string) (*SellerDashboard, error) {
	items, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("出品者の出品一覧の取得に失敗しました: %w", err)
	}

	return &SellerDashboard{
		Items: items,
		Stats: ComputeSellerStats(items),
	}, nil
}

// ComputeSellerStats は出品の集計値を計算する。
func ComputeSellerStats(items []model.Item) SellerStats {
	var st SellerStats
	for _, item := range items {
		st.TotalItems++
		st.TotalViews += item.ViewCount
		st.TotalMessages += item.MessageCount
		st.TotalValue += item.Price
	}
	return st
}

// Option は選択肢の値と表示ラベル。
type Option struct {
	Value string
	Label string
}

// Categories はカテゴリの選択肢を表示順で返す。
func Categories() []Option {
	cats := model.Categories()
	opts := make([]Option, len(cats))
	for i, c := range cats {
		opts[i] = Option{Value: string(c), Label: c.Label()}
	}
	return opts
}

// SortOptions はソートキーの選択肢を表示順で返す。
func SortOptions() []Option {
	keys := model.SortKeys()
	opts := make([]Option, len(keys))
	for i, k := range keys {
		opts[i] = Option{Value: string(k), Label: k.Label()}
	}
	return opts
}
