package listing

import (
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/campusmart/internal/model"
)

// Session は1つのブラウジングセッションが保持する絞り込み条件と最新の評価結果。
// 条件は空で生成され、フィールド単位で更新され、クリア操作で初期化される。永続化はしない。
//
// ロック順序は常に Session.mu → Sequencer.mu とする。
type Session struct {
	ID string

	mu         sync.Mutex
	spec       model.FilterSpec
	seq        Sequencer // 条件変更ごとのバックグラウンド評価
	queries    Sequencer // クライアントが番号を付けて送るステートレスな評価
	result     []model.Item
	resultErr  error
	resultSeq  uint64
	lastAccess time.Time
}

// Snapshot はセッションに適用済みの評価結果。
type Snapshot struct {
	Spec    model.FilterSpec
	Items   []model.Item // 一度も評価されていない場合はnil
	Seq     uint64       // Itemsを生成した評価のシーケンス番号
	Loading bool         // 最新の評価がまだ適用されていない
	Err     error        // 最後に適用された評価が失敗した場合のエラー
}

// NewSession は空の条件を持つSessionを生成する。
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		lastAccess: now,
	}
}

// Spec は現在の条件のディープコピーを返す。
func (s *Session) Spec() model.FilterSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec.Clone()
}

// Apply は条件に部分更新を適用し、更新後の条件のコピーと新しいシーケンス番号を返す。
func (s *Session) Apply(patch FilterPatch) (model.FilterSpec, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spec = patch.ApplyTo(s.spec)
	return s.spec.Clone(), s.seq.Next()
}

// Clear は条件を空に戻し、空の条件と新しいシーケンス番号を返す。
func (s *Session) Clear() (model.FilterSpec, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spec = model.FilterSpec{}
	return s.spec.Clone(), s.seq.Next()
}

// Refresh は条件を変えずに新しいシーケンス番号を発行する。一度も評価していないセッションの初回評価に使う。
func (s *Session) Refresh() (model.FilterSpec, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.spec.Clone(), s.seq.Next()
}

// RefreshIfUnevaluated は一度も評価を発行していない場合に限り、Refreshと同様に番号を発行してok=trueを返す。
// 判定と発行を同じロック区間で行うため、同時に呼ばれても初回評価は1回だけ発行される。
func (s *Session) RefreshIfUnevaluated() (spec model.FilterSpec, seq uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq.Latest() > 0 {
		return model.FilterSpec{}, 0, false
	}
	return s.spec.Clone(), s.seq.Next(), true
}

// Deliver は評価結果を適用する。seqが最新でない場合は破棄してfalseを返す。
// errが非nilの場合は失敗として記録し、直前の結果は保持しない。
func (s *Session) Deliver(seq uint64, items []model.Item, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seq.TryApply(seq, func() {
		if err != nil {
			s.result = nil
		} else {
			s.result = items
		}
		s.resultErr = err
		s.resultSeq = seq
	})
}

// Result は現在の条件と最後に適用された評価結果を返す。
func (s *Session) Result() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Spec:    s.spec.Clone(),
		Items:   slices.Clone(s.result),
		Seq:     s.resultSeq,
		Loading: s.seq.Pending(),
		Err:     s.resultErr,
	}
}

// BeginQuery はクライアントが採番したステートレス評価のシーケンス番号を記録する。
func (s *Session) BeginQuery(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries.Observe(seq)
}

// FinishQuery はステートレス評価の結果を返してよいかを判定する。
// より新しい番号が観測済みの場合はfalseを返し、呼び出し側は結果を破棄する。
// 最新の番号の再送は何度でも受け付ける。
func (s *Session) FinishQuery(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries.AcceptLatest(seq)
}

// touch は最終アクセス時刻を更新する。
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// idleSince は最終アクセスからの経過時間を返す。
func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

// SessionStore はセッションIDごとのSessionを管理する。
// 一定時間アクセスのないセッションはバックグラウンドで破棄する。
type SessionStore struct {
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionStore は新しいSessionStoreを生成し、期限切れセッションの掃除を開始する。
// idleTTLが0以下の場合は30分を使用する。
func NewSessionStore(idleTTL time.Duration) *SessionStore {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	st := &SessionStore{
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}

	go st.cleanupLoop()

	return st
}

// Stop は掃除用のバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (st *SessionStore) Stop() {
	st.stopOnce.Do(func() { close(st.stopCh) })
}

// GetOrCreate は指定IDのSessionを返す。存在しない場合は空の条件で生成する。
func (st *SessionStore) GetOrCreate(id string) *Session {
	now := st.now()

	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if ok {
		s.touch(now)
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// ダブルチェック
	if s, ok := st.sessions[id]; ok {
		s.touch(now)
		return s
	}

	s = NewSession(id, now)
	st.sessions[id] = s
	return s
}

// Len は管理中のセッション数を返す。テストおよびメトリクス用。
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// cleanupLoop はidleTTLの半分の間隔で期限切れセッションを削除する。
func (st *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(st.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.cleanup()
		case <-st.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからidleTTLを超えたセッションを削除する。
func (st *SessionStore) cleanup() {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range st.sessions {
		if s.idleSince(now) > st.idleTTL {
			delete(st.sessions, id)
		}
	}
}
