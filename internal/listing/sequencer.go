package listing

import "sync"

// Sequencer は評価結果の適用を「最新のみ有効（latest-wins）」に逐次化する。
//
// 評価の発行ごとに単調増加するシーケンス番号を割り当て、
// これまでに観測した最大の番号を持つ結果だけを適用する。
// 古い結果はエラーにせず黙って破棄する。実行中の評価を止めることはしない。
type Sequencer struct {
	mu      sync.Mutex
	latest  uint64 // 発行・観測した最大のシーケンス番号
	applied uint64 // 最後に適用したシーケンス番号
}

// Next は新しいシーケンス番号を発行する。
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest++
	return s.latest
}

// Observe は呼び出し側が採番したシーケンス番号を記録する。
// HTTPクライアントが自前の番号を送ってくる場合に使用する。
func (s *Sequencer) Observe(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq > s.latest {
		s.latest = seq
	}
}

// TryApply はseqが観測済みの最大番号であり、かつ適用済みの番号より新しい場合に限りapplyを実行してtrueを返す。
// それ以外はapplyを呼ばずにfalseを返す。applyはロック保持中に実行されるため短く保つこと。
func (s *Sequencer) TryApply(seq uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.latest || seq <= s.applied {
		return false
	}

	s.applied = seq
	s.latest = seq
	if apply != nil {
		apply()
	}
	return true
}

// AcceptLatest はseqが観測済みの最大番号以上であればtrueを返し、適用済みとして記録する。
// TryApplyと異なり、適用済みと同じ番号も受け付ける。応答を受け取れなかったクライアントが
// 同じ番号で再送した場合に、その番号がまだ最新なら結果を返せるようにする。
func (s *Sequencer) AcceptLatest(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.latest {
		return false
	}
	s.latest = seq
	if seq > s.applied {
		s.applied = seq
	}
	return true
}

// Latest は観測済みの最大シーケンス番号を返す。
func (s *Sequencer) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Applied は最後に適用したシーケンス番号を返す。
func (s *Sequencer) Applied() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Pending は最新の番号がまだ適用されていないかを返す。
func (s *Sequencer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest > s.applied
}
