// Package session 维护每个会话的内存状态。
// 状态只存在于进程内存中，进程重启即丢失，这是有意为之的设计。
package session

import (
	"sync"
	"time"

	"cogvideo-bot-go/internal/model"
)

// Key 唯一标识一个聊天上下文里的一位用户。
type Key struct {
	FromWxid   string
	SenderWxid string
}

// State 是一个会话的可变状态。
type State struct {
	// TaskID 是最近一次提交且尚未解决的任务，空串表示没有。
	TaskID string
	// Status 是 TaskID 对应任务的最近已知状态。
	Status string
	// LastImage 是用户最近发送的图片句柄，图生视频时消费（但不清除）。
	LastImage string
	// LastActive 在每次命令或收图时刷新，驱动过期清理。
	LastActive time.Time
}

// Store 以 Key 为键保存会话状态。所有方法并发安全：
// 入站消息处理与后台轮询 goroutine 会同时触碰同一个键。
type Store struct {
	mu       sync.Mutex
	sessions map[Key]*State
	ttl      time.Duration
	now      func() time.Time
}

// NewStore 创建一个会话存储，ttl 为空闲会话的存活时间。
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[Key]*State),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetOrCreate 返回指定键的会话状态快照，不存在时惰性创建。
func (s *Store) GetOrCreate(key Key) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.locked(key)
}

// UpdateImage 缓存用户最近发送的图片，并刷新活跃时间。
func (s *Store) UpdateImage(key Key, image string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.locked(key)
	st.LastImage = image
	st.LastActive = s.now()
}

// LastImage 返回缓存的图片句柄；没有缓存过时返回 false。
func (s *Store) LastImage(key Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[key]
	if !ok || st.LastImage == "" {
		return "", false
	}
	return st.LastImage, true
}

// RecordSubmission 记录一次已被接受的任务提交。
// 新提交会直接覆盖旧的任务引用：每个键同一时刻至多一个活跃任务。
func (s *Store) RecordSubmission(key Key, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.locked(key)
	st.TaskID = taskID
	st.Status = model.TaskStatusProcessing
	st.LastActive = s.now()
}

// CompleteTask 由后台轮询器在任务到达终态时调用。
// 只有当会话仍然存在且其活跃任务就是 taskID 时才写入状态：
// 被新提交取代的旧轮询器静默完成，不得复活过期的会话数据。
func (s *Store) CompleteTask(key Key, taskID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[key]
	if !ok || st.TaskID != taskID {
		return
	}
	st.Status = status
}

// Clear 删除整个会话，返回之前是否存在（结束对话命令据此选择回复文案）。
func (s *Store) Clear(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[key]
	delete(s.sessions, key)
	return ok
}

// SweepExpired 删除所有空闲超过 TTL 的会话，返回删除数量。
// 在每条入站消息处理开始时顺带调用，O(活跃会话数)，可以频繁调用。
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, st := range s.sessions {
		if now.Sub(st.LastActive) > s.ttl {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Snapshot 返回当前所有会话的拷贝，供管理接口查看。
func (s *Store) Snapshot() map[Key]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Key]State, len(s.sessions))
	for key, st := range s.sessions {
		out[key] = *st
	}
	return out
}

// locked 在持有锁的前提下取出或创建会话。
func (s *Store) locked(key Key) *State {
	st, ok := s.sessions[key]
	if !ok {
		st = &State{LastActive: s.now()}
		s.sessions[key] = st
	}
	return st
}
