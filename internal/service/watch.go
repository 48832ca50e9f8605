package service

import (
	"sort"
	"sync"
	"time"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// Watch 最近被访问过的报告
type Watch struct {
	Key    model.ReportKey
	UserID int64
	SeenAt time.Time
}

// WatchList 记录最近被查看的 (cycle, report)，供对账巡检使用
type WatchList struct {
	mu      sync.Mutex
	watches map[model.ReportKey]Watch
	now     func() time.Time
}

func NewWatchList() *WatchList {
	return &WatchList{
		watches: make(map[model.ReportKey]Watch),
		now:     time.Now,
	}
}

// Touch 记录访问；userID 为 0 时保留之前的用户
func (w *WatchList) Touch(key model.ReportKey, userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	watch := Watch{Key: key, UserID: userID, SeenAt: w.now()}
	if prev, ok := w.watches[key]; ok && userID == 0 {
		watch.UserID = prev.UserID
	}
	w.watches[key] = watch
}

func (w *WatchList) Forget(key model.ReportKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watches, key)
}

// Active 返回 ttl 内的记录并丢弃其余
func (w *WatchList) Active(ttl time.Duration) []Watch {
	w.mu.Lock()
	cutoff := w.now().Add(-ttl)
	out := make([]Watch, 0, len(w.watches))
	for key, watch := range w.watches {
		if watch.SeenAt.Before(cutoff) {
			delete(w.watches, key)
			continue
		}
		out = append(out, watch)
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.CycleID != out[j].Key.CycleID {
			return out[i].Key.CycleID < out[j].Key.CycleID
		}
		return out[i].Key.ReportID < out[j].Key.ReportID
	})
	return out
}

func (w *WatchList) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watches)
}
