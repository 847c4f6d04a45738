package service

import (
	"hash/fnv"
	"sync"
)

const alertLockStripes = 64

// alertLocks 按告警 id 分段加锁，串行化同一告警的真阳性/误报确认
// 多实例部署时由 Postgres 行锁兜底（见 repository 的 FOR UPDATE）
type alertLocks struct {
	stripes [alertLockStripes]sync.Mutex
}

func (l *alertLocks) lock(alertID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(alertID))
	m := &l.stripes[h.Sum32()%alertLockStripes]
	m.Lock()
	return m.Unlock
}
