package service

import (
	"math/rand"
	"sync"
	"time"
)

// Sampler 均匀随机排列后取前 N 个，随机源可注入以便测试复现
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSampler(rnd *rand.Rand) *Sampler {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sampler{rnd: rnd}
}

// Shuffle Fisher-Yates 原地打乱
func (s *Sampler) Shuffle(ids []uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(ids) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// Take 不修改 pool，返回 n 个互不相同的元素；n 超过 pool 大小时返回 false
func (s *Sampler) Take(pool []uint, n int) ([]uint, bool) {
	if n < 0 || n > len(pool) {
		return nil, false
	}
	ids := make([]uint, len(pool))
	copy(ids, pool)
	s.Shuffle(ids)
	return ids[:n], true
}
