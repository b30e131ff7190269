package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"tourneykit/core"
)

// A skip list keyed by (score desc, user asc). Each forward link records how
// many level-0 nodes it skips so ranks are O(log n) as well.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
	span [maxLevel]int
}

type SkipList struct {
	mu     sync.RWMutex
	head   *node
	lvl    int
	length int
	byUser map[core.UserID]*node
	rng    *rand.Rand
}

func NewSkipList() *SkipList {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:   &node{},
		lvl:    1,
		byUser: map[core.UserID]*node{},
		rng:    rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func less(a, b Entry) bool {
	if a.Score == b.Score {
		return a.User < b.User
	}
	return a.Score > b.Score // higher score first
}

// Update inserts or moves user to a new score.
func (s *SkipList) Update(user core.UserID, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byUser[user]; ok {
		if old.e.Score == score {
			return
		}
		s.removeLocked(user, old.e)
	}
	e := Entry{User: user, Score: score}
	var update [maxLevel]*node
	var rank [maxLevel]int
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		if i < s.lvl-1 {
			rank[i] = rank[i+1]
		}
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			rank[i] += cur.span[i]
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			rank[i] = 0
			update[i] = s.head
			update[i].span[i] = s.length
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
		n.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := lvl; i < s.lvl; i++ {
		update[i].span[i]++
	}
	s.length++
	s.byUser[user] = n
}

func (s *SkipList) removeLocked(user core.UserID, e Entry) {
	var update [maxLevel]*node
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.User != user {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].span[i] += target.span[i] - 1
			update[i].next[i] = target.next[i]
		} else {
			update[i].span[i]--
		}
	}
	delete(s.byUser, user)
	s.length--
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(user core.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byUser[user]; ok {
		s.removeLocked(user, n.e)
	}
}

func (s *SkipList) TopN(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, min(n, s.length))
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		out = append(out, cur.e)
		cur = cur.next[0]
	}
	return out
}

func (s *SkipList) Get(user core.UserID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byUser[user]; ok {
		return n.e, true
	}
	return Entry{}, false
}

// Rank returns the 1-based position of user.
func (s *SkipList) Rank(user core.UserID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byUser[user]
	if !ok {
		return 0, false
	}
	rank := 0
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && (cur.next[i] == n || less(cur.next[i].e, n.e)) {
			rank += cur.span[i]
			cur = cur.next[i]
			if cur == n {
				return rank, true
			}
		}
	}
	return 0, false
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

var _ Board = (*SkipList)(nil)
