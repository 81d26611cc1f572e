package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"codeq/internal/models"
)

type memAnswer struct {
	questionID uint
	createdAt  time.Time
	accepted   bool
}

// memStore is an in-memory VoteStore with the same uniqueness rules as the
// votes table.
type memStore struct {
	mu        sync.Mutex
	users     map[uint]bool
	questions map[uint]bool
	answers   map[uint]*memAnswer
	votes     map[uint]*models.Vote
	nextID    uint

	// findGate, when set, makes the first findGateN FindVote calls wait
	// for each other before reading.
	findGate  *sync.WaitGroup
	findGateN int

	// readGate, when set, makes the first readGateN FindVote calls wait for
	// each other after reading, so every caller acts on the same snapshot.
	readGate  *sync.WaitGroup
	readGateN int

	failInsert error
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uint]bool{},
		questions: map[uint]bool{},
		answers:   map[uint]*memAnswer{},
		votes:     map[uint]*models.Vote{},
	}
}

func (m *memStore) addUser(id uint)     { m.users[id] = true }
func (m *memStore) addQuestion(id uint) { m.questions[id] = true }

func (m *memStore) addAnswer(id, questionID uint, createdAt time.Time) {
	m.answers[id] = &memAnswer{questionID: questionID, createdAt: createdAt}
}

// setScore adds votes from fresh users until target's score moves by score.
func (m *memStore) setScore(target models.VoteTarget, score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value := 1
	if score < 0 {
		value = -1
		score = -score
	}
	for i := 0; i < score; i++ {
		m.nextID++
		v := &models.Vote{ID: m.nextID, UserID: 1000 + m.nextID, Value: value}
		v.SetTarget(target)
		m.votes[v.ID] = v
	}
}

func (m *memStore) rows(userID uint, target models.VoteTarget) []*models.Vote {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Vote
	for _, v := range m.votes {
		if v.UserID == userID && v.Target() == target {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memStore) storedSum(target models.VoteTarget) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, v := range m.votes {
		if v.Target() == target {
			sum += v.Value
		}
	}
	return sum
}

func (m *memStore) UserExists(_ context.Context, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *memStore) QuestionExists(_ context.Context, questionID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questions[questionID], nil
}

func (m *memStore) TargetExists(ctx context.Context, target models.VoteTarget) (bool, error) {
	if target.Kind == models.TargetAnswer {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, ok := m.answers[target.ID]
		return ok, nil
	}
	return m.QuestionExists(ctx, target.ID)
}

func (m *memStore) FindVote(_ context.Context, userID uint, target models.VoteTarget) (*models.Vote, error) {
	m.mu.Lock()
	gate := m.findGate
	if gate != nil && m.findGateN > 0 {
		m.findGateN--
		m.mu.Unlock()
		gate.Done()
		gate.Wait()
		m.mu.Lock()
	}
	var found *models.Vote
	for _, v := range m.votes {
		if v.UserID == userID && v.Target() == target {
			cp := *v
			found = &cp
			break
		}
	}

	gate = m.readGate
	if gate != nil && m.readGateN > 0 {
		m.readGateN--
		m.mu.Unlock()
		gate.Done()
		gate.Wait()
	} else {
		m.mu.Unlock()
	}

	if found == nil {
		return nil, ErrVoteNotFound
	}
	return found, nil
}

func (m *memStore) InsertVote(_ context.Context, vote *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	target := vote.Target()
	for _, v := range m.votes {
		if v.UserID == vote.UserID && v.Target() == target {
			return ErrDuplicateVote
		}
	}
	m.nextID++
	vote.ID = m.nextID
	cp := *vote
	m.votes[cp.ID] = &cp
	return nil
}

func (m *memStore) DeleteVote(_ context.Context, voteID uint, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteID]
	if !ok || v.Value != value {
		return ErrStaleVote
	}
	delete(m.votes, voteID)
	return nil
}

func (m *memStore) UpdateVoteValue(_ context.Context, voteID uint, from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteID]
	if !ok || v.Value != from {
		return ErrStaleVote
	}
	v.Value = to
	return nil
}

func (m *memStore) AnswerQuestionID(_ context.Context, answerID uint) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[answerID]
	if !ok {
		return 0, ErrTargetNotFound
	}
	return a.questionID, nil
}

func (m *memStore) SumVotesMany(_ context.Context, kind models.TargetKind, ids []uint) (map[uint]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[uint]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	out := map[uint]int{}
	for _, v := range m.votes {
		t := v.Target()
		if t.Kind == kind && wanted[t.ID] {
			out[t.ID] += v.Value
		}
	}
	return out, nil
}

func (m *memStore) SumVotes(_ context.Context, target models.VoteTarget) (int, error) {
	return m.storedSum(target), nil
}

func (m *memStore) UserVotes(_ context.Context, userID uint, targets []models.VoteTarget) (map[models.VoteTarget]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[models.VoteTarget]bool{}
	for _, t := range targets {
		wanted[t] = true
	}
	out := map[models.VoteTarget]int{}
	for _, v := range m.votes {
		if v.UserID == userID && wanted[v.Target()] {
			out[v.Target()] = v.Value
		}
	}
	return out, nil
}

func (m *memStore) AnswerStandings(_ context.Context, questionID uint) ([]AnswerStanding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AnswerStanding
	for id, a := range m.answers {
		if a.questionID != questionID {
			continue
		}
		score := 0
		for _, v := range m.votes {
			if v.AnswerID != nil && *v.AnswerID == id {
				score += v.Value
			}
		}
		out = append(out, AnswerStanding{AnswerID: id, CreatedAt: a.createdAt, Score: score, Flagged: a.accepted})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].AnswerID < out[j].AnswerID
	})
	return out, nil
}
