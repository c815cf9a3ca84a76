package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/studyhub/internal/model"
	appErr "github.com/xxxsen/studyhub/internal/pkg/errors"
	"github.com/xxxsen/studyhub/internal/pkg/jwt"
)

type memUserStore struct {
	mu    sync.Mutex
	users     map[string]*model.User
	block     bool
	createErr error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*model.User)}
}

func (m *memUserStore) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return appErr.ErrConflict
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memUserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.Mtime = mtime
	return nil
}

func (m *memUserStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type memProfileStore struct {
	mu       sync.Mutex
	profiles []*model.Profile
}

func (m *memProfileStore) Create(ctx context.Context, profile *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *profile
	m.profiles = append(m.profiles, &cp)
	return nil
}

func (m *memProfileStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

type memOTPStore struct {
	mu      sync.Mutex
	records []*model.OTP
}

func (m *memOTPStore) Create(ctx context.Context, otp *model.OTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *otp
	m.records = append(m.records, &cp)
	return nil
}

func (m *memOTPStore) DeleteByEmail(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if r.Email != email {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *memOTPStore) LatestByEmail(ctx context.Context, email string) (*model.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*model.OTP
	for _, r := range m.records {
		if r.Email == email {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, appErr.ErrNotFound
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Ctime > matched[j].Ctime })
	cp := *matched[0]
	return &cp, nil
}

func (m *memOTPStore) Consume(ctx context.Context, id, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id && r.CodeHash == codeHash {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (m *memOTPStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type failingIssuer struct {
	err error
}

func (f failingIssuer) Issue(jwt.Subject) (string, error) {
	return "", f.err
}

// flakyHasher fails the first failures Hash calls, then delegates. It
// records every digest handed to Verify.
type flakyHasher struct {
	PasswordHasher
	mu       sync.Mutex
	failures int
	verified []string
}

func (f *flakyHasher) Hash(ctx context.Context, plain string) (string, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return "", context.Canceled
	}
	f.mu.Unlock()
	return f.PasswordHasher.Hash(ctx, plain)
}

func (f *flakyHasher) Verify(ctx context.Context, plain, digest string) (bool, error) {
	f.mu.Lock()
	f.verified = append(f.verified, digest)
	f.mu.Unlock()
	return f.PasswordHasher.Verify(ctx, plain, digest)
}
