// Package memory is an in-process storage backend implementing the
// repository interfaces. It backs the service in dev mode and the tests.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
)

type Store struct {
	mu sync.Mutex

	posts     map[string]*models.ScheduledPost
	accounts  map[string]*models.SocialAccount
	groups    map[string]*models.AccountGroup
	pools     map[string]*models.IpPool
	sessions  map[string]*models.IpPoolSession
	logs      []*models.IpRotationLog
	assets    map[string]*models.MediaAsset
	content   map[string]*models.ContentItem
	workers   map[string]*models.Worker
	campaigns map[string]*models.CampaignExecution

	usageErr error
}

func NewStore() *Store {
	return &Store{
		posts:     make(map[string]*models.ScheduledPost),
		accounts:  make(map[string]*models.SocialAccount),
		groups:    make(map[string]*models.AccountGroup),
		pools:     make(map[string]*models.IpPool),
		sessions:  make(map[string]*models.IpPoolSession),
		assets:    make(map[string]*models.MediaAsset),
		content:   make(map[string]*models.ContentItem),
		workers:   make(map[string]*models.Worker),
		campaigns: make(map[string]*models.CampaignExecution),
	}
}

func (s *Store) Posts() repository.ScheduledPostRepository { return postRepo{s} }
func (s *Store) Accounts() repository.SocialAccountRepository { return accountRepo{s} }
func (s *Store) Groups() repository.AccountGroupRepository { return groupRepo{s} }
func (s *Store) Pools() repository.IpPoolRepository { return poolRepo{s} }
func (s *Store) Sessions() repository.IpSessionRepository { return sessionRepo{s} }
func (s *Store) RotationLogs() repository.RotationLogRepository { return logRepo{s} }
func (s *Store) Assets() repository.MediaAssetRepository { return assetRepo{s} }
func (s *Store) Content() repository.ContentRepository { return contentRepo{s} }
func (s *Store) Workers() repository.WorkerRepository { return workerRepo{s} }
func (s *Store) Campaigns() repository.CampaignRepository { return campaignRepo{s} }

// FailUsageQueries makes every WindowUsage call return err until reset with nil.
func (s *Store) FailUsageQueries(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usageErr = err
}

func (s *Store) AddAccount(a *models.SocialAccount) *models.SocialAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return a
}

func (s *Store) AddGroup(g *models.AccountGroup) *models.AccountGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	cp := *g
	s.groups[g.ID] = &cp
	return g
}

func (s *Store) AddPool(p *models.IpPool) *models.IpPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	s.pools[p.ID] = &cp
	return p
}

func (s *Store) AddSession(sess *models.IpPoolSession) *models.IpPoolSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return sess
}

func (s *Store) AddAsset(a *models.MediaAsset) *models.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	s.assets[a.ID] = &cp
	return a
}

func (s *Store) AddContent(c *models.ContentItem) *models.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	s.content[c.ID] = &cp
	return c
}

func (s *Store) AddWorker(w *models.Worker) *models.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	cp := *w
	s.workers[w.WorkerID] = &cp
	return w
}

// AddPost stores p as given, without defaults.
func (s *Store) AddPost(p *models.ScheduledPost) *models.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.posts[p.ID] = clonePost(p)
	return p
}

func (s *Store) Post(id string) *models.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		return clonePost(p)
	}
	return nil
}

func (s *Store) AllPosts() []*models.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ScheduledPost, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

func (s *Store) Pool(id string) *models.IpPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pools[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (s *Store) Session(id string) *models.IpPoolSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		cp := *sess
		return &cp
	}
	return nil
}

func (s *Store) Account(id string) *models.SocialAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (s *Store) Asset(id string) *models.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assets[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (s *Store) ContentItem(id string) *models.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.content[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

func (s *Store) Worker(workerID string) *models.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[workerID]; ok {
		cp := *w
		return &cp
	}
	return nil
}

func (s *Store) Logs() []*models.IpRotationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.IpRotationLog, len(s.logs))
	for i, l := range s.logs {
		cp := *l
		out[i] = &cp
	}
	return out
}

func clonePost(p *models.ScheduledPost) *models.ScheduledPost {
	cp := *p
	cp.Hashtags = append([]string(nil), p.Hashtags...)
	cp.AssetIDs = append([]string(nil), p.AssetIDs...)
	if p.Analytics != nil {
		cp.Analytics = p.Analytics.Clone()
	}
	return &cp
}

var errNotFound = errors.New("not found")

// posts

type postRepo struct{ s *Store }

func (r postRepo) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.insertPost(post)
	return post.ID, nil
}

func (s *Store) insertPost(post *models.ScheduledPost) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Status == "" {
		post.Status = models.PostStatusScheduled
	}
	if post.Priority == 0 {
		post.Priority = models.DefaultPostPriority
	}
	if post.Timezone == "" {
		post.Timezone = "UTC"
	}
	now := time.Now()
	post.CreatedAt, post.UpdatedAt = now, now
	s.posts[post.ID] = clonePost(post)
}

func (r postRepo) CreateBatch(ctx context.Context, posts []*models.ScheduledPost) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		r.s.insertPost(p)
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (r postRepo) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	return r.s.Post(id), nil
}

func (r postRepo) ListDue(ctx context.Context, now time.Time, maxRetries int) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.Status == models.PostStatusScheduled && !p.ScheduledTime.After(now) && p.RetryCount < maxRetries
	}, 0), nil
}

func (r postRepo) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.Status == models.PostStatusScheduled && !p.ScheduledTime.Before(now)
	}, limit), nil
}

func (r postRepo) filter(keep func(*models.ScheduledPost) bool, limit int) []*models.ScheduledPost {
	var out []*models.ScheduledPost
	for _, p := range r.s.AllPosts() {
		if keep(p) {
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r postRepo) Claim(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	p.Status = models.PostStatusPosting
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r postRepo) update(id string, fn func(p *models.ScheduledPost)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return fmt.Errorf("post %s: %w", id, errNotFound)
	}
	fn(p)
	p.UpdatedAt = time.Now()
	return nil
}

func (r postRepo) Release(ctx context.Context, id string, at time.Time, reason string) error {
	return r.update(id, func(p *models.ScheduledPost) {
		if p.Status != models.PostStatusPosting {
			return
		}
		p.Status = models.PostStatusScheduled
		p.ScheduledTime = at
		p.ErrorMessage = reason
	})
}

func (r postRepo) MarkPosted(ctx context.Context, id string, res models.PublishResult) error {
	return r.update(id, func(p *models.ScheduledPost) {
		p.Status = models.PostStatusPosted
		p.PlatformPostID = res.PlatformPostID
		p.PlatformURL = res.PlatformURL
		p.IPSnapshot = res.IPSnapshot
		published := res.PublishedAt
		p.PublishedAt = &published
		p.ErrorMessage = ""
	})
}

func (r postRepo) RecordFailure(ctx context.Context, id string, f models.PostFailure) error {
	return r.update(id, func(p *models.ScheduledPost) {
		p.Status = f.Status
		p.RetryCount = f.RetryCount
		p.ErrorMessage = f.ErrorMessage
		p.ScheduledTime = f.ScheduledTime
		last := f.LastRetryAt
		p.LastRetryAt = &last
	})
}

func (r postRepo) SetIPPool(ctx context.Context, id, poolID string) error {
	return r.update(id, func(p *models.ScheduledPost) { p.IPPoolID = poolID })
}

func (r postRepo) Retag(ctx context.Context, id string, at time.Time, analytics models.Analytics) error {
	return r.update(id, func(p *models.ScheduledPost) {
		if p.Status != models.PostStatusScheduled {
			return
		}
		p.ScheduledTime = at
		p.Analytics = analytics.Clone()
	})
}

func (r postRepo) WindowUsage(ctx context.Context, q models.UsageQuery) (models.WindowUsage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.usageErr != nil {
		return models.WindowUsage{}, r.s.usageErr
	}

	var usage models.WindowUsage
	for _, p := range r.s.posts {
		if p.Status == models.PostStatusFailed || p.ID == q.ExcludePostID {
			continue
		}
		if p.ScheduledTime.Before(q.Start) || p.ScheduledTime.After(q.End) {
			continue
		}
		if !r.s.matchesScope(p, q.Scope, q.ScopeID) {
			continue
		}
		usage.Count++
		if usage.Oldest == nil || p.ScheduledTime.Before(*usage.Oldest) {
			t := p.ScheduledTime
			usage.Oldest = &t
		}
	}
	return usage, nil
}

func (s *Store) matchesScope(p *models.ScheduledPost, scope, scopeID string) bool {
	switch scope {
	case models.ScopeAccount:
		return p.SocialAccountID == scopeID
	case models.ScopeGroup:
		a, ok := s.accounts[p.SocialAccountID]
		return ok && a.GroupID == scopeID
	case models.ScopeApp:
		a, ok := s.accounts[p.SocialAccountID]
		return ok && a.FacebookAppID == scopeID
	}
	return false
}

func (r postRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	return len(r.filter(func(p *models.ScheduledPost) bool { return p.Status == status }, 0)), nil
}

func (r postRepo) CountPublishedSince(ctx context.Context, since time.Time) (int, error) {
	return len(r.filter(func(p *models.ScheduledPost) bool {
		return p.Status == models.PostStatusPosted && p.PublishedAt != nil && !p.PublishedAt.Before(since)
	}, 0)), nil
}

// accounts

type accountRepo struct{ s *Store }

func (r accountRepo) GetByID(ctx context.Context, id string) (*models.SocialAccount, error) {
	return r.s.Account(id), nil
}

func (r accountRepo) ListByIDs(ctx context.Context, ids []string) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, id := range ids {
		if a := r.s.Account(id); a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r accountRepo) ListByPlatform(ctx context.Context, platform string) ([]*models.SocialAccount, error) {
	all, _ := r.ListAll(ctx)
	var out []*models.SocialAccount
	for _, a := range all {
		if a.Platform == platform {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r accountRepo) ListAll(ctx context.Context) ([]*models.SocialAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.SocialAccount, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r accountRepo) TouchLastPost(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		t := at
		a.LastPost = &t
	}
	return nil
}

// groups

type groupRepo struct{ s *Store }

func (r groupRepo) GetByID(ctx context.Context, id string) (*models.AccountGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g, ok := r.s.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (r groupRepo) List(ctx context.Context) ([]*models.AccountGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AccountGroup
	for _, g := range r.s.groups {
		if g.IsActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// pools

type poolRepo struct{ s *Store }

func (r poolRepo) GetByID(ctx context.Context, id string) (*models.IpPool, error) {
	return r.s.Pool(id), nil
}

func (r poolRepo) List(ctx context.Context) ([]*models.IpPool, error) {
	return r.list(func(*models.IpPool) bool { return true }), nil
}

func (r poolRepo) ListActive(ctx context.Context) ([]*models.IpPool, error) {
	return r.list(func(p *models.IpPool) bool {
		return p.IsEnabled && p.Status == models.PoolStatusActive
	}), nil
}

func (r poolRepo) list(keep func(*models.IpPool) bool) []*models.IpPool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.IpPool
	for _, p := range r.s.pools {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r poolRepo) UpdateRotation(ctx context.Context, id, newIP string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pools[id]
	if !ok {
		return fmt.Errorf("pool %s: %w", id, errNotFound)
	}
	p.CurrentIP = newIP
	t := at
	p.LastRotatedAt = &t
	p.TotalRotations++
	return nil
}

// sessions

type sessionRepo struct{ s *Store }

func (r sessionRepo) GetByID(ctx context.Context, id string) (*models.IpPoolSession, error) {
	return r.s.Session(id), nil
}

func (r sessionRepo) GetActive(ctx context.Context, poolID string) (*models.IpPoolSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess := r.s.activeSession(poolID); sess != nil {
		cp := *sess
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) activeSession(poolID string) *models.IpPoolSession {
	for _, sess := range s.sessions {
		if sess.IPPoolID == poolID && sess.SessionEnd == nil {
			return sess
		}
	}
	return nil
}

func (r sessionRepo) ListByPool(ctx context.Context, poolID string) ([]*models.IpPoolSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.IpPoolSession
	for _, sess := range r.s.sessions {
		if sess.IPPoolID == poolID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionStart.After(out[j].SessionStart) })
	return out, nil
}

func (r sessionRepo) OpenSession(ctx context.Context, poolID, ip, batchID string) (*models.IpPoolSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess := r.s.activeSession(poolID); sess != nil {
		cp := *sess
		return &cp, nil
	}
	sess := &models.IpPoolSession{
		ID:           uuid.NewString(),
		IPPoolID:     poolID,
		IPAddress:    ip,
		SessionStart: time.Now(),
		BatchID:      batchID,
	}
	r.s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

func (r sessionRepo) SaveStats(ctx context.Context, sess *models.IpPoolSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.sessions[sess.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", sess.ID, errNotFound)
	}
	stored.PostsCount = sess.PostsCount
	stored.FailCount = sess.FailCount
	stored.AveragePostDuration = sess.AveragePostDuration
	return nil
}

func (r sessionRepo) Close(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok && sess.SessionEnd == nil {
		t := at
		sess.SessionEnd = &t
	}
	return nil
}

func (r sessionRepo) CloseActive(ctx context.Context, poolID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess := r.s.activeSession(poolID); sess != nil {
		t := at
		sess.SessionEnd = &t
	}
	return nil
}

// rotation logs

type logRepo struct{ s *Store }

func (r logRepo) Create(ctx context.Context, l *models.IpRotationLog) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	cp := *l
	r.s.logs = append(r.s.logs, &cp)
	return l.ID, nil
}

func (r logRepo) ListByPool(ctx context.Context, poolID string, limit int) ([]*models.IpRotationLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.IpRotationLog
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		if r.s.logs[i].IPPoolID == poolID {
			cp := *r.s.logs[i]
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// assets

type assetRepo struct{ s *Store }

func (r assetRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.MediaAsset, error) {
	var out []*models.MediaAsset
	for _, id := range ids {
		if a := r.s.Asset(id); a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r assetRepo) IncrementUsage(ctx context.Context, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		if a, ok := r.s.assets[id]; ok {
			a.UsageCount++
		}
	}
	return nil
}

// content

type contentRepo struct{ s *Store }

func (r contentRepo) List(ctx context.Context, f models.ContentFilter) ([]*models.ContentItem, error) {
	r.s.mu.Lock()
	var out []*models.ContentItem
	for _, c := range r.s.content {
		if matchesContent(c, f) {
			cp := *c
			out = append(out, &cp)
		}
	}
	r.s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := models.PriorityRank(out[i].Priority), models.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri > rj
		}
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount < out[j].UsageCount
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesContent(c *models.ContentItem, f models.ContentFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.ContentType != "" && c.ContentType != f.ContentType {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.Platform != "" && !c.SupportsPlatform(f.Platform) {
		return false
	}
	if f.UnusedSince != nil && c.LastUsed != nil && !c.LastUsed.Before(*f.UnusedSince) {
		return false
	}
	if len(f.IDs) > 0 && !contains(f.IDs, c.ID) {
		return false
	}
	if len(f.TagIDs) > 0 {
		overlap := false
		for _, t := range f.TagIDs {
			if contains(c.TagIDs, t) {
				overlap = true
				break
			}
		}
		if !overlap {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (r contentRepo) GetByID(ctx context.Context, id string) (*models.ContentItem, error) {
	return r.s.ContentItem(id), nil
}

func (r contentRepo) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.content[id]; ok {
		c.UsageCount++
		t := at
		c.LastUsed = &t
	}
	return nil
}

// workers

type workerRepo struct{ s *Store }

func (r workerRepo) List(ctx context.Context) ([]*models.Worker, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Worker, 0, len(r.s.workers))
	for _, w := range r.s.workers {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

func (r workerRepo) TouchLastJob(ctx context.Context, workerID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.workers[workerID]; ok {
		t := at
		w.LastJobAt = &t
	}
	return nil
}

// campaigns

type campaignRepo struct{ s *Store }

func (r campaignRepo) Save(ctx context.Context, c *models.CampaignExecution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.campaigns[c.CampaignID] = c.Copy()
	return nil
}

func (r campaignRepo) List(ctx context.Context) ([]*models.CampaignExecution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.CampaignExecution, 0, len(r.s.campaigns))
	for _, c := range r.s.campaigns {
		out = append(out, c.Copy())
	}
	return out, nil
}
