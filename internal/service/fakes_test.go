package service

import (
	"context"
	"io"
	"sync"

	"MatchPoster/internal/auth"
	"MatchPoster/internal/model"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ownerCtx(owner string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{OwnerID: owner, Token: "tok-" + owner})
}

// memRepo 内存版 PosterRepository；unsupported 时模拟缺少复合索引，failCreate 非空时 Create 返回其错误
type memRepo struct {
	mu          sync.Mutex
	records     map[string]*model.PosterRecord
	order       []string
	unsupported bool
	deletes     int
	failCreate  func() error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*model.PosterRecord)}
}

func clone(rec *model.PosterRecord) *model.PosterRecord {
	c := *rec
	c.FixtureSnapshot = append([]byte(nil), rec.FixtureSnapshot...)
	c.Background, c.Poster = model.ImageRef{}, model.ImageRef{}
	return &c
}

func (r *memRepo) Create(_ context.Context, rec *model.PosterRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate()
	}
	r.records[rec.ID] = clone(rec)
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*model.PosterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, model.ErrPosterNotFound
	}
	return clone(rec), nil
}

func (r *memRepo) ListActiveByOwner(_ context.Context, owner, since string) ([]*model.PosterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsupported {
		return nil, model.ErrQueryUnsupported
	}
	var out []*model.PosterRecord
	for i := len(r.order) - 1; i >= 0; i-- {
		rec, ok := r.records[r.order[i]]
		if ok && rec.OwnerID == owner && rec.MatchDate >= since {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

// ListByOwner 按插入顺序返回，检验调用方自己排序
func (r *memRepo) ListByOwner(_ context.Context, owner string) ([]*model.PosterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PosterRecord
	for _, id := range r.order {
		if rec, ok := r.records[id]; ok && rec.OwnerID == owner {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (r *memRepo) ListExpired(_ context.Context, before string, limit int) ([]*model.PosterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PosterRecord
	for _, id := range r.order {
		if rec, ok := r.records[id]; ok && rec.MatchDate < before {
			out = append(out, clone(rec))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if _, ok := r.records[id]; !ok {
		return model.ErrPosterNotFound
	}
	delete(r.records, id)
	return nil
}

// memBlobs 内存版 BlobStore，记录每次 Delete 调用
type memBlobs struct {
	mu        sync.Mutex
	data      map[string][]byte
	deleted   []string
	deleteErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[key]
	if !ok {
		return nil, "", model.ErrBlobNotFound
	}
	return d, "image/jpeg", nil
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.data[key]; !ok {
		return model.ErrBlobNotFound
	}
	delete(b.data, key)
	return nil
}

func (b *memBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[key]
	return ok
}
