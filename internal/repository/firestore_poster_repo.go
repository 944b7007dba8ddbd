package repository

import (
	"context"
	"fmt"
	"time"

	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/datatypes"
)

// posterDoc Firestore 文档结构。赛事快照按原始 JSON 字符串保存，读回时字节不变
type posterDoc struct {
	OwnerID           string    `firestore:"ownerId"`
	Mode              string    `firestore:"mode"`
	Style             string    `firestore:"style"`
	MatchDate         string    `firestore:"matchDate"`
	FixtureSnapshot   string    `firestore:"fixtureSnapshot"`
	BackgroundURL     string    `firestore:"backgroundUrl,omitempty"`
	BackgroundBlobKey string    `firestore:"backgroundBlobKey,omitempty"`
	PosterBlobKey     string    `firestore:"posterBlobKey,omitempty"`
	PosterMimeType    string    `firestore:"posterMimeType,omitempty"`
	FileName          string    `firestore:"fileName,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt"`
}

func toDoc(rec *model.PosterRecord) posterDoc {
	return posterDoc{
		OwnerID:           rec.OwnerID,
		Mode:              string(rec.Mode),
		Style:             string(rec.Style),
		MatchDate:         rec.MatchDate,
		FixtureSnapshot:   string(rec.FixtureSnapshot),
		BackgroundURL:     rec.BackgroundURL,
		BackgroundBlobKey: rec.BackgroundBlobKey,
		PosterBlobKey:     rec.PosterBlobKey,
		PosterMimeType:    rec.PosterMimeType,
		FileName:          rec.FileName,
		CreatedAt:         rec.CreatedAt,
	}
}

func fromDoc(id string, d posterDoc) *model.PosterRecord {
	return &model.PosterRecord{
		ID:                id,
		OwnerID:           d.OwnerID,
		Mode:              model.PosterMode(d.Mode),
		Style:             model.RenderStyle(d.Style),
		MatchDate:         d.MatchDate,
		FixtureSnapshot:   datatypes.JSON(d.FixtureSnapshot),
		BackgroundURL:     d.BackgroundURL,
		BackgroundBlobKey: d.BackgroundBlobKey,
		PosterBlobKey:     d.PosterBlobKey,
		PosterMimeType:    d.PosterMimeType,
		FileName:          d.FileName,
		CreatedAt:         d.CreatedAt,
	}
}

// FirestorePosterRepository Firestore 元数据存储
type FirestorePosterRepository struct {
	client     *firestore.Client
	collection string
	logger     *logrus.Logger
}

func NewFirestorePosterRepository(client *firestore.Client, collection string, logger *logrus.Logger) interfaces.PosterRepository {
	return &FirestorePosterRepository{client: client, collection: collection, logger: logger}
}

func (r *FirestorePosterRepository) col() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func (r *FirestorePosterRepository) Create(ctx context.Context, rec *model.PosterRecord) error {
	if _, err := r.col().Doc(rec.ID).Create(ctx, toDoc(rec)); err != nil {
		return fmt.Errorf("保存海报记录失败: %w, id: %s", mapFirestoreError(err), rec.ID)
	}
	return nil
}

func (r *FirestorePosterRepository) GetByID(ctx context.Context, id string) (*model.PosterRecord, error) {
	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询海报记录 %s: %w", id, mapFirestoreError(err))
	}
	var d posterDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("解析海报记录失败: %w", err)
	}
	return fromDoc(snap.Ref.ID, d), nil
}

// ListActiveByOwner 需要 (ownerId, matchDate, createdAt) 复合索引，缺失时返回 model.ErrQueryUnsupported
func (r *FirestorePosterRepository) ListActiveByOwner(ctx context.Context, ownerID, since string) ([]*model.PosterRecord, error) {
	q := r.col().
		Where("ownerId", "==", ownerID).
		Where("matchDate", ">=", since).
		OrderBy("createdAt", firestore.Desc)
	return r.collect(ctx, q)
}

func (r *FirestorePosterRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.PosterRecord, error) {
	return r.collect(ctx, r.col().Where("ownerId", "==", ownerID))
}

func (r *FirestorePosterRepository) ListExpired(ctx context.Context, before string, limit int) ([]*model.PosterRecord, error) {
	return r.collect(ctx, r.col().Where("matchDate", "<", before).Limit(limit))
}

func (r *FirestorePosterRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return fmt.Errorf("删除海报记录 %s: %w", id, mapFirestoreError(err))
	}
	return nil
}

func (r *FirestorePosterRepository) collect(ctx context.Context, q firestore.Query) ([]*model.PosterRecord, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var list []*model.PosterRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapFirestoreError(err)
		}
		var d posterDoc
		if err := snap.DataTo(&d); err != nil {
			r.logger.WithError(err).WithField("id", snap.Ref.ID).Warn("跳过无法解析的海报记录")
			continue
		}
		list = append(list, fromDoc(snap.Ref.ID, d))
	}
	return list, nil
}

// mapFirestoreError 把 gRPC 状态码映射到领域错误
func mapFirestoreError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", model.ErrPosterNotFound, err)
	case codes.FailedPrecondition:
		// 通常是缺少复合索引
		return fmt.Errorf("%w: %v", model.ErrQueryUnsupported, err)
	}
	return err
}
