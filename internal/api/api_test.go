package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"MatchPoster/internal/adapter/proxy"
	"MatchPoster/internal/auth"
	"MatchPoster/internal/compose"
	"MatchPoster/internal/config"
	"MatchPoster/internal/generator"
	"MatchPoster/internal/model"
	"MatchPoster/internal/service"
	"MatchPoster/internal/storage"
	"MatchPoster/internal/utils/clock"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type memRepo struct {
	mu      sync.Mutex
	records map[string]*model.PosterRecord
}

func (r *memRepo) Create(_ context.Context, rec *model.PosterRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *rec
	r.records[rec.ID] = &c
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*model.PosterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, model.ErrPosterNotFound
	}
	c := *rec
	return &c, nil
}

func (r *memRepo) ListActiveByOwner(ctx context.Context, owner, since string) ([]*model.PosterRecord, error) {
	all, _ := r.ListByOwner(ctx, owner)
	var out []*model.PosterRecord
	for _, rec := range all {
		if rec.MatchDate >= since {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRepo) ListByOwner(_ context.Context, owner string) ([]*model.PosterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PosterRecord
	for _, rec := range r.records {
		if rec.OwnerID == owner {
			c := *rec
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memRepo) ListExpired(context.Context, string, int) ([]*model.PosterRecord, error) {
	return nil, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return model.ErrPosterNotFound
	}
	delete(r.records, id)
	return nil
}

// stubGenerator failOn>0 时从第 failOn 次调用起才返回 err
type stubGenerator struct {
	err    error
	failOn int
	calls  int
	last   generator.Request
}

func (g *stubGenerator) Generate(_ context.Context, req generator.Request, _ model.RenderStyle) (*model.GeneratedImage, error) {
	g.calls++
	g.last = req
	if g.err != nil && g.calls >= g.failOn {
		return nil, g.err
	}
	return &model.GeneratedImage{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}, nil
}

type noLoader struct{}

func (noLoader) Load(context.Context, model.ImageRef) (image.Image, error) {
	return nil, model.ErrAssetUnavailable
}

func newTestRouter(t *testing.T, gen *stubGenerator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := quietLogger()

	blobs, err := storage.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2025, 12, 6, 8, 0, 0, 0, time.UTC))
	gallery := service.NewGalleryService(&memRepo{records: map[string]*model.PosterRecord{}}, blobs, clk, logger)

	cfg := config.ComposerConfig{Width: 108, Height: 192, PreviewWidth: 54, OverlayAlpha: 0.4, FallbackColor: "#000", JPEGQuality: 90, BrandName: "All Sports"}
	engine, err := compose.NewEngine(noLoader{}, cfg, logger)
	require.NoError(t, err)
	posters := service.NewPosterService(engine, gallery, gen, service.NewPlanner(2, 5), cfg, logger)

	verifier, err := auth.NewJWTVerifier(testSecret, logger)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/health", Health)
	authed := r.Group("/api", auth.Middleware(verifier, logger))
	RegisterRoutes(authed, NewGeneratorHandler(gen, logger), NewPosterHandler(posters, gallery, logger))
	return r
}

func do(t *testing.T, r http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		token, err := auth.SignToken(testSecret, owner, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) proxy.Result {
	t.Helper()
	var out proxy.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndAuth(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/health", "", nil).Code)

	w := do(t, r, http.MethodGet, "/api/posters", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode(t, w).Code)
}

func TestGenerateMatchBackground(t *testing.T) {
	gen := &stubGenerator{}
	r := newTestRouter(t, gen)

	w := do(t, r, http.MethodPost, "/api/gemini/generate-match-background", "alice", proxy.MatchBody{HomeTeam: "PSG"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/gemini/generate-match-background", "alice", proxy.MatchBody{HomeTeam: "PSG", AwayTeam: "OM", Style: "neon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/gemini/generate-match-background", "alice", proxy.MatchBody{HomeTeam: "PSG", AwayTeam: "OM", Venue: "Parc des Princes"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode(t, w)
	assert.True(t, res.Success)
	assert.Equal(t, model.DataURL([]byte{0x89, 'P', 'N', 'G'}, "image/png"), res.Image)
	assert.Equal(t, "Parc des Princes", gen.last.Venue)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	gen := &stubGenerator{err: &model.UpstreamError{Kind: model.ErrRateLimited, StatusCode: 429, RetryAfter: 2500 * time.Millisecond}}
	r := newTestRouter(t, gen)

	w := do(t, r, http.MethodPost, "/api/gemini/generate-match-background", "alice", proxy.MatchBody{HomeTeam: "PSG", AwayTeam: "OM"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
	res := decode(t, w)
	assert.Equal(t, proxy.CodeRateLimited, res.Code)
	assert.Equal(t, 3, res.RetryAfterSeconds)

	gen.err = &model.UpstreamError{Kind: model.ErrContentRejected, Message: "SAFETY"}
	w = do(t, r, http.MethodPost, "/api/gemini/generate-match-background", "alice", proxy.MatchBody{HomeTeam: "PSG", AwayTeam: "OM"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	res = decode(t, w)
	assert.Equal(t, proxy.CodeContentRejected, res.Code)
	assert.Contains(t, res.Error, "try a different style")
}

func TestGenerateProgramBackground(t *testing.T) {
	gen := &stubGenerator{}
	r := newTestRouter(t, gen)

	w := do(t, r, http.MethodPost, "/api/gemini/generate-program-background", "alice", map[string]any{"matchCount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/gemini/generate-program-background", "alice", proxy.ProgramBody{MatchCount: 3})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, gen.last.MatchCount)
}

func TestPosterLifecycle(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	body := map[string]any{
		"style": "stadium",
		"fixtures": []model.Fixture{{
			ID: "1", Date: "2025-12-06", Time: "21:00",
			HomeTeam: model.Team{Name: "PSG"}, AwayTeam: model.Team{Name: "Marseille"},
		}},
	}

	w := do(t, r, http.MethodPost, "/api/posters", "alice", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Posters []struct {
			ID       string          `json:"id"`
			FileName string          `json:"fileName"`
			ImageURL string          `json:"imageUrl"`
			Fixtures json.RawMessage `json:"fixtures"`
		} `json:"posters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.Posters, 1)
	id := created.Posters[0].ID
	assert.Equal(t, "All Sports - PSG vs Marseille.jpg", created.Posters[0].FileName)
	assert.Equal(t, "/api/posters/"+id+"/image", created.Posters[0].ImageURL)

	w = do(t, r, http.MethodGet, "/api/posters", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = do(t, r, http.MethodGet, "/api/posters/"+id+"/image", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	_, format, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	w = do(t, r, http.MethodDelete, "/api/posters/"+id, "mallory", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodDelete, "/api/posters/"+id, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodDelete, "/api/posters/"+id, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreate_PartialFailureReturnsSavedPosters(t *testing.T) {
	gen := &stubGenerator{err: &model.UpstreamError{Kind: model.ErrContentRejected, Message: "SAFETY"}, failOn: 2}
	r := newTestRouter(t, gen)
	body := map[string]any{
		"mode":     "classic",
		"generate": true,
		"fixtures": []model.Fixture{
			{ID: "1", Date: "2025-12-06", Time: "19:00", HomeTeam: model.Team{Name: "PSG"}, AwayTeam: model.Team{Name: "Marseille"}},
			{ID: "2", Date: "2025-12-07", Time: "21:00", HomeTeam: model.Team{Name: "Lyon"}, AwayTeam: model.Team{Name: "Monaco"}},
		},
	}

	w := do(t, r, http.MethodPost, "/api/posters", "alice", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	var out struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Posters []struct {
			ID       string `json:"id"`
			FileName string `json:"fileName"`
		} `json:"posters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.False(t, out.Success)
	assert.Equal(t, proxy.CodeContentRejected, out.Code)
	require.Len(t, out.Posters, 1)
	assert.Equal(t, "All Sports - PSG vs Marseille.jpg", out.Posters[0].FileName)

	w = do(t, r, http.MethodGet, "/api/posters/"+out.Posters[0].ID, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPoster_RejectsBlobReferences(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	body := map[string]any{
		"background": "blob:posters/bob/r1/background.png",
		"fixtures": []model.Fixture{{
			ID: "1", Date: "2025-12-06", HomeTeam: model.Team{Name: "PSG"}, AwayTeam: model.Team{Name: "Marseille"},
		}},
	}
	w := do(t, r, http.MethodPost, "/api/posters", "alice", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview_Image(t *testing.T) {
	r := newTestRouter(t, &stubGenerator{})
	body := map[string]any{
		"fixtures": []model.Fixture{
			{ID: "1", Date: "2025-12-06", Time: "19:00", HomeTeam: model.Team{Name: "PSG"}, AwayTeam: model.Team{Name: "Marseille"}},
			{ID: "2", Date: "2025-12-06", Time: "21:00", HomeTeam: model.Team{Name: "Lyon"}, AwayTeam: model.Team{Name: "Monaco"}},
		},
	}
	w := do(t, r, http.MethodPost, "/api/posters/preview?format=image", "alice", body)
	require.Equal(t, http.StatusOK, w.Code)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 54, cfg.Width)

	w = do(t, r, http.MethodPost, "/api/posters/preview", "alice", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "06/12/2025")
}
