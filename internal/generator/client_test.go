package generator

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"MatchPoster/internal/auth"
	"MatchPoster/internal/config"
	"MatchPoster/internal/model"
	"MatchPoster/internal/throttle"
	"MatchPoster/internal/utils/clock"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend 按顺序返回预设结果，并记录每次发送的时刻
type scriptedBackend struct {
	clk        clock.Clock
	results    []error
	dispatches []time.Time
	requests   []model.BackendRequest
}

func (b *scriptedBackend) GetType() model.ProviderType { return "fake" }

func (b *scriptedBackend) Generate(_ context.Context, req model.BackendRequest) (*model.GeneratedImage, error) {
	b.dispatches = append(b.dispatches, b.clk.Now())
	b.requests = append(b.requests, req)
	i := len(b.dispatches) - 1
	if i < len(b.results) && b.results[i] != nil {
		return nil, b.results[i]
	}
	return &model.GeneratedImage{Data: []byte("img"), MimeType: "image/png"}, nil
}

var t0 = time.Date(2025, 12, 6, 9, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(results ...error) (*Client, *scriptedBackend, *clock.Fake) {
	clk := clock.NewFake(t0)
	backend := &scriptedBackend{clk: clk, results: results}
	cfg := &config.GeneratorConfig{MaxRetries: 3, BackoffBase: 5 * time.Second, BackoffCap: 60 * time.Second}
	c := NewClient(backend, throttle.New(2*time.Second, clk), clk, cfg, testLogger())
	return c, backend, clk
}

func ownerCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{OwnerID: "owner-1", Token: "tok"})
}

func rateLimited(hint time.Duration) error {
	return &model.UpstreamError{Kind: model.ErrRateLimited, StatusCode: 429, RetryAfter: hint, Message: "quota"}
}

func TestGenerate_RetryHonoursHint(t *testing.T) {
	c, backend, clk := newTestClient(rateLimited(3 * time.Second))

	img, err := c.Generate(ownerCtx(), Request{TeamA: "PSG", TeamB: "Marseille"}, model.StyleStadium)
	require.NoError(t, err)
	require.NotNil(t, img)

	require.Len(t, backend.dispatches, 2)
	elapsed := clk.Now().Sub(t0)
	assert.GreaterOrEqual(t, elapsed, 3*time.Second)
	assert.LessOrEqual(t, elapsed, 3*time.Second+c.Backoff(1))
	assert.GreaterOrEqual(t, backend.dispatches[1].Sub(backend.dispatches[0]), 3*time.Second)
}

func TestGenerate_HintClampedToCap(t *testing.T) {
	c, backend, clk := newTestClient(rateLimited(time.Hour))

	_, err := c.Generate(ownerCtx(), Request{TeamA: "PSG", TeamB: "Marseille"}, model.StyleStadium)
	require.NoError(t, err)

	require.Len(t, backend.dispatches, 2)
	assert.Equal(t, []time.Duration{60 * time.Second}, positive(clk.Sleeps()))
}

func TestGenerate_BackoffWithoutHint(t *testing.T) {
	c, backend, clk := newTestClient(rateLimited(0), rateLimited(0))

	_, err := c.Generate(ownerCtx(), Request{TeamA: "Lyon", TeamB: "Monaco"}, model.StyleAbstract)
	require.NoError(t, err)

	require.Len(t, backend.dispatches, 3)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, positive(clk.Sleeps()))
}

func TestGenerate_RetriesExhausted(t *testing.T) {
	c, backend, _ := newTestClient(rateLimited(time.Second), rateLimited(time.Second), rateLimited(time.Second), rateLimited(time.Second))

	_, err := c.Generate(ownerCtx(), Request{TeamA: "A", TeamB: "B"}, model.StyleStadium)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRateLimited)
	assert.Len(t, backend.dispatches, 4)
}

func TestGenerate_ContentRejectedNotRetried(t *testing.T) {
	rejected := &model.UpstreamError{Kind: model.ErrContentRejected, Message: "SAFETY"}
	c, backend, _ := newTestClient(rejected)

	_, err := c.Generate(ownerCtx(), Request{TeamA: "A", TeamB: "B"}, model.StylePlayers)
	assert.ErrorIs(t, err, model.ErrContentRejected)
	assert.Len(t, backend.dispatches, 1)
}

func TestGenerate_OtherErrorNotRetried(t *testing.T) {
	c, backend, _ := newTestClient(errors.New("connection reset"))

	_, err := c.Generate(ownerCtx(), Request{TeamA: "A", TeamB: "B"}, model.StyleStadium)
	assert.EqualError(t, err, "connection reset")
	assert.Len(t, backend.dispatches, 1)
}

func TestGenerate_RequiresOwner(t *testing.T) {
	c, backend, _ := newTestClient()
	_, err := c.Generate(context.Background(), Request{TeamA: "A", TeamB: "B"}, model.StyleStadium)
	assert.ErrorIs(t, err, model.ErrNoOwner)
	assert.Empty(t, backend.dispatches)
}

func TestGenerate_ThrottleSpacesBackToBackCalls(t *testing.T) {
	c, backend, _ := newTestClient()
	ctx := ownerCtx()

	_, err := c.Generate(ctx, Request{TeamA: "A", TeamB: "B"}, model.StyleStadium)
	require.NoError(t, err)
	_, err = c.Generate(ctx, Request{TeamA: "C", TeamB: "D"}, model.StyleStadium)
	require.NoError(t, err)

	require.Len(t, backend.dispatches, 2)
	assert.GreaterOrEqual(t, backend.dispatches[1].Sub(backend.dispatches[0]), 2*time.Second)
}

func TestGenerate_ProgramUsesProgramTemplate(t *testing.T) {
	c, backend, _ := newTestClient()
	_, err := c.Generate(ownerCtx(), Request{MatchCount: 3}, model.StyleStadium)
	require.NoError(t, err)

	req := backend.requests[0]
	assert.Equal(t, TemplateProgramDay, req.TemplateID)
	assert.Contains(t, req.Prompt, "3-match program")
	assert.Equal(t, "tok", req.Token)
	assert.Equal(t, model.PortraitAspect, req.AspectRatio)
}

func TestBackoff(t *testing.T) {
	c, _, _ := newTestClient()
	assert.Equal(t, 5*time.Second, c.Backoff(1))
	assert.Equal(t, 10*time.Second, c.Backoff(2))
	assert.Equal(t, 20*time.Second, c.Backoff(3))
	assert.Equal(t, 60*time.Second, c.Backoff(5))
	assert.Equal(t, 60*time.Second, c.Backoff(30))
}

func TestTemplateFor(t *testing.T) {
	cases := map[model.RenderStyle]string{
		model.StyleStadium:  TemplateStadiumNight,
		model.StylePlayers:  TemplatePlayersCover,
		model.StyleAbstract: TemplateAbstractColors,
		model.StylePrestige: TemplatePrestigeGold,
		model.StyleProgram:  TemplateProgramDay,
		"neon":              TemplateStadiumCrowd,
	}
	for style, want := range cases {
		assert.Equal(t, want, TemplateFor(style).ID, "style %s", style)
	}

	prompt := TemplateFor(model.StylePlayers).Render(Request{TeamA: "PSG", TeamB: "Marseille"})
	assert.Contains(t, prompt, "PSG")
	assert.Contains(t, prompt, "Marseille")
	assert.NotContains(t, prompt, "{{")
	assert.NotContains(t, prompt, "Match context")

	prompt = TemplateFor("neon").Render(Request{TeamA: "PSG", TeamB: "Marseille", Competition: "Ligue 1"})
	assert.Contains(t, prompt, "Teams: PSG vs Marseille, with subtle team color hints in the lighting.\nMatch context: Ligue 1.")
	assert.NotContains(t, prompt, "{{")
}

func TestGenerate_ForwardsMatchContext(t *testing.T) {
	c, backend, _ := newTestClient()
	req := Request{
		TeamA: "PSG", TeamB: "Marseille",
		Date: "2025-12-06", Time: "21:00",
		Venue: "Parc des Princes", Competition: "Ligue 1",
	}
	_, err := c.Generate(ownerCtx(), req, model.StyleStadium)
	require.NoError(t, err)

	got := backend.requests[0]
	assert.Equal(t, "Ligue 1", got.Competition)
	assert.Equal(t, "Parc des Princes", got.Venue)
	assert.Equal(t, "2025-12-06", got.Date)
	assert.Equal(t, "21:00", got.Time)
	assert.Contains(t, got.Prompt, "Match context: Ligue 1, at Parc des Princes, on 2025-12-06 21:00.")
}

func TestGenerate_ProgramPromptHasNoMatchContext(t *testing.T) {
	c, backend, _ := newTestClient()
	_, err := c.Generate(ownerCtx(), Request{MatchCount: 2, Competition: "Ligue 1"}, model.StyleProgram)
	require.NoError(t, err)
	assert.NotContains(t, backend.requests[0].Prompt, "Match context")
}

func positive(ds []time.Duration) []time.Duration {
	var out []time.Duration
	for _, d := range ds {
		if d > 0 {
			out = append(out, d)
		}
	}
	return out
}
