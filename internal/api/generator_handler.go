package api

import (
	"fmt"
	"net/http"
	"strings"

	"MatchPoster/internal/adapter/proxy"
	"MatchPoster/internal/generator"
	"MatchPoster/internal/model"
	"MatchPoster/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GeneratorHandler 背景生成接口，也是 proxy 模式客户端调用的后端
type GeneratorHandler struct {
	generator service.BackgroundGenerator
	logger    *logrus.Logger
}

// NewGeneratorHandler 创建 GeneratorHandler
func NewGeneratorHandler(gen service.BackgroundGenerator, logger *logrus.Logger) *GeneratorHandler {
	return &GeneratorHandler{generator: gen, logger: logger}
}

// GenerateMatchBackground 单场背景
// POST /api/gemini/generate-match-background
func (h *GeneratorHandler) GenerateMatchBackground(c *gin.Context) {
	var body proxy.MatchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}
	body.HomeTeam, body.AwayTeam = strings.TrimSpace(body.HomeTeam), strings.TrimSpace(body.AwayTeam)
	if body.HomeTeam == "" || body.AwayTeam == "" {
		writeError(c, h.logger, fmt.Errorf("%w: homeTeam and awayTeam are required", model.ErrInvalidRequest))
		return
	}
	style := body.Style
	if style == "" {
		style = model.StyleStadium
	}
	if !style.Valid() {
		writeError(c, h.logger, fmt.Errorf("%w: unknown style %q", model.ErrInvalidRequest, style))
		return
	}

	req := generator.Request{
		TeamA:       body.HomeTeam,
		TeamB:       body.AwayTeam,
		Date:        body.Date,
		Time:        body.Time,
		Venue:       body.Venue,
		Competition: body.Competition,
	}
	h.respond(c, req, style)
}

// GenerateProgramBackground 节目单背景
// POST /api/gemini/generate-program-background
func (h *GeneratorHandler) GenerateProgramBackground(c *gin.Context) {
	var body proxy.ProgramBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}
	if body.MatchCount <= 0 {
		writeError(c, h.logger, fmt.Errorf("%w: matchCount must be a positive number", model.ErrInvalidRequest))
		return
	}
	h.respond(c, generator.Request{MatchCount: body.MatchCount}, model.StyleProgram)
}

func (h *GeneratorHandler) respond(c *gin.Context, req generator.Request, style model.RenderStyle) {
	if h.generator == nil {
		writeError(c, h.logger, model.ErrBackendNotConfigured)
		return
	}
	img, err := h.generator.Generate(c.Request.Context(), req, style)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, proxy.Result{Success: true, Image: model.DataURL(img.Data, img.MimeType)})
}
