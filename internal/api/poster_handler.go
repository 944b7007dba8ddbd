package api

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"MatchPoster/internal/adapter/proxy"
	"MatchPoster/internal/model"
	"MatchPoster/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PosterHandler 海报合成与图库接口
type PosterHandler struct {
	posters *service.PosterService
	gallery *service.GalleryService
	logger  *logrus.Logger
}

// NewPosterHandler 创建 PosterHandler
func NewPosterHandler(posters *service.PosterService, gallery *service.GalleryService, logger *logrus.Logger) *PosterHandler {
	return &PosterHandler{posters: posters, gallery: gallery, logger: logger}
}

// posterRequest 前端提交的合成请求。background 可为 URL 或 data URL
type posterRequest struct {
	Fixtures   []model.Fixture   `json:"fixtures"`
	Style      model.RenderStyle `json:"style"`
	Mode       model.PosterMode  `json:"mode"`
	Background string            `json:"background"`
	Generate   bool              `json:"generate"`
	Branding   model.Branding    `json:"branding"`
}

// partialResult 批量合成中途失败：错误信息加上已保存的海报
type partialResult struct {
	proxy.Result
	Posters []posterView `json:"posters"`
}

// posterView 返回给前端的记录，附带下载地址
type posterView struct {
	*model.PosterRecord
	ImageURL      string `json:"imageUrl"`
	BackgroundRef string `json:"backgroundImageUrl,omitempty"`
}

func toView(rec *model.PosterRecord) posterView {
	v := posterView{PosterRecord: rec, ImageURL: "/api/posters/" + rec.ID + "/image"}
	if rec.BackgroundBlobKey != "" || rec.BackgroundURL != "" {
		v.BackgroundRef = "/api/posters/" + rec.ID + "/background"
	}
	return v
}

func (h *PosterHandler) bind(c *gin.Context) (model.CompositionRequest, bool) {
	var body posterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, h.logger, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return model.CompositionRequest{}, false
	}
	bg, err := model.ParseImageRef(body.Background)
	if err != nil {
		writeError(c, h.logger, err)
		return model.CompositionRequest{}, false
	}
	req := model.CompositionRequest{
		Fixtures:   body.Fixtures,
		Style:      body.Style,
		Mode:       body.Mode,
		Background: bg,
		Generate:   body.Generate,
		Branding:   body.Branding,
	}
	// blob: 引用只能由服务端生成，外部传入可能读取他人的图片
	if err := rejectBlobRefs(req); err != nil {
		writeError(c, h.logger, err)
		return model.CompositionRequest{}, false
	}
	return req, true
}

func rejectBlobRefs(req model.CompositionRequest) error {
	urls := []string{req.Background.URL, req.Branding.LogoURL}
	for _, f := range req.Fixtures {
		urls = append(urls, f.HomeTeam.LogoURL, f.AwayTeam.LogoURL)
	}
	for _, u := range urls {
		if strings.HasPrefix(u, model.BlobScheme) {
			return fmt.Errorf("%w: unsupported image reference %q", model.ErrInvalidRequest, u)
		}
	}
	return nil
}

// Preview 预览
// POST /api/posters/preview[?format=image]
func (h *PosterHandler) Preview(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	asImage := c.Query("format") == "image"
	doc, err := h.posters.Preview(c.Request.Context(), req, asImage)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if asImage {
		img, err := model.ParseImageRef(doc.Image)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.Data(http.StatusOK, img.MimeType, img.Data)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "preview": doc})
}

// Create 合成并保存
// POST /api/posters
func (h *PosterHandler) Create(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	records, err := h.posters.Create(c.Request.Context(), req)
	views := make([]posterView, 0, len(records))
	for _, rec := range records {
		views = append(views, toView(rec))
	}
	if err != nil {
		if len(views) == 0 {
			writeError(c, h.logger, err)
			return
		}
		// 前面的海报已经入库，一并返回，客户端无需重新生成
		status, body := resolveError(c, h.logger, err)
		c.AbortWithStatusJSON(status, partialResult{Result: body, Posters: views})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "posters": views})
}

// List 当前用户未过期的海报
// GET /api/posters
func (h *PosterHandler) List(c *gin.Context) {
	records, err := h.gallery.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	views := make([]posterView, 0, len(records))
	for _, rec := range records {
		views = append(views, toView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posters": views})
}

// Get 单条记录
// GET /api/posters/:id
func (h *PosterHandler) Get(c *gin.Context) {
	rec, err := h.gallery.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "poster": toView(rec)})
}

// Image 下载成图
// GET /api/posters/:id/image
func (h *PosterHandler) Image(c *gin.Context) {
	asset, err := h.gallery.OpenPoster(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if asset.FileName != "" {
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": asset.FileName}))
	}
	c.Data(http.StatusOK, asset.MimeType, asset.Data)
}

// Background 读取背景
// GET /api/posters/:id/background
func (h *PosterHandler) Background(c *gin.Context) {
	asset, err := h.gallery.OpenBackground(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if asset.RedirectURL != "" {
		c.Redirect(http.StatusFound, asset.RedirectURL)
		return
	}
	c.Data(http.StatusOK, asset.MimeType, asset.Data)
}

// Delete 删除
// DELETE /api/posters/:id
func (h *PosterHandler) Delete(c *gin.Context) {
	if err := h.gallery.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
