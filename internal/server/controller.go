package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/tabletalk/internal/ai"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/dispatch"
	"github.com/KaramelBytes/tabletalk/internal/intent"
	"github.com/KaramelBytes/tabletalk/internal/session"
)

// maxUpload bounds a dataset upload.
const maxUpload = 32 << 20

// Response is the error envelope.
type Response struct {
	Message string `json:"message"`
}

func newResponse(msg string) Response { return Response{Message: msg} }

type CreateSessionRequest struct {
	Backend     string `json:"backend"`
	Credentials string `json:"credentials"`
	ModelName   string `json:"model_name"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Backend   string `json:"backend"`
	ModelName string `json:"model_name,omitempty"`
}

type DatasetResponse struct {
	Profile     *dataset.Profile `json:"profile"`
	Suggestions []string         `json:"suggestions"`
}

// AskRequest carries a question and an optional intent that bypasses classification.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	Intent   string `json:"intent"`
}

// SessionController serves the session API.
type SessionController struct {
	store    *session.Store
	answerer session.Answerer
	load     dataset.Options
	log      zerolog.Logger
}

func NewSessionController(store *session.Store, answerer session.Answerer, load dataset.Options, log zerolog.Logger) *SessionController {
	return &SessionController{store: store, answerer: answerer, load: load, log: log}
}

func RegisterRoutes(router *gin.Engine, c *SessionController) {
	router.GET("/healthz", c.Health)
	v1 := router.Group("/api/v1/sessions")
	{
		v1.POST("", c.Create)
		v1.PUT("/:id/dataset", c.LoadDataset)
		v1.POST("/:id/ask", c.Ask)
		v1.GET("/:id/turns", c.Turns)
		v1.GET("/:id/suggestions", c.Suggestions)
		v1.DELETE("/:id", c.Delete)
	}
}

func (c *SessionController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": c.store.Len()})
}

func (c *SessionController) Create(ctx *gin.Context) {
	var req CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, newResponse("Invalid request body: "+err.Error()))
		return
	}
	backend := ai.NormalizeProvider(req.Backend)
	if backend == "" {
		backend = ai.ProviderLocal
	}
	switch backend {
	case ai.ProviderFreeLLM, ai.ProviderOpenAI, ai.ProviderAnthropic, ai.ProviderLocal:
	default:
		ctx.JSON(http.StatusBadRequest, newResponse("Unknown backend; use free_llm, openai, anthropic or local"))
		return
	}
	s := c.store.Create(dispatch.ProviderConfig{Backend: backend, Credentials: req.Credentials, ModelName: req.ModelName})
	c.log.Info().Str("session_id", s.ID).Str("backend", backend).Msg("session created")
	ctx.JSON(http.StatusCreated, CreateSessionResponse{SessionID: s.ID, Backend: backend, ModelName: req.ModelName})
}

// LoadDataset accepts a multipart "file" field or a raw CSV body.
func (c *SessionController) LoadDataset(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUpload)

	var (
		body io.Reader = ctx.Request.Body
		name           = ctx.DefaultQuery("name", "upload.csv")
	)
	if strings.HasPrefix(ctx.ContentType(), "multipart/") {
		fh, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(http.StatusBadRequest, newResponse("Missing multipart field \"file\""))
			return
		}
		f, err := fh.Open()
		if err != nil {
			ctx.JSON(http.StatusBadRequest, newResponse("Cannot read uploaded file"))
			return
		}
		defer f.Close()
		body, name = f, fh.Filename
	}

	opts := c.load
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		opts.Delimiter = '\t'
	}
	ds, err := dataset.ReadCSV(body, name, opts)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, newResponse("Invalid CSV: "+err.Error()))
		return
	}
	if ds.Len() == 0 || len(ds.Columns) == 0 {
		ctx.JSON(http.StatusUnprocessableEntity, newResponse((&dataset.EmptyDatasetError{Name: name}).Error()))
		return
	}
	suggestions := s.LoadDataset(ds)
	c.log.Info().Str("session_id", s.ID).Str("dataset", name).Int("rows", ds.Len()).Msg("dataset loaded")
	ctx.JSON(http.StatusOK, DatasetResponse{Profile: s.Profile(), Suggestions: suggestions})
}

func (c *SessionController) Ask(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var req AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		ctx.JSON(http.StatusBadRequest, newResponse("A non-empty \"question\" is required"))
		return
	}
	var in intent.Intent
	if strings.TrimSpace(req.Intent) != "" {
		parsed, err := intent.Parse(req.Intent)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, newResponse("Unknown intent; use one of "+intentNames()))
			return
		}
		in = parsed
	}
	ans, err := s.AskAs(ctx.Request.Context(), c.answerer, in, req.Question)
	if err != nil {
		var empty *dataset.EmptyDatasetError
		switch {
		case errors.As(err, &empty):
			ctx.JSON(http.StatusUnprocessableEntity, newResponse(err.Error()))
		case errors.Is(err, session.ErrClosed):
			ctx.JSON(http.StatusNotFound, newResponse(err.Error()))
		default:
			c.log.Error().Err(err).Str("session_id", s.ID).Msg("ask failed")
			ctx.JSON(http.StatusInternalServerError, newResponse("Internal server error"))
		}
		return
	}
	ctx.JSON(http.StatusOK, ans)
}

func (c *SessionController) Turns(ctx *gin.Context) {
	if s, ok := c.session(ctx); ok {
		ctx.JSON(http.StatusOK, gin.H{"turns": s.Turns()})
	}
}

func (c *SessionController) Suggestions(ctx *gin.Context) {
	if s, ok := c.session(ctx); ok {
		ctx.JSON(http.StatusOK, gin.H{"suggestions": s.Suggestions()})
	}
}

func (c *SessionController) Delete(ctx *gin.Context) {
	if err := c.store.Delete(ctx.Param("id")); err != nil {
		ctx.JSON(http.StatusNotFound, newResponse(err.Error()))
		return
	}
	ctx.Status(http.StatusNoContent)
}

func intentNames() string {
	names := make([]string, 0, len(intent.All()))
	for _, in := range intent.All() {
		names = append(names, string(in))
	}
	return strings.Join(names, ", ")
}

func (c *SessionController) session(ctx *gin.Context) (*session.Session, bool) {
	s, err := c.store.Get(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, newResponse(err.Error()))
		return nil, false
	}
	return s, true
}
