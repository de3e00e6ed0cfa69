package app

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docpad/api/internal/auth"
	"docpad/api/internal/config"
	"docpad/api/internal/content"
	"docpad/api/internal/embed"
	"docpad/api/internal/gitrepo"
	"docpad/api/internal/metrics"
	"docpad/api/internal/preview"
	"docpad/api/internal/rbac"
	"docpad/api/internal/render"
	"docpad/api/internal/search"
	"docpad/api/internal/store"
	"docpad/api/internal/truncate"
	"docpad/api/internal/upload"
)

const (
	anonymousName   = "Anonymous"
	historyLimit    = 50
	editorLabel     = "Description"
	editorHint      = "Compose a document..."
	defaultViewTTL  = 24 * time.Hour
	welcomeDocument = "welcome"
)

type Session struct {
	Token     string
	UserName  string
	Role      rbac.Role
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	ListDocuments(context.Context) ([]store.Document, error)
	GetDocument(context.Context, string) (store.Document, error)
	InsertDocument(context.Context, store.Document) error
	UpdateDocumentValue(context.Context, string, string, string, string, string) (bool, error)
	UpdateDocumentTitle(context.Context, string, string, string) (bool, error)
	DeleteDocument(context.Context, string) (bool, error)
	InsertFileAsset(context.Context, store.FileAsset) error
	ListFileAssets(context.Context, string) ([]store.FileAsset, error)
	Ping(ctx context.Context) error
}

type gitService interface {
	EnsureDocumentRepo(string, gitrepo.Content, string) error
	RemoveDocumentRepo(string) error
	CommitContent(string, gitrepo.Content, string, string) (store.CommitInfo, error)
	GetHeadContent(string) (gitrepo.Content, store.CommitInfo, error)
	History(string, int) ([]store.CommitInfo, error)
	GetContentByHash(string, string) (gitrepo.Content, error)
	GetCommitByHash(string, string) (store.CommitInfo, error)
	CreateTag(string, string, string) error
}

type searchService interface {
	Search(search.Query) search.Response
	IndexDocument(search.DocumentRecord)
	DeleteDocument(string)
}

// Deps carries the optional collaborators of the service. Zero values fall
// back to in-process implementations.
type Deps struct {
	Search   *search.Service
	Files    upload.Store
	Views    preview.Store
	Measurer render.Measurer
	Math     render.MathRenderer
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

type Service struct {
	cfg        config.Config
	store      dataStore
	git        gitService
	search     searchService
	files      upload.Store
	views      preview.Store
	render     *render.Service
	measurer   render.Measurer
	engine     truncate.Engine
	serializer *embed.Serializer
	metrics    *metrics.Metrics
	live       *liveHub
	log        zerolog.Logger
}

func New(cfg config.Config, dataStore *store.PostgresStore, gitService *gitrepo.Service, deps Deps) *Service {
	return newService(cfg, dataStore, gitService, deps)
}

func newService(cfg config.Config, dataStore dataStore, gitService gitService, deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Views == nil {
		deps.Views = preview.NewMemoryStore()
	}
	if deps.Measurer == nil {
		deps.Measurer = render.DefaultEstimate()
	}
	if deps.Math == nil {
		deps.Math = render.PlainMath
	}
	s := &Service{
		cfg:        cfg,
		store:      dataStore,
		git:        gitService,
		files:      deps.Files,
		views:      deps.Views,
		measurer:   deps.Measurer,
		engine:     truncate.Default(),
		serializer: embed.NewSerializer(),
		metrics:    deps.Metrics,
		live:       newLiveHub(deps.Metrics.LiveConnections),
		log:        deps.Logger.With().Str("component", "app").Logger(),
	}
	// A nil *search.Service must not become a non-nil interface.
	if deps.Search != nil {
		s.search = deps.Search
	}
	s.render = render.NewService(documentSource{service: s}, deps.Math)
	return s
}

// Bootstrap seeds a welcome document when the store is empty.
func (s *Service) Bootstrap(ctx context.Context) error {
	documents, err := s.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(documents) > 0 {
		return nil
	}

	delta := content.Delta{Ops: []content.Op{
		content.TextOp("Welcome to Docpad", nil),
		content.TextOp("\n", map[string]any{"header": 1}),
		content.TextOp("Write text, then insert a formula, a graph or an image from the toolbar.\n", nil),
		content.EmbedOp(content.EmbedFormula, `e^{i\pi} + 1 = 0`),
		content.TextOp("\n", nil),
	}}
	value, err := content.Encode(s.render.ContentHTML(delta), delta)
	if err != nil {
		return err
	}

	doc := store.Document{
		ID:          welcomeDocument,
		Title:       "Welcome",
		Value:       value,
		PlainText:   delta.PlainText(),
		ContentHash: preview.ContentHash(value),
		UpdatedBy:   "Docpad",
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return err
	}
	if err := s.git.EnsureDocumentRepo(doc.ID, gitrepo.Content{Title: doc.Title, Value: doc.Value}, doc.UpdatedBy); err != nil {
		return err
	}
	s.indexDocument(doc.ID, doc.Title, doc.Value)
	return nil
}

func (s *Service) AuthEnabled() bool {
	return s.cfg.TokenSecret != ""
}

func (s *Service) Login(_ context.Context, name, role string) (Session, error) {
	if !s.AuthEnabled() {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_DISABLED", "Sign-in is not configured", nil)
	}
	userName := strings.TrimSpace(name)
	if userName == "" {
		return Session{}, validationError("name is required")
	}

	ttl := s.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	claims := auth.NewClaims(userName, string(rbac.Normalize(role)), ttl)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), claims)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserName:  claims.Name,
		Role:      rbac.Role(claims.Role),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// SessionFromToken resolves the caller. With sign-in disabled every caller is
// an anonymous editor.
func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	if !s.AuthEnabled() {
		return Session{UserName: anonymousName, Role: rbac.RoleEditor}, nil
	}
	if token == "" {
		return Session{}, auth.ErrInvalidToken
	}
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserName:  claims.Name,
		Role:      rbac.Normalize(claims.Role),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

func (s *Service) Search(q search.Query) search.Response {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) indexDocument(id, title, value string) {
	if s.search == nil {
		return
	}
	s.search.IndexDocument(search.RecordFromValue(id, title, value))
}

func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingViews(ctx context.Context) error {
	return s.views.Ping(ctx)
}

// documentSource feeds exports from the store, or from git history when a
// commit hash is requested.
type documentSource struct {
	service *Service
}

func (d documentSource) GetDocumentInfo(ctx context.Context, documentID string) (render.DocumentInfo, error) {
	doc, err := d.service.store.GetDocument(ctx, documentID)
	if err != nil {
		return render.DocumentInfo{}, err
	}
	return render.DocumentInfo{ID: doc.ID, Title: doc.Title, UpdatedBy: doc.UpdatedBy, UpdatedAt: doc.UpdatedAt}, nil
}

func (d documentSource) GetDocumentValue(ctx context.Context, documentID, version string) (string, error) {
	if version == "" || version == "latest" {
		doc, err := d.service.store.GetDocument(ctx, documentID)
		if err != nil {
			return "", err
		}
		return doc.Value, nil
	}
	snapshot, err := d.service.git.GetContentByHash(documentID, version)
	if err != nil {
		return "", err
	}
	return snapshot.Value, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
