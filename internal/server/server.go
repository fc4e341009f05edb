package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/config"
	"github.com/TobiSchelling/MeduzaReader/internal/export"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
	"github.com/TobiSchelling/MeduzaReader/internal/pipeline"
	"github.com/TobiSchelling/MeduzaReader/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// exportLimit caps the rows of a CSV download.
const exportLimit = 1000

// BatchRunner runs one fetch batch into the server's store.
type BatchRunner interface {
	Run(ctx context.Context, limit int, progress pipeline.ProgressFunc) (*pipeline.Result, error)
}

// Server is the HTTP server for browsing stored articles.
type Server struct {
	store    store.Store
	pageSize int
	pages    map[string]*template.Template
	router   *mux.Router

	runner   BatchRunner
	fetching sync.Mutex
}

// New creates a new Server.
func New(st store.Store, cfg config.Server) (*Server, error) {
	funcMap := template.FuncMap{
		"bullets": renderBullets,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so its {{define}} blocks do not
	// clash with other pages.
	pageNames := []string{"index.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = store.DefaultLimit
	}

	s := &Server{store: st, pageSize: pageSize, pages: pages, router: mux.NewRouter()}
	s.routes()
	return s, nil
}

// EnableFetch lets POST /fetch run batches with r. Without it the route
// answers 503.
func (s *Server) EnableFetch(r BatchRunner) {
	s.runner = r
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(loggingMiddleware)

	staticSub, _ := fs.Sub(staticFS, "static")
	s.router.PathPrefix("/static/").
		Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub)))).
		Methods(http.MethodGet)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/export.csv", s.handleExport).Methods(http.MethodGet)
	s.router.HandleFunc("/fetch", s.handleFetch).Methods(http.MethodPost)
}

// articleView is an article as the index page shows it.
type articleView struct {
	Title         string
	OriginalTitle string
	Link          string
	Published     string
	Teaser        string
	Summary       string
	Content       string
}

func newArticleView(a article.Processed) articleView {
	title := article.Deref(a.TranslatedTitle)
	if title == "" {
		title = a.Title
	}
	return articleView{
		Title:         title,
		OriginalTitle: a.Title,
		Link:          a.Link,
		Published:     a.Published,
		Teaser:        article.Deref(a.TranslatedSummary),
		Summary:       article.Deref(a.AutoSummary),
		Content:       article.Deref(a.TranslatedContent),
	}
}

// filterFromRequest reads the q and range query parameters.
func filterFromRequest(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	dr, err := store.ParseDateRange(q.Get("range"))
	if err != nil {
		return store.Filter{}, err
	}
	return store.Filter{Text: strings.TrimSpace(q.Get("q")), Range: dr}, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	filter.Offset = (page - 1) * s.pageSize
	// One extra row tells whether a next page exists.
	filter.Limit = s.pageSize + 1

	rows, err := s.store.Query(r.Context(), filter)
	if err != nil {
		logging.Errorf("Error querying articles: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	hasNext := len(rows) > s.pageSize
	if hasNext {
		rows = rows[:s.pageSize]
	}

	views := make([]articleView, len(rows))
	for i, a := range rows {
		views[i] = newArticleView(a)
	}

	s.render(w, "index.html", map[string]any{
		"Articles":  views,
		"Query":     filter.Text,
		"Range":     filter.Range.String(),
		"Ranges":    []string{"all", "today", "7d", "30d"},
		"Page":      page,
		"PrevURL":   pageURL(filter, page-1, page > 1),
		"NextURL":   pageURL(filter, page+1, hasNext),
		"ExportURL": "/export.csv?" + filterValues(filter).Encode(),
		"CanFetch":  s.runner != nil,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.Limit = exportLimit

	rows, err := s.store.Query(r.Context(), filter)
	if err != nil {
		logging.Errorf("Error querying articles for export: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meduza-articles.csv"`)
	if err := export.WriteCSV(w, rows); err != nil {
		logging.Errorf("Error writing CSV export: %v", err)
	}
}

// handleFetch runs one batch and streams its progress as plain text.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		http.Error(w, "Fetching is not enabled", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if v := r.FormValue("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if !s.fetching.TryLock() {
		http.Error(w, "A fetch is already running", http.StatusConflict)
		return
	}
	defer s.fetching.Unlock()

	rc := http.NewResponseController(w)
	// A batch outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	started := false
	begin := func() {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
	}
	progress := func(p pipeline.Progress) {
		begin()
		fmt.Fprintln(w, p)
		_ = rc.Flush()
	}

	result, err := s.runner.Run(r.Context(), limit, progress)
	if err != nil {
		logging.Warnf("Fetch failed: %v", err)
		if !started {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}

	begin()
	failed := result.Failed()
	fmt.Fprintf(w, "run %s: %d saved, %d duplicates, %d failed of %d attempted\n",
		result.RunID, result.Saved, result.Duplicates, len(failed), result.Attempted)
	for _, it := range failed {
		fmt.Fprintf(w, "failed: %s (%s): %v\n", it.Title, it.Stage, it.Err)
	}
}

func filterValues(f store.Filter) url.Values {
	v := url.Values{}
	if f.Text != "" {
		v.Set("q", f.Text)
	}
	if f.Range != store.All {
		v.Set("range", f.Range.String())
	}
	return v
}

func pageURL(f store.Filter, page int, ok bool) string {
	if !ok {
		return ""
	}
	v := filterValues(f)
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		logging.Errorf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		logging.Errorf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// renderBullets renders a newline-separated summary as a bullet list.
func renderBullets(summary string) template.HTML {
	var src strings.Builder
	for _, line := range strings.Split(summary, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			src.WriteString("- ")
			src.WriteString(line)
			src.WriteString("\n")
		}
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src.String()), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(summary))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Infof("%s %s (%s)", r.Method, r.URL.RequestURI(), time.Since(start).Round(time.Millisecond))
	})
}

// Serve starts the HTTP server on the given port and shuts it down when
// ctx is cancelled. A nil runner leaves POST /fetch disabled.
func Serve(ctx context.Context, st store.Store, cfg config.Server, runner BatchRunner) error {
	srv, err := New(st, cfg)
	if err != nil {
		return err
	}
	if runner != nil {
		srv.EnableFetch(runner)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("Server listening on http://%s", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Infof("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
