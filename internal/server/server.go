// 包 server 提供本地预览服务：
// - GET /api/posts?page=<令牌>：返回一页文章（令牌为空时返回首屏页）
// - GET /api/preview?token=&documentId=：预览跳转
// - 其余路径：输出目录中的静态文件
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/paginate"
	"go-spacetraveling/internal/routes"
)

// PreviewCookie 为预览令牌所在的 cookie 名称。
const PreviewCookie = "io.prismic.preview"

// Previewer 根据预览令牌与文档 id 解析站内路径；无法解析时返回空串。
type Previewer interface {
	ResolvePreview(ctx context.Context, token, documentID string, rt *routes.Routes) (string, error)
}

// Options 为服务配置。BadToken 判断错误是否由非法分页令牌引起。
type Options struct {
	Source    paginate.Source
	Previewer Previewer // 为 nil 时预览总是返回 401
	Routes    *routes.Routes
	Label     func(model.Post) model.ListedPost
	BadToken  func(error) bool
	StaticDir string
}

// Server 组合路由与处理函数。
type Server struct {
	opts Options
	mux  *http.ServeMux
}

type listResponse struct {
	Results  []model.ListedPost `json:"results"`
	NextPage string             `json:"next_page"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// New 创建服务并注册路由。
func New(opts Options) *Server {
	if opts.Label == nil {
		opts.Label = func(p model.Post) model.ListedPost { return model.ListedPost{Post: p} }
	}
	if opts.BadToken == nil {
		opts.BadToken = func(error) bool { return false }
	}
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/posts", s.handlePosts)
	s.mux.HandleFunc("/api/preview", s.handlePreview)
	if opts.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return s
}

// Handler 返回带请求日志的处理器。
func (s *Server) Handler() http.Handler { return logRequests(s.mux) }

// ListenAndServe 启动服务，ctx 取消时优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logx.Infof("预览服务已启动：http://%s", addr)
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: "Method not allowed"})
		return
	}
	token := r.URL.Query().Get("page")
	var (
		page model.PostPage
		err  error
	)
	if token == "" {
		page, err = s.opts.Source.FirstPage(r.Context())
	} else {
		page, err = s.opts.Source.NextPage(r.Context(), token)
	}
	switch {
	case err != nil && s.opts.BadToken(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid page token"})
		return
	case err != nil:
		logx.Warnf("抓取文章页失败：%v", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Message: "Upstream unavailable"})
		return
	}
	resp := listResponse{Results: make([]model.ListedPost, 0, len(page.Results)), NextPage: page.NextPage}
	for _, p := range page.Results {
		resp.Results = append(resp.Results, s.opts.Label(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token, docID := q.Get("token"), q.Get("documentId")
	var target string
	if s.opts.Previewer != nil && token != "" && docID != "" {
		var err error
		target, err = s.opts.Previewer.ResolvePreview(r.Context(), token, docID, s.opts.Routes)
		if err != nil {
			logx.Warnf("解析预览失败：%v", err)
			target = ""
		}
	}
	if target == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Invalid token"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     PreviewCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((30 * time.Minute).Seconds()),
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, redirectHTML(target))
}

// redirectHTML 生成立即跳转的页面；target 同时出现在属性与脚本字符串中，两处分别转义。
func redirectHTML(target string) string {
	js, _ := json.Marshal(target)
	return `<!DOCTYPE html><html><head><meta http-equiv="Refresh" content="0; url=` + html.EscapeString(target) + `" />` +
		`<script>window.location.href = ` + string(js) + `</script></head></html>`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Debugf("写入响应失败：%v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// logRequests 记录每个请求的方法、路径、状态码、大小与耗时。
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logx.Infof("%s %s %s %s %s", r.Method, r.URL.Path, strconv.Itoa(rec.status),
			humanize.Bytes(uint64(rec.bytes)), time.Since(start).Round(time.Microsecond))
	})
}
