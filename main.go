// 命令行入口：
// - 解析 flags 与 settings.yaml/routes.yaml
// - 初始化日志、HTTP 客户端、内容来源、数据库
// - 构建站点（首页/文章页/posts.json），支持列表调试（-list）与本地预览服务（-serve）
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"go-spacetraveling/internal/cms"
	"go-spacetraveling/internal/comments"
	"go-spacetraveling/internal/config"
	"go-spacetraveling/internal/export"
	"go-spacetraveling/internal/feeds"
	"go-spacetraveling/internal/fetch"
	"go-spacetraveling/internal/logx"
	"go-spacetraveling/internal/paginate"
	"go-spacetraveling/internal/render"
	"go-spacetraveling/internal/routes"
	"go-spacetraveling/internal/server"
	"go-spacetraveling/internal/site"
	"go-spacetraveling/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "settings.yaml", "path to settings.yaml")
		routesPath = flag.String("routes", "routes.yaml", "path to routes.yaml (optional)")
		outDir     = flag.String("out", "", "output directory (overrides SITE.output)")
		serveAddr  = flag.String("serve", "", "serve the output directory and api on this address after building, e.g. :3000")
		list       = flag.Bool("list", false, "print the merged post listing and exit")
	)
	flag.Parse()

	// 1) 加载配置与路由
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *outDir != "" {
		cfg.Site.Output = *outDir
	}
	var rt *routes.Routes
	if *routesPath != "" {
		if r, err := routes.Load(*routesPath); err == nil {
			rt = r
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("load routes failed: %v", err)
		}
	}
	// 2) 初始化日志：级别/格式/语言/颜色
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	// 3) 初始化 HTTP 客户端（含代理与重试）
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    25 * time.Second,
		Retry:      cfg.Concurrency.Retry,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}

	// 4) 内容来源：prismic 或订阅
	src, previewer, badToken, err := newSource(cfg, cl)
	if err != nil {
		log.Fatalf("content source: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5) 数据存储：极简模式不打开数据库；正常模式打开并按需重置
	var st *store.SQLite
	if !cfg.SimpleMode {
		st, err = store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer st.Close()
		if cfg.ResetOnStart {
			if err := st.Reset(ctx); err != nil {
				logx.Warnf("启动清理数据库失败：%v", err)
			} else {
				logx.Infof("已清理数据库表（posts/builds）")
			}
		}
	} else if cfg.ResetOnStart {
		logx.Infof("极简模式：跳过数据库打开与清理")
	}

	rdr, err := render.New(render.Options{
		SiteTitle: cfg.Site.Title,
		Locale:    cfg.Date.Locale,
		Comments: comments.Config{
			Repo:      cfg.Comments.Repo,
			IssueTerm: cfg.Comments.IssueTerm,
			Label:     cfg.Comments.Label,
			Theme:     cfg.Comments.Theme,
		},
		CommentsNode: cfg.Comments.NodeID,
	})
	if err != nil {
		log.Fatalf("templates: %v", err)
	}
	b := site.New(cfg, src, st, rt, rdr)

	if *list {
		// 6) 调试：仅加载并打印合并后的列表后退出
		if err := printListing(ctx, cfg, src, b, st); err != nil {
			logx.Errorf("加载列表失败：%v", err)
			os.Exit(1)
		}
		return
	}

	// 7) 运行构建流程；首屏页不可用时退回缓存导出
	logx.Infof("开始构建：极简模式=%v 输出=%s", cfg.SimpleMode, cfg.Site.Output)
	if _, err := b.Build(ctx); err != nil {
		logx.Errorf("构建失败：%v", err)
		if st == nil {
			os.Exit(1)
		}
		path := filepath.Join(cfg.Site.Output, export.FileName)
		if err := export.ToJSON(ctx, st, b.Dates(), b.Href, cfg.CMS.PageSize, path); err != nil {
			log.Fatalf("export json from cache: %v", err)
		}
		logx.Warnf("已从缓存导出 %s", path)
	}

	if *serveAddr != "" {
		if cfg.Revalidate > 0 {
			go rebuildLoop(ctx, b, time.Duration(cfg.Revalidate)*time.Second)
		}
		srv := server.New(server.Options{
			Source:    src,
			Previewer: previewer,
			Routes:    rt,
			Label:     b.Label,
			BadToken:  badToken,
			StaticDir: cfg.Site.Output,
		})
		if err := srv.ListenAndServe(ctx, *serveAddr); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}
}

// rebuildLoop 在预览服务运行期间每隔 every 重新构建一次，复用未过期的详情缓存。
func rebuildLoop(ctx context.Context, b *site.Builder, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := b.Build(ctx); err != nil {
				logx.Warnf("定时重建失败：%v", err)
			}
		}
	}
}

// newSource 按配置创建内容来源，并返回预览解析器（订阅来源没有预览）与非法令牌判断。
func newSource(cfg *config.Config, cl *fetch.Client) (site.Source, server.Previewer, func(error) bool, error) {
	switch cfg.CMS.Type {
	case "feed":
		s := feeds.NewSource(cl, cfg.CMS.FeedURL, cfg.CMS.FeedSuffix, cfg.CMS.PageSize)
		return s, nil, func(err error) bool { return errors.Is(err, feeds.ErrBadToken) }, nil
	default:
		c, err := cms.New(cl, cms.Options{
			Endpoint:     cfg.CMS.Endpoint,
			AccessToken:  cfg.CMS.AccessToken,
			DocumentType: cfg.CMS.DocumentType,
			PageSize:     cfg.CMS.PageSize,
			Fields:       cfg.CMS.Fields,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return c, c, func(err error) bool { return errors.Is(err, cms.ErrForeignToken) }, nil
	}
}

func printListing(ctx context.Context, cfg *config.Config, src paginate.Source, b *site.Builder, st *store.SQLite) error {
	if st != nil {
		if last, err := st.LastBuild(ctx); err == nil {
			logx.Infof("上次构建：%s（%s，文章=%d 失败=%d）", last.ID, humanize.Time(last.StartedAt), last.Posts, last.Failed)
		}
	}
	l, err := paginate.NewListing(ctx, src)
	if err != nil {
		return err
	}
	state, err := l.LoadAll(ctx, cfg.Site.MaxPages)
	if err != nil {
		logx.Warnf("加载后续页失败：%v", err)
	}
	posts := paginate.DedupByUID(state.Accumulated)
	logx.Infof("共 %d 页，%d 篇文章，还有下一页=%v", l.Pages(), len(posts), paginate.CanLoadMore(state))
	for _, p := range posts {
		lp := b.Label(p)
		fmt.Printf("%s\t%s\t%s\t%s\n", lp.DateLabel, lp.Href, lp.Title, lp.Author)
	}
	return nil
}
