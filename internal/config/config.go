// 包 config 负责加载与校验站点配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验，并支持少量环境变量覆盖。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 环境变量覆盖：令牌不应写进仓库里的配置文件。
const (
	envCMSToken    = "BLOG_CMS_TOKEN"
	envCMSEndpoint = "BLOG_CMS_ENDPOINT"
)

type Config struct {
	CMS          CMS         `yaml:"CMS"`
	Site         Site        `yaml:"SITE"`
	Reading      Reading     `yaml:"READING"`
	Date         Date        `yaml:"DATE"`
	Comments     Comments    `yaml:"COMMENTS"`
	Revalidate   int         `yaml:"REVALIDATE"` // 秒；详情缓存的有效期，0 表示总是重新抓取
	SimpleMode   bool        `yaml:"SIMPLE_MODE"`
	ResetOnStart bool        `yaml:"RESET_ON_START"`
	Database     Database    `yaml:"DATABASE"`
	Concurrency  Concurrency `yaml:"CONCURRENCY"`
	Proxy        Proxy       `yaml:"PROXY"`
	LogLevel     string      `yaml:"LOG_LEVEL"`
	LogFormat    string      `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale    string      `yaml:"LOG_LOCALE"` // zh-CN|en|pt-BR
	LogColor     string      `yaml:"LOG_COLOR"`  // auto|always|never
}

// CMS 描述内容来源：prismic（REST v2）或 feed（RSS/Atom/JSON Feed）。
type CMS struct {
	Type         string   `yaml:"type"`
	Endpoint     string   `yaml:"endpoint"` // https://<repo>.cdn.prismic.io/api/v2
	AccessToken  string   `yaml:"access_token"`
	DocumentType string   `yaml:"document_type"`
	PageSize     int      `yaml:"page_size"`
	Fields       []string `yaml:"fields"`
	FeedURL      string   `yaml:"feed_url"`    // type=feed 时的站点或订阅地址
	FeedSuffix   string   `yaml:"feed_suffix"` // 可选订阅后缀，提升发现命中率
}

type Site struct {
	Title    string `yaml:"title"`
	Output   string `yaml:"output"`
	BaseURL  string `yaml:"base_url"`
	MaxPages int    `yaml:"max_pages"` // 构建时最多抓取的列表页数，0 表示不限制
}

type Reading struct {
	WordsPerMinute int `yaml:"words_per_minute"`
}

type Date struct {
	Locale      string `yaml:"locale"`
	Placeholder string `yaml:"placeholder"`
	Timezone    string `yaml:"timezone"`
}

// Comments 为 Utterances 评论组件配置；Repo 为空时不挂载。
type Comments struct {
	NodeID    string `yaml:"node_id"`
	Repo      string `yaml:"repo"`
	IssueTerm string `yaml:"issue_term"`
	Label     string `yaml:"label"`
	Theme     string `yaml:"theme"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`  // ./blog.db
}

type Concurrency struct {
	Fetch int `yaml:"fetch"`
	Retry int `yaml:"retry"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Load 读取 YAML 并反序列化为 Config，应用环境变量覆盖后校验并填充默认值。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envCMSToken); v != "" {
		c.CMS.AccessToken = v
	}
	if v := os.Getenv(envCMSEndpoint); v != "" {
		c.CMS.Endpoint = v
	}
}

// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
func (c *Config) Validate() error {
	c.CMS.Type = strings.ToLower(strings.TrimSpace(c.CMS.Type))
	if c.CMS.Type == "" {
		c.CMS.Type = "prismic"
	}
	switch c.CMS.Type {
	case "prismic":
		if c.CMS.Endpoint == "" {
			return errors.New("CMS.endpoint is required for prismic")
		}
	case "feed":
		if c.CMS.FeedURL == "" {
			return errors.New("CMS.feed_url is required for feed")
		}
	default:
		return fmt.Errorf("unsupported CMS type: %s", c.CMS.Type)
	}
	if c.CMS.PageSize < 0 || c.Site.MaxPages < 0 || c.Revalidate < 0 {
		return errors.New("CMS.page_size, SITE.max_pages and REVALIDATE must be >= 0")
	}
	if c.CMS.PageSize == 0 {
		c.CMS.PageSize = 10
	}
	if c.CMS.DocumentType == "" {
		c.CMS.DocumentType = "posts"
	}
	if len(c.CMS.Fields) == 0 {
		c.CMS.Fields = []string{"title", "subtitle", "author"}
	}
	if c.Site.Output == "" {
		c.Site.Output = "./public"
	}
	if c.Site.Title == "" {
		c.Site.Title = "Blog"
	}
	if c.Reading.WordsPerMinute <= 0 {
		c.Reading.WordsPerMinute = 200
	}
	if c.Date.Locale == "" {
		c.Date.Locale = "pt-BR"
	}
	if c.Comments.NodeID == "" {
		c.Comments.NodeID = "comments"
	}
	if c.Comments.IssueTerm == "" {
		c.Comments.IssueTerm = "pathname"
	}
	if c.Comments.Theme == "" {
		c.Comments.Theme = "photon-dark"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./blog.db"
	}
	if c.Concurrency.Fetch <= 0 {
		c.Concurrency.Fetch = 4
	}
	if c.Concurrency.Retry < 0 {
		c.Concurrency.Retry = 2
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}
