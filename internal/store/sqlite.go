// 包 store 提供存储实现（SQLite），缓存文章摘要/详情并记录构建历史。
// SQL 由 squirrel 构造，驱动为 modernc.org/sqlite（纯 Go 实现）。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"go-spacetraveling/internal/model"
)

// ErrNotCached 表示缓存中没有该文章的详情。
var ErrNotCached = errors.New("detail not cached")

// SQLite 封装 *sql.DB。
type SQLite struct {
	db *sql.DB
}

// Build 为一次站点构建的记录。
type Build struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Posts      int
	Failed     int
	Status     string
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
            uid TEXT PRIMARY KEY,
            title TEXT,
            subtitle TEXT,
            author TEXT,
            published TIMESTAMP NULL,
            detail TEXT NULL,
            fetched_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS builds (
            id TEXT PRIMARY KEY,
            started_at TIMESTAMP,
            finished_at TIMESTAMP,
            posts INTEGER,
            failed INTEGER,
            status TEXT
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// Reset 清空业务数据表（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	for _, table := range []string{"posts", "builds"} {
		q, args, err := sq.Delete(table).ToSql()
		if err != nil {
			return fmt.Errorf("build delete %s: %w", table, err)
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// UpsertPost 写入文章摘要（uid 唯一），不覆盖已缓存的详情。
func (s *SQLite) UpsertPost(ctx context.Context, p model.Post) error {
	if p.UID == "" {
		return errors.New("post.uid required")
	}
	q, args, err := sq.Insert("posts").
		Columns("uid", "title", "subtitle", "author", "published", "fetched_at").
		Values(p.UID, p.Title, p.Subtitle, p.Author, nullTime(p.PublicationDate), time.Now()).
		Suffix("ON CONFLICT(uid) DO UPDATE SET title=excluded.title, subtitle=excluded.subtitle, author=excluded.author, published=excluded.published").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert post: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert post %s: %w", p.UID, err)
	}
	return nil
}

// SaveDetail 写入文章详情（JSON）并刷新抓取时间。
func (s *SQLite) SaveDetail(ctx context.Context, d model.PostDetail) error {
	if d.UID == "" {
		return errors.New("detail.uid required")
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal detail %s: %w", d.UID, err)
	}
	q, args, err := sq.Insert("posts").
		Columns("uid", "title", "author", "published", "detail", "fetched_at").
		Values(d.UID, d.Title, d.Author, nullTime(d.PublicationDate), string(b), time.Now()).
		Suffix("ON CONFLICT(uid) DO UPDATE SET title=excluded.title, author=excluded.author, published=excluded.published, detail=excluded.detail, fetched_at=excluded.fetched_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save detail: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save detail %s: %w", d.UID, err)
	}
	return nil
}

// GetDetail 读取缓存的详情及其抓取时间；没有详情时返回 ErrNotCached。
func (s *SQLite) GetDetail(ctx context.Context, uid string) (model.PostDetail, time.Time, error) {
	var d model.PostDetail
	q, args, err := sq.Select("detail", "fetched_at").From("posts").Where(sq.Eq{"uid": uid}).ToSql()
	if err != nil {
		return d, time.Time{}, fmt.Errorf("build get detail: %w", err)
	}
	var raw sql.NullString
	var fetched sql.NullTime
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&raw, &fetched)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (!raw.Valid || raw.String == "")) {
		return d, time.Time{}, ErrNotCached
	}
	if err != nil {
		return d, time.Time{}, fmt.Errorf("query detail %s: %w", uid, err)
	}
	if err := json.Unmarshal([]byte(raw.String), &d); err != nil {
		return d, time.Time{}, fmt.Errorf("decode detail %s: %w", uid, err)
	}
	return d, fetched.Time, nil
}

// ListPosts 按发布时间倒序分页返回摘要；limit<=0 表示不限制。
func (s *SQLite) ListPosts(ctx context.Context, limit, offset int) ([]model.Post, error) {
	b := sq.Select("uid", "COALESCE(title,'')", "COALESCE(subtitle,'')", "COALESCE(author,'')", "published").
		From("posts").
		OrderBy("published IS NULL", "published DESC", "uid")
	if limit > 0 {
		b = b.Limit(uint64(limit)).Offset(uint64(max(offset, 0)))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	var out []model.Post
	for rows.Next() {
		var p model.Post
		var published sql.NullTime
		if err := rows.Scan(&p.UID, &p.Title, &p.Subtitle, &p.Author, &published); err != nil {
			return nil, fmt.Errorf("scan posts: %w", err)
		}
		if published.Valid {
			t := published.Time
			p.PublicationDate = &t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// CleanStale 删除 keep 之外、抓取时间早于 before 的文章（上游已删除的文章）。
func (s *SQLite) CleanStale(ctx context.Context, keep []string, before time.Time) (int64, error) {
	b := sq.Delete("posts").Where(sq.Lt{"fetched_at": before})
	if len(keep) > 0 {
		b = b.Where(sq.NotEq{"uid": keep})
	}
	q, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build clean stale: %w", err)
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("clean stale posts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordBuild 写入一次构建记录。
func (s *SQLite) RecordBuild(ctx context.Context, b Build) error {
	q, args, err := sq.Insert("builds").
		Columns("id", "started_at", "finished_at", "posts", "failed", "status").
		Values(b.ID, b.StartedAt, b.FinishedAt, b.Posts, b.Failed, b.Status).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record build: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("record build %s: %w", b.ID, err)
	}
	return nil
}

// LastBuild 返回最近一次构建；没有记录时返回 sql.ErrNoRows。
func (s *SQLite) LastBuild(ctx context.Context) (Build, error) {
	var b Build
	q, args, err := sq.Select("id", "started_at", "finished_at", "posts", "failed", "status").
		From("builds").OrderBy("started_at DESC").Limit(1).ToSql()
	if err != nil {
		return b, fmt.Errorf("build last build: %w", err)
	}
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&b.ID, &b.StartedAt, &b.FinishedAt, &b.Posts, &b.Failed, &b.Status)
	if err != nil {
		return b, err
	}
	return b, nil
}

// Stats 统计缓存中的文章数量。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	q, args, err := sq.Select("COUNT(1)", "COUNT(detail)").From("posts").ToSql()
	if err != nil {
		return st, fmt.Errorf("build stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&st.PostsTotal, &st.PostsRendered); err != nil {
		return st, fmt.Errorf("count posts: %w", err)
	}
	st.UpdatedAt = time.Now()
	return st, nil
}
