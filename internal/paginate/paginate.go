// 包 paginate 维护列表页的累积文章状态：
// - Initialize/MergePage 为纯状态转换，不做任何网络请求
// - HasNext 只取决于最近一次合并的页，不对历史做“或”运算
// - Listing 将抓取（Source）与合并串联，并保证同一列表单写者
package paginate

import "go-spacetraveling/internal/model"

// State 为单个列表视图的分页状态。
// Accumulated 只追加；NextPage 为继续抓取所需的不透明令牌。
type State struct {
	Accumulated []model.Post `json:"results"`
	HasNext     bool         `json:"has_next"`
	NextPage    string       `json:"next_page"`
}

// Initialize 以首屏页初始化状态，Results 为空时得到空列表。
func Initialize(page model.PostPage) State {
	acc := make([]model.Post, 0, len(page.Results))
	acc = append(acc, page.Results...)
	return State{
		Accumulated: acc,
		HasNext:     page.NextPage != "",
		NextPage:    page.NextPage,
	}
}

// MergePage 将新页按顺序追加到累积列表并根据该页的令牌重算 HasNext。
// 返回的新状态不与入参共享底层数组，入参 page 不会被修改。
func MergePage(s State, page model.PostPage) State {
	acc := make([]model.Post, 0, len(s.Accumulated)+len(page.Results))
	acc = append(acc, s.Accumulated...)
	acc = append(acc, page.Results...)
	return State{
		Accumulated: acc,
		HasNext:     page.NextPage != "",
		NextPage:    page.NextPage,
	}
}

// CanLoadMore 决定是否展示“加载更多”。
func CanLoadMore(s State) bool { return s.HasNext }

// DedupByUID 按 uid 去重（保留首次出现，顺序不变）。
// MergePage 本身不去重，是否去重由调用方决定；空 uid 的条目原样保留。
func DedupByUID(posts []model.Post) []model.Post {
	seen := make(map[string]struct{}, len(posts))
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if p.UID != "" {
			if _, ok := seen[p.UID]; ok {
				continue
			}
			seen[p.UID] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}
