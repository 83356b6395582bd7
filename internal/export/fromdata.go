package export

import (
	"context"
	"time"

	"go-spacetraveling/internal/model"
)

// ToJSONData 直接将内存中的首屏文章与统计写成 posts.json。
func ToJSONData(_ context.Context, st model.Stats, posts []model.ListedPost, nextPage, path string) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	return write(model.Export{Stats: st, Results: posts, NextPage: nextPage}, path)
}
