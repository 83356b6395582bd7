// 包 readtime 根据正文字数估算阅读时间（分钟，向上取整）。
package readtime

import (
	"strings"

	"go-spacetraveling/internal/model"
	"go-spacetraveling/internal/richtext"
)

// DefaultWordsPerMinute 为默认阅读速度（词/分钟）。
const DefaultWordsPerMinute = 200

// Words 按空白切分计数；连续空白视为一个分隔符，首尾空白不产生空词。
func Words(text string) int {
	return len(strings.Fields(text))
}

// Estimate 统计所有块正文的词数并换算为分钟。
// 只统计正文，不含小节标题；内容为空时返回 0（不强制为 1）。
func Estimate(blocks []model.ContentBlock, wpm int) int {
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		texts = append(texts, richtext.AsText(b.Body))
	}
	return EstimateText(texts, wpm)
}

// EstimateText 与 Estimate 相同，但输入已是纯文本。wpm<=0 时使用默认值。
func EstimateText(texts []string, wpm int) int {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	total := 0
	for _, t := range texts {
		total += Words(t)
	}
	m := total / wpm
	if total%wpm != 0 {
		m++
	}
	return m
}
