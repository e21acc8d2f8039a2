package hype

import "strings"

// Level 表示一条聊天消息的兴奋程度。
type Level string

const (
	Calm     Level = "calm"
	Positive Level = "positive"
	Hyped    Level = "hyped"
)

// Decision 给出关键字命中结果以及推荐的装饰表情。
type Decision struct {
	Level Level
	Score int
	Emoji string
}

type bucket struct {
	level    Level
	emoji    string
	keywords []string
}

// 顺序即优先级：得分相同时靠前的桶胜出，保证结果确定。
var buckets = []bucket{
	{
		level: Hyped,
		emoji: "🔥",
		keywords: []string{
			"fire", "insane", "crazy", "goated", "lets go", "let's go", "pog", "hype",
			"clutch", "cracked", "no way", "legendary",
		},
	},
	{
		level: Positive,
		emoji: "💯",
		keywords: []string{
			"amazing", "awesome", "best", "love", "great", "nice", "sick", "dope", "beautiful",
			"incredible", "perfect", "w stream", "goat",
		},
	},
}

const exclamationBoost = 2

// Analyze 统计文本中的兴奋关键字。没有命中时返回 Calm 且不推荐表情。
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Level: Calm}
	}

	best := Decision{Level: Calm}
	for _, b := range buckets {
		score := 0
		for _, word := range b.keywords {
			if strings.Contains(normalized, word) {
				score += 3
			}
		}
		if score > best.Score {
			best = Decision{Level: b.level, Score: score, Emoji: b.emoji}
		}
	}

	// 感叹号只放大已有的兴奋，不会单独触发表情。
	if best.Score > 0 {
		best.Score += strings.Count(text, "!") * exclamationBoost
	}
	return best
}

// Enthusiastic reports whether text contains any enthusiasm keyword.
func Enthusiastic(text string) bool {
	return Analyze(text).Score > 0
}
