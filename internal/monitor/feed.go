package monitor

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finstream-guard/dashboard/internal/models"
)

// sampleLines stands in for a real transcript source until caption ingestion exists.
var sampleLines = []string{
	"家人们听我说，这个币马上就要起飞了，保证翻100倍！",
	"投资有风险，入市需谨慎，大家一定要做好自己的研究。",
	"从K线图来看，目前的阻力位在4500点左右。",
	"我听到内部消息说CEO要辞职了，赶紧抛售！",
	"这不构成投资建议，仅仅是娱乐分享。",
	"美联储刚刚宣布降息，这对科技股是个重大利好。",
	"加入我的VIP群，带你精准逃顶抄底，绝不亏损。",
	"让我们一起来看看这家公司的季度财报数据。",
}

// riskKeywords flag a line for operator attention before any LLM analysis runs.
var riskKeywords = []string{
	"保证", "翻倍", "翻100倍", "稳赚", "绝不亏损", "内部消息", "内幕", "带你", "起飞",
	"guaranteed", "moon", "100x", "risk-free",
}

// IsComplianceRisk reports whether text contains a known risk phrase.
func IsComplianceRisk(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Feed generates synthetic transcript lines.
type Feed struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	lines []string
	now   func() time.Time
}

// NewFeed creates a feed over the built-in sample lines.
func NewFeed(seed int64) *Feed {
	return &Feed{rnd: rand.New(rand.NewSource(seed)), lines: sampleLines, now: time.Now}
}

// Next returns one new message.
func (f *Feed) Next() models.ChatMessage {
	f.mu.Lock()
	text := f.lines[f.rnd.Intn(len(f.lines))]
	user := fmt.Sprintf("User_%d", f.rnd.Intn(1000))
	f.mu.Unlock()

	return models.ChatMessage{
		ID:               uuid.NewString(),
		User:             user,
		Text:             text,
		Timestamp:        f.now().UnixMilli(),
		IsComplianceRisk: IsComplianceRisk(text),
	}
}
