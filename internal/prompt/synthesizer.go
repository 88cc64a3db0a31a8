// Package prompt turns poem text into an ink-painting image prompt using
// fixed descriptor tables. It performs no I/O and never fails.
package prompt

import (
	"sort"
	"strings"
)

type descriptor struct {
	token string
	term  string
	scene bool
}

// imagery is scanned in table order; ties in text position keep this order.
var imagery = []descriptor{
	// landscape
	{"山", "mountain", true}, {"峰", "peak", false}, {"岭", "ridge", false}, {"峦", "mountain range", false},
	{"水", "water", true}, {"江", "river", true}, {"湖", "lake", true}, {"海", "sea", true}, {"河", "river", true},
	{"溪", "stream", true}, {"泉", "spring", true}, {"瀑", "waterfall", true}, {"潭", "pond", true},
	{"月", "moon", true}, {"明", "bright moon", false}, {"日", "sun", true}, {"阳", "sun", false},
	{"云", "cloud", true}, {"霞", "sunset glow", false}, {"雾", "mist", true}, {"烟", "smoke", true},
	{"风", "wind", true}, {"雨", "rain", true}, {"雪", "snow", true}, {"霜", "frost", false},
	// seasons and plants
	{"春", "spring", true}, {"夏", "summer", true}, {"秋", "autumn", true}, {"冬", "winter", true},
	{"花", "flower", true}, {"草", "grass", true}, {"树", "tree", true}, {"林", "forest", true},
	{"松", "pine tree", true}, {"竹", "bamboo", true}, {"柳", "willow", true}, {"梅", "plum blossom", true},
	{"菊", "chrysanthemum", true}, {"荷", "lotus", true}, {"桃", "peach blossom", false}, {"梨", "pear blossom", false},
	{"桂", "osmanthus", false}, {"兰", "orchid", false},
	// animals
	{"鸟", "bird", false}, {"雁", "wild goose", false}, {"鹤", "crane", false}, {"鹭", "heron", false},
	{"鱼", "fish", false}, {"马", "horse", false}, {"猿", "monkey", false}, {"鹿", "deer", false},
	// architecture
	{"舟", "boat", false}, {"桥", "bridge", false}, {"亭", "pavilion", false}, {"阁", "pavilion", false},
	{"寺", "temple", false}, {"庙", "temple", false}, {"楼", "tower", false}, {"台", "platform", false},
	{"院", "courtyard", false}, {"园", "garden", false}, {"门", "gate", false}, {"窗", "window", false},
	// people and objects
	{"人", "person", false}, {"客", "traveler", false}, {"僧", "monk", false}, {"隐者", "hermit", false},
	{"酒", "wine", false}, {"剑", "sword", false}, {"琴", "guqin", false}, {"书", "book", false},
	{"棋", "chess", false}, {"笔", "brush", false}, {"墨", "ink", false}, {"纸", "paper", false},
	{"茶", "tea", false}, {"灯", "lantern", false},
	// emotions
	{"愁", "sorrow", false}, {"思", "longing", false}, {"忆", "memory", false}, {"念", "missing", false},
	{"归", "returning", false}, {"别", "parting", false}, {"望", "looking", false}, {"盼", "hoping", false},
	{"静", "tranquil", false}, {"闲", "leisurely", false}, {"幽", "secluded", false}, {"远", "distant", false},
	{"孤", "lonely", false}, {"独", "alone", false}, {"寂", "silent", false}, {"寞", "lonely", false},
}

type category struct {
	name    string
	markers []string
	clause  string
}

// Seasons and moods: the first category with any marker present wins.
var seasons = []category{
	{"春", []string{"桃", "梨", "柳", "燕", "绿"}, "spring landscape, soft green tones, blooming flowers"},
	{"夏", []string{"荷", "蝉", "热", "浓", "茂"}, "summer scenery, lush vegetation, vibrant greens"},
	{"秋", []string{"菊", "枫", "落", "黄", "凉"}, "autumn scene, golden leaves, clear sky"},
	{"冬", []string{"梅", "雪", "寒", "冰", "霜"}, "winter landscape, snow-covered, serene"},
}

var moods = []category{
	{"宁静", []string{"静", "闲", "幽", "寂", "寞"}, "serene, peaceful atmosphere, minimalist"},
	{"忧伤", []string{"愁", "思", "忆", "念", "别"}, "melancholic mood, misty, subtle colors"},
	{"壮阔", []string{"山", "海", "江", "河", "峰"}, "grand scenery, vast perspective, majestic"},
	{"悠远", []string{"远", "望", "归", "云", "霞"}, "distant view, hazy mountains, contemplative"},
	{"闲适", []string{"茶", "酒", "棋", "书", "琴"}, "leisurely scene, simple life, elegant"},
}

const (
	preamble = "traditional Chinese ink painting, ink wash style, "
	closing  = "elegant brush strokes, minimalist composition, poetic atmosphere, high detail, masterpiece, traditional Chinese aesthetics"
)

// Analysis is the descriptor set extracted from a text.
type Analysis struct {
	// Imagery holds every matched term, Scenes the scene subset. Both are
	// deduplicated and ordered by first occurrence in the text.
	Imagery []string
	Scenes  []string
	Season  string
	Mood    string
}

// Analyze extracts descriptors from text.
func Analyze(text string) Analysis {
	type hit struct {
		pos int
		d   descriptor
	}
	var hits []hit
	for _, d := range imagery {
		if i := strings.Index(text, d.token); i >= 0 {
			hits = append(hits, hit{pos: i, d: d})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].pos < hits[b].pos })

	var a Analysis
	seenImagery := map[string]bool{}
	seenScene := map[string]bool{}
	for _, h := range hits {
		if !seenImagery[h.d.term] {
			seenImagery[h.d.term] = true
			a.Imagery = append(a.Imagery, h.d.term)
		}
		if h.d.scene && !seenScene[h.d.term] {
			seenScene[h.d.term] = true
			a.Scenes = append(a.Scenes, h.d.term)
		}
	}
	a.Season = firstCategory(seasons, text)
	a.Mood = firstCategory(moods, text)
	return a
}

func firstCategory(cats []category, text string) string {
	for _, c := range cats {
		for _, m := range c.markers {
			if strings.Contains(text, m) {
				return c.name
			}
		}
	}
	return ""
}

func clauseFor(cats []category, name string) string {
	for _, c := range cats {
		if c.name == name {
			return c.clause
		}
	}
	return ""
}

// Synthesize builds the image prompt for text. The output is a pure function
// of the input.
func Synthesize(text string) string {
	return Compose(Analyze(text))
}

// Compose renders an analysis as a prompt string.
func Compose(a Analysis) string {
	var b strings.Builder
	b.WriteString(preamble)
	if c := clauseFor(seasons, a.Season); c != "" {
		b.WriteString(c)
		b.WriteString(", ")
	}
	if len(a.Scenes) > 0 {
		b.WriteString("featuring ")
		b.WriteString(strings.Join(a.Scenes, ", "))
		b.WriteString(", ")
	}
	if c := clauseFor(moods, a.Mood); c != "" {
		b.WriteString(c)
		b.WriteString(", ")
	}
	b.WriteString(closing)
	return b.String()
}
