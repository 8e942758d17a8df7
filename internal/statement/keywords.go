package statement

import "strings"

// DefaultCategory is the guess used when no keyword matches.
const DefaultCategory = "その他"

// KeywordRule maps a description keyword to a category label.
type KeywordRule struct {
	Keyword  string
	Category string
}

// DefaultKeywordRules is evaluated top to bottom; the first match wins.
var DefaultKeywordRules = []KeywordRule{
	{"コンビニ", "食費"},
	{"セブン-イレブン", "食費"},
	{"ファミリーマート", "食費"},
	{"ローソン", "食費"},
	{"スーパー", "食費"},
	{"弁当", "食費"},
	{"レストラン", "食費"},
	{"カフェ", "食費"},
	{"スターバックス", "食費"},
	{"マクドナルド", "食費"},
	{"学食", "食費"},
	{"食堂", "食費"},
	{"電車", "交通費"},
	{"バス", "交通費"},
	{"タクシー", "交通費"},
	{"地下鉄", "交通費"},
	{"jr", "交通費"},
	{"suica", "交通費"},
	{"pasmo", "交通費"},
	{"ドラッグストア", "日用品"},
	{"マツモトキヨシ", "日用品"},
	{"ダイソー", "日用品"},
	{"日用品", "日用品"},
	{"書店", "教育"},
	{"書籍", "教育"},
	{"教科書", "教育"},
	{"文具", "教育"},
	{"学費", "教育"},
	{"映画", "娯楽"},
	{"カラオケ", "娯楽"},
	{"ゲーム", "娯楽"},
	{"netflix", "娯楽"},
	{"spotify", "娯楽"},
	{"携帯", "通信費"},
	{"ドコモ", "通信費"},
	{"ソフトバンク", "通信費"},
	{"通信", "通信費"},
	{"ユニクロ", "衣服"},
	{"衣料", "衣服"},
	{"家賃", "住居・光熱費"},
	{"電気", "住居・光熱費"},
	{"ガス", "住居・光熱費"},
	{"水道", "住居・光熱費"},
	{"病院", "医療"},
	{"クリニック", "医療"},
	{"薬局", "医療"},
}

// GuessCategory returns the category of the first rule whose keyword occurs
// in description, ignoring ASCII case.
func GuessCategory(description string, rules []KeywordRule) string {
	haystack := strings.ToLower(description)
	for _, rule := range rules {
		if strings.Contains(haystack, strings.ToLower(rule.Keyword)) {
			return rule.Category
		}
	}
	return DefaultCategory
}

var (
	refundKeywords = []string{"返金", "キャンセル", "取消", "取り消し"}
	chargeKeywords = []string{"チャージ", "受け取り", "受取", "入金"}
)

// ClassifyType derives the transaction type from the content field.
func ClassifyType(content string) TransactionType {
	if containsAny(content, refundKeywords) {
		return TransactionTypeRefund
	}
	if containsAny(content, chargeKeywords) {
		return TransactionTypeCharge
	}
	return TransactionTypePayment
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
