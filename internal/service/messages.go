package service

import (
	"fmt"
	"strings"

	"linebot-relay-go/internal/model"
)

// catalogue 是一种语言下所有固定回复文本。
type catalogue struct {
	ResetDone          string
	NoHistory          string
	HistoryHeader      string
	InvalidLanguage    string // %s: 可选语言列表
	LanguageAlreadySet string
	LanguageSwitched   string
	Apology            string // %s: 错误描述
	DefaultPrompt      string
	LanguageDirective  string
}

var catalogues = map[model.Language]catalogue{
	model.LanguageZH: {
		ResetDone:          "對話紀錄已清除，從頭開始吧！",
		NoHistory:          "目前沒有紀錄喔～",
		HistoryHeader:      "最近的對話紀錄：\n\n",
		InvalidLanguage:    "不支援的語言代碼，用法：/lang <代碼>，可用：%s",
		LanguageAlreadySet: "目前語言已經是中文囉。",
		LanguageSwitched:   "已切換為中文回覆。",
		Apology:            "抱歉，我出錯了：%s",
		DefaultPrompt:      "要簡短回答，不要超過50字，中文要用zh-TW。",
		LanguageDirective:  "請使用繁體中文（zh-TW）回答。",
	},
	model.LanguageEN: {
		ResetDone:          "Conversation history cleared. Let's start over!",
		NoHistory:          "No history yet.",
		HistoryHeader:      "Recent conversation:\n\n",
		InvalidLanguage:    "Unsupported language code. Usage: /lang <code>, available: %s",
		LanguageAlreadySet: "Your language is already set to English.",
		LanguageSwitched:   "Replies will now be in English.",
		Apology:            "Sorry, something went wrong: %s",
		DefaultPrompt:      "Answer briefly in no more than 50 words. Reply in English.",
		LanguageDirective:  "Please reply in English.",
	},
}

// messagesFor 返回 lang 对应的文本，未知语言回落到中文。
func messagesFor(lang model.Language) catalogue {
	if c, ok := catalogues[lang]; ok {
		return c
	}
	return catalogues[model.LanguageZH]
}

func supportedLanguageList() string {
	codes := make([]string, 0, len(model.SupportedLanguages))
	for _, l := range model.SupportedLanguages {
		codes = append(codes, string(l))
	}
	return strings.Join(codes, ", ")
}

// Apology 返回包含错误描述的致歉文本。
func Apology(lang model.Language, err error) string {
	return fmt.Sprintf(messagesFor(lang).Apology, err.Error())
}
