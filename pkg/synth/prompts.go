package synth

import (
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

const (
	DefaultQATemplate = "あなたはとあるプロダクトのセキュリティ担当者です。\n" +
		"プロダクトのセキュリティに関するお客様からのご質問に回答する責任を持っています。\n" +
		"事前知識ではなく、常に提供されたコンテキストを使用してクエリに回答してください。\n" +
		"従うべきいくつかのルール:\n" +
		"1. 回答内で指定されたコンテキストを直接参照しないでください。\n" +
		"2. 「コンテキストに基づいて、...」や「コンテキスト情報は...」、またはそれに類するような記述は避けてください。\n" +
		"3. 必ず日本語で回答してください。\n" +
		"4. 貴社はプロダクトを提供するあなたが所属する会社、弊社はプロダクトを利用してくれる会社、他社はプロダクトを利用している他の会社として認識してください。\n" +
		"コンテキストは以下のとおりです。\n" +
		"なお、コンテキストのQ. に続く文字は過去の質問で、A. に続く文字は過去の回答です。過去の回答がはい、か、いいえのみの場合は、今回の回答もはい、か、いいえだけで答えなさい。\n" +
		"---------------------\n" +
		"{context_str}\n" +
		"---------------------\n" +
		"事前知識ではなく提供されたコンテキストのみを使用してクエリに答えなさい。\n" +
		"クエリ: {query_str}\n"

	DefaultRefineTemplate = "あなたは、既存の回答を改良する際に2つのモードで厳密に動作するQAシステムのエキスパートです。\n" +
		"1. 新しいコンテキストを使用して元の回答を**書き直す**。\n" +
		"2. 新しいコンテキストが役に立たない場合は、元の回答を**繰り返す**。\n" +
		"3. 必ず日本語で回答してください。\n" +
		"4. 貴社はプロダクトを提供するあなたが所属する会社、弊社はプロダクトを利用してくれる会社、他社はプロダクトを利用している他の会社として認識してください。\n" +
		"回答内で元の回答やコンテキストを直接参照しないでください。\n" +
		"なお、新しいコンテキストのQ. に続く文字は過去の質問で、A. に続く文字は過去の回答です。過去の回答がはい、か、いいえのみの場合は、今回の回答もはい、か、いいえだけで答えなさい。\n" +
		"疑問がある場合は、元の答えを繰り返してください。" +
		"新しいコンテキスト: {context_msg}\n" +
		"Query: {query_str}\n" +
		"Original Answer: {existing_answer}\n"
)

var (
	qaVariables     = []string{"context_str", "query_str"}
	refineVariables = []string{"context_msg", "query_str", "existing_answer"}
)

// Templates holds the two prompts used by the refine loop.
type Templates struct {
	QA     prompts.PromptTemplate
	Refine prompts.PromptTemplate
}

// DefaultTemplates returns the built-in Japanese QA and refine prompts.
func DefaultTemplates() Templates {
	t, err := NewTemplates(DefaultQATemplate, DefaultRefineTemplate)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTemplates validates both templates against their placeholders.
func NewTemplates(qa, refine string) (Templates, error) {
	qaTmpl, err := newTemplate(qa, qaVariables)
	if err != nil {
		return Templates{}, fmt.Errorf("qa template: %w", err)
	}
	refineTmpl, err := newTemplate(refine, refineVariables)
	if err != nil {
		return Templates{}, fmt.Errorf("refine template: %w", err)
	}

	return Templates{QA: qaTmpl, Refine: refineTmpl}, nil
}

// LoadTemplates reads template overrides from files. An empty path keeps the
// built-in template.
func LoadTemplates(qaPath, refinePath string) (Templates, error) {
	qa, refine := DefaultQATemplate, DefaultRefineTemplate

	if qaPath != "" {
		data, err := os.ReadFile(qaPath)
		if err != nil {
			return Templates{}, fmt.Errorf("read qa template: %w", err)
		}
		qa = string(data)
	}
	if refinePath != "" {
		data, err := os.ReadFile(refinePath)
		if err != nil {
			return Templates{}, fmt.Errorf("read refine template: %w", err)
		}
		refine = string(data)
	}

	return NewTemplates(qa, refine)
}

func newTemplate(text string, variables []string) (prompts.PromptTemplate, error) {
	if err := prompts.CheckValidTemplate(text, prompts.TemplateFormatFString, variables); err != nil {
		return prompts.PromptTemplate{}, err
	}
	for _, v := range variables {
		if !strings.Contains(text, "{"+v+"}") {
			return prompts.PromptTemplate{}, fmt.Errorf("missing placeholder {%s}", v)
		}
	}

	return prompts.PromptTemplate{
		Template:       text,
		InputVariables: variables,
		TemplateFormat: prompts.TemplateFormatFString,
	}, nil
}
