package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/farum-sos/internal/domain"
)

// Script holds every canned text the service shows. Fields left empty in a
// script file keep their defaults.
type Script struct {
	// CheckinGreeting opens a mood check-in conversation.
	CheckinGreeting string `yaml:"checkin_greeting"`
	// MoodStatements is what the user "says" for each mood level (1-5).
	MoodStatements map[domain.MoodLevel]string `yaml:"mood_statements"`
	// InitialReplies is the messaging service's first reply per mood level.
	InitialReplies map[domain.MoodLevel]string `yaml:"initial_replies"`
	// CheckinFollowUp follows the mood statement when the messaging service
	// returns no initial reply.
	CheckinFollowUp string `yaml:"checkin_follow_up"`
	// CounselorGreeting opens a manual SOS session.
	CounselorGreeting string `yaml:"counselor_greeting"`
	// AIHelpGreeting is injected when the user accepts AI help.
	AIHelpGreeting string   `yaml:"ai_help_greeting"`
	Topics         []string `yaml:"topics"`
	// InboundCandidates are the messages the simulated responder may send.
	InboundCandidates []string `yaml:"inbound_candidates"`
	// ChatReplies are the mock LLM's replies.
	ChatReplies []string `yaml:"chat_replies"`
}

func DefaultScript() Script {
	return Script{
		CheckinGreeting: "こんにちは、今日はどのようなご気分ですか？",
		MoodStatements: map[domain.MoodLevel]string{
			1: "とても疲れています／大きなストレスを感じています。",
			2: "少し疲れています／モヤモヤしています。",
			3: "いつも通りです／特に問題ありません。",
			4: "調子が良いです／前向きに取り組めています。",
			5: "とても調子が良いです／充実しています！",
		},
		InitialReplies: map[domain.MoodLevel]string{
			1: "I'm sorry to hear you're feeling extremely low. This sounds serious. Let me connect you with someone who can help immediately.",
			2: "I understand you're going through a difficult time. Let's talk about what's happening and find some ways to help you feel better.",
			3: "Thank you for reaching out. It sounds like you're having a challenging day. Would you like to tell me more about what's going on?",
			4: "I'm glad you're checking in. How can I support you today?",
			5: "Great to hear you're doing well! Is there something specific you'd like to discuss or work on today?",
		},
		CheckinFollowUp:   "今日のコンディションですね、教えていただきありがとうございます。\nよろしければ、今の業務の状況や、モヤモヤしていることなど、もう少し詳しくお話しいただけますか？\n※ここでの会話はプライバシーが守られます。安心してご自身のペースでお話しください。",
		CounselorGreeting: "こんにちは、カウンセラーに接続しています。どのようなご様子ですか？",
		AIHelpGreeting:    "🤖 こんにちは！あなたのウェルビーイングをサポートする AI アシスタントです。どのようなお手伝いができるでしょうか？",
		Topics: []string{
			"仕事・キャリアの悩み",
			"人間関係（恋愛・家族）",
			"モヤモヤした気持ち",
			"最近のトレンドや音楽",
		},
		InboundCandidates: []string{
			"How are you feeling now?",
			"Is there something specific you'd like to discuss?",
			"Remember, it's okay to take things one step at a time.",
			"Would it help to talk about some coping strategies?",
			"I'm still here with you. Take your time.",
		},
		ChatReplies: []string{
			"I understand how you feel. Can you tell me more about what's happening?",
			"That sounds challenging. How long have you been feeling this way?",
			"I'm here to listen. Would it help to talk about specific situations that are troubling you?",
			"Thank you for sharing that with me. What do you think might help you feel better right now?",
			"It's important to recognize those feelings. Have you tried any coping strategies that have worked for you in the past?",
		},
	}
}

// LoadScript returns the default script, overridden by path when it is set.
func LoadScript(path string) (Script, error) {
	script := DefaultScript()
	if path == "" {
		return script, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script %s: %w", path, err)
	}

	var override Script
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Script{}, fmt.Errorf("decode script %s: %w", path, err)
	}

	script.merge(override)
	return script, nil
}

func (s *Script) merge(o Script) {
	setString(&s.CheckinGreeting, o.CheckinGreeting)
	setString(&s.CheckinFollowUp, o.CheckinFollowUp)
	setString(&s.CounselorGreeting, o.CounselorGreeting)
	setString(&s.AIHelpGreeting, o.AIHelpGreeting)

	for level, text := range o.MoodStatements {
		if level.Valid() && text != "" {
			s.MoodStatements[level] = text
		}
	}
	for level, text := range o.InitialReplies {
		if level.Valid() && text != "" {
			s.InitialReplies[level] = text
		}
	}

	if len(o.Topics) > 0 {
		s.Topics = o.Topics
	}
	if len(o.InboundCandidates) > 0 {
		s.InboundCandidates = o.InboundCandidates
	}
	if len(o.ChatReplies) > 0 {
		s.ChatReplies = o.ChatReplies
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
