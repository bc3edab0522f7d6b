package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/preetsinghmakkar/groupcall/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	reportMaxTokens   = 1000
	feedbackMaxTokens = 300
)

const (
	reportPromptMarker   = "Analyze the following transcript"
	argumentPromptMarker = "Evaluate the following argument"

	fallbackReport   = "1. **Score**: 7/10\n2. **Analysis**: You communicated your ideas clearly but could improve on active listening.\n3. **Improvements**:\n   - **Said**: \"I disagree.\"\n   - **Should have said**: \"I see your point, but I have a different perspective.\"\n   - **Reason**: More polite and constructive.\n4. **Key Metrics**:\n   - Clarity: High\n   - Confidence: Medium\n   - Listening: Medium"
	fallbackArgument = `{"score": 7, "strength": "Moderate", "feedback": "Good effort. Your argument has a clear premise but lacks specific evidence.", "improvement": "Include a concrete example or statistic to strengthen your point."}`
	fallbackDefault  = "Unable to generate content at this time. (AI Service Error)"
)

// Coach builds the prompts used for reports and live feedback.
// Its methods never fail: upstream errors yield a fallback text.
type Coach struct {
	completer Completer
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

func NewCoach(completer Completer, logger zerolog.Logger, m *metrics.Metrics) *Coach {
	return &Coach{
		completer: completer,
		logger:    logger.With().Str("component", "coach").Logger(),
		metrics:   m,
	}
}

// GenerateReport scores one speaker's (or the whole group's) transcript.
func (c *Coach) GenerateReport(ctx context.Context, transcript string) string {
	prompt := "You are an expert communication coach. " + reportPromptMarker + " from a Group Discussion.\n" +
		"Transcript: \"" + transcript + "\"\n\n" +
		"Provide feedback in the following STRICT format:\n" +
		"1. **Score**: [0-10]/10\n" +
		"2. **Analysis**: [Provide a brief analysis of what the speaker did well and where they struggled.]\n" +
		"3. **Improvements**:\n" +
		"   - **Said**: \"[Quote exact sentence from transcript]\"\n" +
		"   - **Should have said**: \"[Improved version]\"\n" +
		"   - **Reason**: [Why the change is better]\n" +
		"   (Provide 2-3 examples like this)\n" +
		"4. **Key Metrics**:\n" +
		"   - Clarity: [Low/Medium/High]\n" +
		"   - Confidence: [Low/Medium/High]\n" +
		"   - Listening: [Low/Medium/High]"
	return c.complete(ctx, prompt, reportMaxTokens)
}

// EvaluateArgument judges a single utterance against motion. The reply is JSON text.
func (c *Coach) EvaluateArgument(ctx context.Context, motion, argument string) string {
	prompt := "You are a debate judge. " + argumentPromptMarker + " for the motion: \"" + motion + "\".\n" +
		"Argument: \"" + argument + "\"\n\n" +
		"Provide feedback in JSON format: {\"score\": [0-10], \"strength\": \"[Weak/Moderate/Strong]\", " +
		"\"feedback\": \"[Brief specific feedback]\", \"improvement\": \"[One suggestion to make it better]\"}. Do not use markdown."
	return c.complete(ctx, prompt, feedbackMaxTokens)
}

func (c *Coach) complete(ctx context.Context, prompt string, maxTokens int) string {
	start := time.Now()
	text, err := c.completer.Complete(ctx, prompt, maxTokens)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			c.logger.Warn().Err(err).Msg("completion failed, using fallback")
		}
		c.metrics.ObserveCompletion("fallback", 0)
		return Fallback(prompt)
	}
	c.metrics.ObserveCompletion("ok", time.Since(start).Seconds())
	return text
}

// Fallback returns the canned reply for the kind of prompt given.
func Fallback(prompt string) string {
	switch {
	case strings.Contains(prompt, argumentPromptMarker):
		return fallbackArgument
	case strings.Contains(prompt, reportPromptMarker):
		return fallbackReport
	default:
		return fallbackDefault
	}
}
