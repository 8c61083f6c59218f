package ai

import (
	"os"
	"strings"
)

// parseAIDebugEnv reads PCT_AI_DEBUG and returns (debugEnabled, promptsEnabled).
// Valid values:
//
//	"all" or "1" or "true" - enable both debug and prompts
//	"prompts" - enable only prompts
//	"none" or "0" or "false" or "" - disable all
func parseAIDebugEnv() (debug bool, prompts bool) {
	switch strings.TrimSpace(strings.ToLower(os.Getenv("PCT_AI_DEBUG"))) {
	case "all", "1", "true":
		return true, true
	case "prompts":
		return false, true
	default:
		return false, false
	}
}

// isDebug checks if AI request debugging is enabled.
func isDebug() bool {
	debug, _ := parseAIDebugEnv()
	return debug
}

// isDebugPrompts checks if prompt bodies should be logged.
func isDebugPrompts() bool {
	_, prompts := parseAIDebugEnv()
	return prompts
}
