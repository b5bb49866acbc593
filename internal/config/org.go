package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// OrgProfile is the per-collection organization profile used to shape spoken
// replies: assistant persona, language, and canned phrases.
type OrgProfile struct {
	OrgName       string `json:"org_name"`
	AssistantRole string `json:"assistant_role"`
	Language      string `json:"language"`
	Tone          string `json:"tone"`
	Greeting      string `json:"greeting"`
	FallbackReply string `json:"fallback_reply"`
	Voice         string `json:"voice"`
}

// DefaultOrgProfile returns the profile used when a collection has no
// config.json.
func DefaultOrgProfile(org string) *OrgProfile {
	return &OrgProfile{
		OrgName:       org,
		AssistantRole: "AI Assistant",
		Language:      "en-US",
		Tone:          "polite",
		Greeting:      "Hello, thank you for calling. How can I help you today?",
		FallbackReply: "I'm sorry, I couldn't find an answer to that. Let me connect you with a colleague.",
		Voice:         "alice",
	}
}

// LoadOrgProfile reads <dataDir>/<org>/config.json. A missing file yields the
// default profile and no error; a malformed file is an error.
func LoadOrgProfile(dataDir, org string) (*OrgProfile, error) {
	path := filepath.Join(dataDir, org, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultOrgProfile(org), nil
		}
		return nil, fmt.Errorf("read org profile: %w", err)
	}

	profile := DefaultOrgProfile(org)
	if err := json.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse org profile: %w", err)
	}
	if profile.OrgName == "" {
		profile.OrgName = org
	}
	return profile, nil
}
