package llm

import (
	"regexp"
	"strings"
)

var versionSuffix = regexp.MustCompile(`/v\d+(beta\d*)?(/openai)?$`)

// ChatCompletionsURL derives the completions endpoint from a provider base URL.
// Bases that already carry a version segment (".../v1", ".../v4", ".../v1beta/openai")
// get "/chat/completions"; bare hosts get "/v1/chat/completions".
func ChatCompletionsURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if versionSuffix.MatchString(base) {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}
