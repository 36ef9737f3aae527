package embedded

import (
	"embed"
	"io/fs"
)

// Embed the static data shipped with the binary
//
//go:embed data/blessings.json
var BlessingsJSON []byte

//go:embed data/prompts
var promptFiles embed.FS

// Prompts exposes the prompt layer files rooted at data/prompts
func Prompts() fs.FS {
	sub, err := fs.Sub(promptFiles, "data/prompts")
	if err != nil {
		// only fails for an invalid path literal
		panic(err)
	}
	return sub
}
