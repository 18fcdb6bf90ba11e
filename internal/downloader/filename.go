package downloader

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode"
)

// MaxFilenameLength caps generated filenames, extension and prefix included.
const MaxFilenameLength = 200

const defaultExtension = ".mp3"

// SanitizeTitle replaces characters that are illegal in filenames and runs of
// whitespace with underscores, collapses repeated underscores and trims dots,
// spaces and underscores from both ends.
func SanitizeTitle(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range title {
		if strings.ContainsRune(`<>:"/\|?*`, r) || unicode.IsSpace(r) || unicode.IsControl(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), ". _")
	if out == "" {
		return "untitled"
	}
	return out
}

// ExtensionFromURL returns the audio URL's path extension, or .mp3 when it is
// missing or implausibly long.
func ExtensionFromURL(audioURL string) string {
	p := audioURL
	if u, err := url.Parse(audioURL); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	if ext == "" || len(ext) > 5 {
		return defaultExtension
	}
	return ext
}

// StripNumericPrefix removes a leading "<digits>-" from name.
func StripNumericPrefix(name string) string {
	if _, ok := NumericPrefix(name); !ok {
		return name
	}
	return name[strings.IndexByte(name, '-')+1:]
}

// NumericPrefix returns the number in a leading "<digits>-" of name.
func NumericPrefix(name string) (uint64, bool) {
	idx := strings.IndexByte(name, '-')
	if idx <= 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(name[:idx], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ApplyPrefix returns "<prefix>-<name>" with any existing numeric prefix
// replaced. An empty prefix only strips.
func ApplyPrefix(name, prefix string) string {
	rest := StripNumericPrefix(name)
	if prefix == "" {
		return rest
	}
	return prefix + "-" + rest
}

// GenerateFilename builds the remote object name for an episode. The title is
// truncated so the whole name fits MaxFilenameLength.
func GenerateFilename(title, audioURL, prefix string) string {
	ext := ExtensionFromURL(audioURL)
	safe := StripNumericPrefix(SanitizeTitle(title))

	budget := MaxFilenameLength - len(ext)
	if prefix != "" {
		budget -= len(prefix) + 1
	}
	if len(safe) > budget {
		safe = truncateUTF8(safe, budget)
	}
	return ApplyPrefix(safe+ext, prefix)
}

func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
