package filename

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var _ error = FormatError{}

// FormatError is returned when no file name can be found in a
// Content-Disposition header.
type FormatError struct {
	Header string
}

func (f FormatError) Error() string {
	return fmt.Sprintf("Invalid header Content-Disposition: %q", f.Header)
}

var (
	extendedFilenamePattern = regexp.MustCompile(`(?i)filename\*\s*=\s*([^']*)'[^']*'([^;\s]+)`)
	plainFilenamePattern    = regexp.MustCompile(`(?i)filename[^;=\n]*=['"]?([^;'"\n]*)['"]?`)
)

type rewrite struct {
	old   string
	new   string
	count int
}

// applied in order; a count of -1 replaces every occurrence
var rewrites = []rewrite{
	{old: "_no_", new: "_all_but_", count: 1},
	{old: "_split_by_lalalai", new: "", count: -1},
	{old: ".aiff", new: ".aif", count: 1},
}

// Resolve derives the local file name for a downloaded artifact from the
// response's Content-Disposition header.
func Resolve(contentDisposition string) (string, error) {
	name, err := Extract(contentDisposition)
	if err != nil {
		return "", err
	}

	return Normalize(name), nil
}

// Extract returns the bare file name carried by a Content-Disposition
// header, decoding the RFC 5987 extended form when present.
func Extract(contentDisposition string) (string, error) {
	name := extract(contentDisposition)

	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", FormatError{Header: contentDisposition}
	}

	return name, nil
}

func extract(header string) string {
	if _, params, err := mime.ParseMediaType(header); err == nil {
		// mime folds filename* into filename after decoding it
		if name := params["filename"]; name != "" {
			return name
		}
	}

	if match := extendedFilenamePattern.FindStringSubmatch(header); match != nil {
		if decoded, err := url.PathUnescape(match[2]); err == nil {
			return decoded
		}
	}

	if match := plainFilenamePattern.FindStringSubmatch(header); match != nil {
		return strings.TrimSpace(match[1])
	}

	return ""
}

// Normalize rewrites the vendor's naming convention into the local one.
func Normalize(name string) string {
	for _, r := range rewrites {
		name = strings.Replace(name, r.old, r.new, r.count)
	}

	return name
}
